package usecase

import (
	"context"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"
)

// 在庫の確保と戻し。呼び出し側のTx内で使い、1件でも失敗したらTxごと戻す
type InventoryReservation struct{}

func (InventoryReservation) Reserve(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range sortedByProduct(items) {
		var ok bool
		var err error
		if it.VariantID != nil {
			ok, err = r.Inventory().DecreaseVariantStockIfEnough(ctx, it.ProductID, *it.VariantID, it.Quantity)
		} else {
			ok, err = r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		}
		if err != nil {
			return ErrInternal(err)
		}
		if !ok {
			return ErrInsufficientStock(it.ProductName)
		}
	}
	return nil
}

func (InventoryReservation) Release(ctx context.Context, r repo.TxRepos, items []model.OrderItem) error {
	for _, it := range sortedByProduct(items) {
		var err error
		if it.VariantID != nil {
			err = r.Inventory().IncreaseVariantStock(ctx, it.ProductID, *it.VariantID, it.Quantity)
		} else {
			err = r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity)
		}
		if err != nil {
			return ErrInternal(err)
		}
	}
	return nil
}

func productIDs(items []model.OrderItem) []int64 {
	seen := map[int64]bool{}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		if !seen[it.ProductID] {
			seen[it.ProductID] = true
			ids = append(ids, it.ProductID)
		}
	}
	return ids
}
