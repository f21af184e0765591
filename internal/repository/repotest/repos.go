package repotest

import (
	"context"
	"sort"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
)

// 以下はWithinTxのロック内から呼ばれる前提

type productRepo struct{ s *Store }

func (r *productRepo) FindByID(_ context.Context, id int64) (model.Product, error) {
	if err := r.s.fail("Products.FindByID"); err != nil {
		return model.Product{}, err
	}
	p, ok := r.s.d.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *productRepo) FindBySlug(_ context.Context, slug string) (model.Product, error) {
	for _, p := range r.s.d.products {
		if p.Slug == strings.ToLower(slug) {
			return p, nil
		}
	}
	return model.Product{}, repo.ErrNotFound
}

func (r *productRepo) FindByRefs(_ context.Context, refs []model.ProductRef) ([]model.Product, error) {
	if err := r.s.fail("Products.FindByRefs"); err != nil {
		return nil, err
	}
	out := []model.Product{}
	for _, p := range r.s.d.products {
		for _, ref := range refs {
			if ref.Matches(p) {
				out = append(out, p)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *productRepo) Create(_ context.Context, p model.Product) (model.Product, error) {
	p.Slug = strings.ToLower(p.Slug)
	for _, ex := range r.s.d.products {
		if ex.Slug == p.Slug {
			return model.Product{}, repo.ErrDuplicateKey
		}
	}
	p.ID = r.s.d.nextID()
	for i := range p.Variants {
		p.Variants[i].ID = r.s.d.nextID()
		p.Variants[i].ProductID = p.ID
	}
	r.s.d.products[p.ID] = p
	return p, nil
}

type inventoryRepo struct{ s *Store }

func (r *inventoryRepo) SetStock(_ context.Context, productID int64, newStock int64) error {
	p, ok := r.s.d.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock = newStock
	r.s.d.products[productID] = p
	return nil
}

func (r *inventoryRepo) SetVariantStock(_ context.Context, productID, variantID int64, newStock int64) error {
	p, ok := r.s.d.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			p.Variants[i].Stock = newStock
			r.s.d.products[productID] = p
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *inventoryRepo) DecreaseStockIfEnough(_ context.Context, productID int64, qty int64) (bool, error) {
	if err := r.s.fail("Inventory.DecreaseStockIfEnough"); err != nil {
		return false, err
	}
	p, ok := r.s.d.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	r.s.d.products[productID] = p
	return true, nil
}

func (r *inventoryRepo) DecreaseVariantStockIfEnough(_ context.Context, productID, variantID int64, qty int64) (bool, error) {
	p, ok := r.s.d.products[productID]
	if !ok || p.Stock < qty {
		return false, nil
	}
	for i := range p.Variants {
		if p.Variants[i].ID != variantID {
			continue
		}
		if p.Variants[i].Stock < qty {
			return false, nil
		}
		p.Variants[i].Stock -= qty
		p.Stock -= qty
		r.s.d.products[productID] = p
		return true, nil
	}
	return false, nil
}

func (r *inventoryRepo) IncreaseStock(_ context.Context, productID int64, qty int64) error {
	p, ok := r.s.d.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Stock += qty
	r.s.d.products[productID] = p
	return nil
}

func (r *inventoryRepo) IncreaseVariantStock(_ context.Context, productID, variantID int64, qty int64) error {
	p, ok := r.s.d.products[productID]
	if !ok {
		return repo.ErrNotFound
	}
	for i := range p.Variants {
		if p.Variants[i].ID == variantID {
			p.Variants[i].Stock += qty
			p.Stock += qty
			r.s.d.products[productID] = p
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *inventoryRepo) CreateAdjustment(_ context.Context, adj model.InventoryAdjustment) error {
	adj.ID = r.s.d.nextID()
	r.s.d.adjustments = append(r.s.d.adjustments, adj)
	return nil
}

type orderRepo struct{ s *Store }

func (r *orderRepo) FindByID(_ context.Context, orderID int64) (model.Order, error) {
	o, ok := r.s.d.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (r *orderRepo) FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error) {
	return r.FindByID(ctx, orderID)
}

func (r *orderRepo) sorted(filter func(model.Order) bool) []model.Order {
	out := []model.Order{}
	for _, o := range r.s.d.orders {
		if filter(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *orderRepo) ListByUserID(_ context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	all := r.sorted(func(o model.Order) bool { return o.UserID == userID })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (r *orderRepo) ListAdmin(_ context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	all := r.sorted(func(o model.Order) bool {
		if f.Status != "" && string(o.Status) != f.Status {
			return false
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			return false
		}
		if f.From != nil && o.CreatedAt.Before(*f.From) {
			return false
		}
		if f.To != nil && o.CreatedAt.After(*f.To) {
			return false
		}
		return true
	})
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r *orderRepo) Create(_ context.Context, o model.Order) (model.Order, error) {
	if err := r.s.fail("Orders.Create"); err != nil {
		return model.Order{}, err
	}
	for _, ex := range r.s.d.orders {
		if ex.OrderNumber == o.OrderNumber {
			return model.Order{}, repo.ErrDuplicateKey
		}
	}
	o.ID = r.s.d.nextID()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	o.UpdatedAt = o.CreatedAt
	o.Items = nil
	r.s.d.orders[o.ID] = o
	return o, nil
}

func (r *orderRepo) UpdateStatus(_ context.Context, orderID int64, from, to model.OrderStatus, at time.Time) (bool, error) {
	o, ok := r.s.d.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	switch to {
	case model.OrderStatusShipped:
		o.ShippedAt = ptrTime(at)
	case model.OrderStatusDelivered:
		o.DeliveredAt = ptrTime(at)
	case model.OrderStatusCancelled:
		o.CancelledAt = ptrTime(at)
	}
	r.s.d.orders[orderID] = o
	return true, nil
}

func (r *orderRepo) ClaimPaid(_ context.Context, orderID int64, at time.Time) (bool, error) {
	if err := r.s.fail("Orders.ClaimPaid"); err != nil {
		return false, err
	}
	o, ok := r.s.d.orders[orderID]
	if !ok || o.IsPaid || o.Status != model.OrderStatusPending {
		return false, nil
	}
	o.IsPaid = true
	o.PaidAt = ptrTime(at)
	o.Status = model.OrderStatusProcessing
	r.s.d.orders[orderID] = o
	return true, nil
}

func (r *orderRepo) ClaimStockDecrement(_ context.Context, orderID int64) (bool, error) {
	o, ok := r.s.d.orders[orderID]
	if !ok || o.StockDecremented || !o.IsPaid || o.Status == model.OrderStatusCancelled {
		return false, nil
	}
	o.StockDecremented = true
	r.s.d.orders[orderID] = o
	return true, nil
}

func (r *orderRepo) ClearStockDecremented(_ context.Context, orderID int64) (bool, error) {
	o, ok := r.s.d.orders[orderID]
	if !ok || !o.StockDecremented {
		return false, nil
	}
	o.StockDecremented = false
	r.s.d.orders[orderID] = o
	return true, nil
}

type orderItemRepo struct{ s *Store }

func (r *orderItemRepo) CreateBulk(_ context.Context, orderID int64, items []model.OrderItem) error {
	for _, it := range items {
		it.ID = r.s.d.nextID()
		it.OrderID = orderID
		r.s.d.orderItems[orderID] = append(r.s.d.orderItems[orderID], it)
	}
	return nil
}

func (r *orderItemRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, r.s.d.orderItems[orderID]...), nil
}

func (r *orderItemRepo) ListByOrderIDs(_ context.Context, orderIDs []int64) (map[int64][]model.OrderItem, error) {
	if err := r.s.fail("OrderItems.ListByOrderIDs"); err != nil {
		return nil, err
	}
	out := make(map[int64][]model.OrderItem, len(orderIDs))
	for _, id := range orderIDs {
		if items, ok := r.s.d.orderItems[id]; ok {
			out[id] = append([]model.OrderItem{}, items...)
		}
	}
	return out, nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(_ context.Context, p model.Payment) (model.Payment, error) {
	if err := r.s.fail("Payments.Create"); err != nil {
		return model.Payment{}, err
	}
	p.ID = r.s.d.nextID()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.s.d.payments[p.ID] = p
	return p, nil
}

func (r *paymentRepo) FindByID(_ context.Context, id int64) (model.Payment, error) {
	p, ok := r.s.d.payments[id]
	if !ok {
		return model.Payment{}, repo.ErrNotFound
	}
	return p, nil
}

func (r *paymentRepo) ListByOrderID(_ context.Context, orderID int64) ([]model.Payment, error) {
	out := []model.Payment{}
	for _, p := range r.s.d.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *paymentRepo) FindByTransactionID(_ context.Context, provider model.PaymentProvider, txID string) (model.Payment, error) {
	var found *model.Payment
	for _, p := range r.s.d.payments {
		if p.Provider == provider && p.TransactionID == txID {
			if found == nil || p.ID > found.ID {
				cp := p
				found = &cp
			}
		}
	}
	if found == nil {
		return model.Payment{}, repo.ErrNotFound
	}
	return *found, nil
}

func (r *paymentRepo) List(_ context.Context, f repo.PaymentListFilter) ([]model.Payment, int64, error) {
	all := []model.Payment{}
	for _, p := range r.s.d.payments {
		if f.Provider != "" && string(p.Provider) != f.Provider {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r *paymentRepo) MarkPaid(_ context.Context, id int64, at time.Time) (bool, error) {
	p, ok := r.s.d.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusPaid
	p.PaidAt = ptrTime(at)
	r.s.d.payments[id] = p
	return true, nil
}

func (r *paymentRepo) MarkFailed(_ context.Context, id int64) (bool, error) {
	p, ok := r.s.d.payments[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	r.s.d.payments[id] = p
	return true, nil
}

func (r *paymentRepo) SaveWebhookData(_ context.Context, id int64, raw string) error {
	p, ok := r.s.d.payments[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.RawWebhookData = raw
	r.s.d.payments[id] = p
	return nil
}

type couponRepo struct{ s *Store }

func (r *couponRepo) FindByCode(_ context.Context, code string) (model.Coupon, error) {
	for _, c := range r.s.d.coupons {
		if c.Code == strings.ToUpper(code) {
			return c, nil
		}
	}
	return model.Coupon{}, repo.ErrNotFound
}

func (r *couponRepo) Create(_ context.Context, c model.Coupon) (model.Coupon, error) {
	c.Code = strings.ToUpper(c.Code)
	for _, ex := range r.s.d.coupons {
		if ex.Code == c.Code {
			return model.Coupon{}, repo.ErrDuplicateKey
		}
	}
	c.ID = r.s.d.nextID()
	r.s.d.coupons[c.ID] = c
	return c, nil
}

func (r *couponRepo) IncrementUsageIfAvailable(_ context.Context, couponID int64, now time.Time) (bool, error) {
	c, ok := r.s.d.coupons[couponID]
	if !ok || !c.IsUsable(now) {
		return false, nil
	}
	c.UsageCount++
	r.s.d.coupons[couponID] = c
	return true, nil
}

type giftCardRepo struct{ s *Store }

func (r *giftCardRepo) FindByCode(_ context.Context, code string) (model.GiftCard, error) {
	for _, g := range r.s.d.giftCards {
		if g.Code == strings.ToUpper(code) {
			return g, nil
		}
	}
	return model.GiftCard{}, repo.ErrNotFound
}

func (r *giftCardRepo) Create(_ context.Context, g model.GiftCard) (model.GiftCard, error) {
	g.Code = strings.ToUpper(g.Code)
	for _, ex := range r.s.d.giftCards {
		if ex.Code == g.Code {
			return model.GiftCard{}, repo.ErrDuplicateKey
		}
	}
	g.ID = r.s.d.nextID()
	r.s.d.giftCards[g.ID] = g
	return g, nil
}

func (r *giftCardRepo) DebitIfEnough(_ context.Context, giftCardID int64, amount decimal.Decimal, now time.Time) (bool, error) {
	g, ok := r.s.d.giftCards[giftCardID]
	if !ok || !g.IsActive || !decEqualOrMore(g.CurrentBalance, amount) {
		return false, nil
	}
	if g.ExpiryDate != nil && !now.Before(*g.ExpiryDate) {
		return false, nil
	}
	g.CurrentBalance = g.CurrentBalance.Sub(amount)
	r.s.d.giftCards[giftCardID] = g
	return true, nil
}

func (r *giftCardRepo) CreateUsage(_ context.Context, u model.GiftCardUsage) error {
	u.ID = r.s.d.nextID()
	r.s.d.giftCardUsages = append(r.s.d.giftCardUsages, u)
	return nil
}

func (r *giftCardRepo) ListUsages(_ context.Context, giftCardID int64) ([]model.GiftCardUsage, error) {
	out := []model.GiftCardUsage{}
	for _, u := range r.s.d.giftCardUsages {
		if u.GiftCardID == giftCardID {
			out = append(out, u)
		}
	}
	return out, nil
}

type shipmentRepo struct{ s *Store }

func (r *shipmentRepo) Create(_ context.Context, sh model.Shipment) (model.Shipment, error) {
	if err := r.s.fail("Shipments.Create"); err != nil {
		return model.Shipment{}, err
	}
	sh.ID = r.s.d.nextID()
	r.s.d.shipments[sh.ID] = sh
	return sh, nil
}

func (r *shipmentRepo) FindByID(_ context.Context, id int64) (model.Shipment, error) {
	sh, ok := r.s.d.shipments[id]
	if !ok {
		return model.Shipment{}, repo.ErrNotFound
	}
	return sh, nil
}

func (r *shipmentRepo) FindByOrderID(_ context.Context, orderID int64) ([]model.Shipment, error) {
	out := []model.Shipment{}
	for _, sh := range r.s.d.shipments {
		if sh.OrderID == orderID {
			out = append(out, sh)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *shipmentRepo) List(_ context.Context, f repo.ShipmentListFilter) ([]model.Shipment, int64, error) {
	all := []model.Shipment{}
	for _, sh := range r.s.d.shipments {
		if f.Status != "" && string(sh.Status) != f.Status {
			continue
		}
		all = append(all, sh)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return paginate(all, f.Page, f.Limit), int64(len(all)), nil
}

func (r *shipmentRepo) UpdateStatus(_ context.Context, id int64, from, to model.ShipmentStatus, at time.Time) (bool, error) {
	sh, ok := r.s.d.shipments[id]
	if !ok || sh.Status != from {
		return false, nil
	}
	sh.Status = to
	switch to {
	case model.ShipmentStatusInTransit:
		sh.ShippedAt = ptrTime(at)
	case model.ShipmentStatusDelivered:
		sh.DeliveredAt = ptrTime(at)
	}
	r.s.d.shipments[id] = sh
	return true, nil
}

type auditLogRepo struct{ s *Store }

func (r *auditLogRepo) Create(_ context.Context, log model.AuditLog) error {
	log.ID = r.s.d.nextID()
	r.s.d.auditLogs = append(r.s.d.auditLogs, log)
	return nil
}

func (r *auditLogRepo) List(_ context.Context, f repo.AuditLogFilter) ([]model.AuditLog, int64, error) {
	out := []model.AuditLog{}
	for i := len(r.s.d.auditLogs) - 1; i >= 0; i-- {
		l := r.s.d.auditLogs[i]
		if f.ResourceID != nil && l.ResourceID != *f.ResourceID {
			continue
		}
		if f.Action != nil && l.Action != *f.Action {
			continue
		}
		if f.ActorUserID != nil && l.ActorUserID != *f.ActorUserID {
			continue
		}
		if f.ResourceType != nil && l.ResourceType != *f.ResourceType {
			continue
		}
		if f.CreatedFrom != nil && l.CreatedAt.Before(*f.CreatedFrom) {
			continue
		}
		if f.CreatedTo != nil && l.CreatedAt.After(*f.CreatedTo) {
			continue
		}
		out = append(out, l)
	}
	return paginate(out, f.Page, f.Limit), int64(len(out)), nil
}
