// Package repotest はテスト用のインメモリ実装。
// WithinTxは全体を1本のロックで直列化し、エラー時はスナップショットに戻す。
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
)

type data struct {
	seq            int64
	products       map[int64]model.Product
	orders         map[int64]model.Order
	orderItems     map[int64][]model.OrderItem
	payments       map[int64]model.Payment
	coupons        map[int64]model.Coupon
	giftCards      map[int64]model.GiftCard
	giftCardUsages []model.GiftCardUsage
	shipments      map[int64]model.Shipment
	auditLogs      []model.AuditLog
	adjustments    []model.InventoryAdjustment
}

func newData() *data {
	return &data{
		products:   map[int64]model.Product{},
		orders:     map[int64]model.Order{},
		orderItems: map[int64][]model.OrderItem{},
		payments:   map[int64]model.Payment{},
		coupons:    map[int64]model.Coupon{},
		giftCards:  map[int64]model.GiftCard{},
		shipments:  map[int64]model.Shipment{},
	}
}

func (d *data) clone() *data {
	c := &data{
		seq:            d.seq,
		products:       make(map[int64]model.Product, len(d.products)),
		orders:         make(map[int64]model.Order, len(d.orders)),
		orderItems:     make(map[int64][]model.OrderItem, len(d.orderItems)),
		payments:       make(map[int64]model.Payment, len(d.payments)),
		coupons:        make(map[int64]model.Coupon, len(d.coupons)),
		giftCards:      make(map[int64]model.GiftCard, len(d.giftCards)),
		giftCardUsages: append([]model.GiftCardUsage(nil), d.giftCardUsages...),
		shipments:      make(map[int64]model.Shipment, len(d.shipments)),
		auditLogs:      append([]model.AuditLog(nil), d.auditLogs...),
		adjustments:    append([]model.InventoryAdjustment(nil), d.adjustments...),
	}
	for k, v := range d.products {
		v.Variants = append([]model.ProductVariant(nil), v.Variants...)
		c.products[k] = v
	}
	for k, v := range d.orders {
		c.orders[k] = v
	}
	for k, v := range d.orderItems {
		c.orderItems[k] = append([]model.OrderItem(nil), v...)
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.coupons {
		c.coupons[k] = v
	}
	for k, v := range d.giftCards {
		c.giftCards[k] = v
	}
	for k, v := range d.shipments {
		c.shipments[k] = v
	}
	return c
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

// Store は全リポジトリのデータを持つ
type Store struct {
	mu     sync.Mutex
	d      *data
	failOn map[string]error
	// WithinTxが呼ばれた回数
	TxCount int
}

func NewStore() *Store {
	return &Store{d: newData(), failOn: map[string]error{}}
}

// opは "Payments.Create" の形式
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *Store) fail(op string) error {
	return s.failOn[op]
}

func (s *Store) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TxCount++

	snapshot := s.d.clone()
	if err := fn(&txRepos{s: s}); err != nil {
		s.d = snapshot
		return err
	}
	return nil
}

// テストの準備・検証用（ロックを取る）

func (s *Store) SeedProduct(p model.Product) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.d.nextID()
	}
	p.Slug = strings.ToLower(p.Slug)
	for i := range p.Variants {
		if p.Variants[i].ID == 0 {
			p.Variants[i].ID = s.d.nextID()
		}
		p.Variants[i].ProductID = p.ID
	}
	s.d.products[p.ID] = p
	return p
}

func (s *Store) SeedCoupon(c model.Coupon) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.d.nextID()
	}
	c.Code = strings.ToUpper(c.Code)
	s.d.coupons[c.ID] = c
	return c
}

func (s *Store) SeedGiftCard(g model.GiftCard) model.GiftCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == 0 {
		g.ID = s.d.nextID()
	}
	g.Code = strings.ToUpper(g.Code)
	s.d.giftCards[g.ID] = g
	return g
}

func (s *Store) SeedOrder(o model.Order, items []model.OrderItem) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.d.nextID()
	}
	for i := range items {
		items[i].ID = s.d.nextID()
		items[i].OrderID = o.ID
	}
	s.d.orders[o.ID] = o
	s.d.orderItems[o.ID] = items
	return o
}

func (s *Store) SeedPayment(p model.Payment) model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.d.nextID()
	}
	s.d.payments[p.ID] = p
	return p
}

func (s *Store) Product(id int64) model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.products[id]
}

func (s *Store) Order(id int64) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.orders[id]
}

func (s *Store) Orders() []model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.d.orders))
	for _, o := range s.d.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) OrderItems(orderID int64) []model.OrderItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderItem(nil), s.d.orderItems[orderID]...)
}

func (s *Store) Payments() []model.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Payment, 0, len(s.d.payments))
	for _, p := range s.d.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Coupon(id int64) model.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.coupons[id]
}

func (s *Store) GiftCard(id int64) model.GiftCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.d.giftCards[id]
}

func (s *Store) GiftCardUsages() []model.GiftCardUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.GiftCardUsage(nil), s.d.giftCardUsages...)
}

func (s *Store) Shipments() []model.Shipment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Shipment, 0, len(s.d.shipments))
	for _, sh := range s.d.shipments {
		out = append(out, sh)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditLog(nil), s.d.auditLogs...)
}

func (s *Store) Adjustments() []model.InventoryAdjustment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InventoryAdjustment(nil), s.d.adjustments...)
}

type txRepos struct {
	s *Store
}

func (r *txRepos) Orders() repo.OrderRepository         { return &orderRepo{s: r.s} }
func (r *txRepos) OrderItems() repo.OrderItemRepository { return &orderItemRepo{s: r.s} }
func (r *txRepos) Products() repo.ProductRepository     { return &productRepo{s: r.s} }
func (r *txRepos) Inventory() repo.InventoryRepository  { return &inventoryRepo{s: r.s} }
func (r *txRepos) Payments() repo.PaymentRepository     { return &paymentRepo{s: r.s} }
func (r *txRepos) Coupons() repo.CouponRepository       { return &couponRepo{s: r.s} }
func (r *txRepos) GiftCards() repo.GiftCardRepository   { return &giftCardRepo{s: r.s} }
func (r *txRepos) Shipments() repo.ShipmentRepository   { return &shipmentRepo{s: r.s} }
func (r *txRepos) AuditLogs() repo.AuditLogRepository   { return &auditLogRepo{s: r.s} }

func paginate[T any](list []T, page, limit int) []T {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	start := (page - 1) * limit
	if start >= len(list) {
		return []T{}
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

func decEqualOrMore(a, b decimal.Decimal) bool {
	return a.GreaterThanOrEqual(b)
}

func ptrTime(t time.Time) *time.Time { return &t }
