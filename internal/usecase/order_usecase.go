package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	"ecshop/internal/invoice"
	"ecshop/internal/notification"
	repo "ecshop/internal/repository"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// 注文番号の衝突時にTxごとやり直す回数
const maxPlaceAttempts = 3

type OrderUsecase struct {
	tx          repo.TransactionManager
	pricing     *PricingEngine
	ledger      DiscountLedger
	reservation InventoryReservation
	products    *ProductCache
	users       repo.UserRepository
	alerter     notification.Alerter
	invoices    invoice.Renderer
	log         *slog.Logger
	tracer      trace.Tracer
	currency    string

	newOrderNumber func() string
	now            func() time.Time
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	pricing *PricingEngine,
	products *ProductCache,
	users repo.UserRepository,
	alerter notification.Alerter,
	invoices invoice.Renderer,
	log *slog.Logger,
	currency string,
) *OrderUsecase {
	return &OrderUsecase{
		tx:             tx,
		pricing:        pricing,
		ledger:         NewDiscountLedger(),
		products:       products,
		users:          users,
		alerter:        alerter,
		invoices:       invoices,
		log:            log,
		tracer:         otel.Tracer("ecshop/usecase"),
		currency:       currency,
		newOrderNumber: newOrderNumber,
		now:            time.Now,
	}
}

func newOrderNumber() string {
	return "ORD-" + ulid.Make().String()
}

type PreviewInput struct {
	Lines        []CartLine
	CouponCode   string
	GiftCardCode string
}

type PreviewLine struct {
	ProductID    int64           `json:"product_id"`
	ProductSlug  string          `json:"product_slug"`
	ProductName  string          `json:"product_name"`
	ProductBrand string          `json:"product_brand"`
	VariantID    *int64          `json:"variant_id,omitempty"`
	VariantSize  string          `json:"variant_size,omitempty"`
	VariantColor string          `json:"variant_color,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int64           `json:"quantity"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type PreviewOutput struct {
	Items            []PreviewLine   `json:"items"`
	ItemsSubtotal    decimal.Decimal `json:"items_subtotal"`
	CouponDiscount   decimal.Decimal `json:"coupon_discount"`
	GiftCardDiscount decimal.Decimal `json:"gift_card_discount"`
	DiscountTotal    decimal.Decimal `json:"discount_total"`
	ShippingFee      decimal.Decimal `json:"shipping_fee"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
}

// 見積もり。何も保存しない
func (u *OrderUsecase) Preview(ctx context.Context, in PreviewInput) (PreviewOutput, error) {
	var out PreviewOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		pb, err := u.pricing.Price(ctx, r, PricingInput{
			Lines:        in.Lines,
			CouponCode:   in.CouponCode,
			GiftCardCode: in.GiftCardCode,
		})
		if err != nil {
			return err
		}
		out = toPreviewOutput(pb)
		return nil
	})
	if err != nil {
		return PreviewOutput{}, err
	}
	return out, nil
}

type PlaceOrderInput struct {
	Lines           []CartLine
	ShippingAddress model.ShippingAddress
	PaymentMethod   model.PaymentMethod
	CouponCode      string
	GiftCardCode    string
}

// 注文確定。在庫はここでは減らさない（決済確定時）
func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (model.Order, error) {
	ctx, span := u.tracer.Start(ctx, "OrderUsecase.PlaceOrder")
	defer span.End()

	if userID <= 0 {
		return model.Order{}, ErrUnauthorized()
	}
	if !in.ShippingAddress.IsComplete() {
		return model.Order{}, ErrValidation("shipping address is incomplete")
	}
	if !in.PaymentMethod.IsValid() {
		return model.Order{}, ErrValidation("invalid payment method")
	}

	var created model.Order
	var err error
	for attempt := 1; attempt <= maxPlaceAttempts; attempt++ {
		created, err = u.placeOnce(ctx, userID, in)
		if !errors.Is(err, repo.ErrDuplicateKey) {
			break
		}
		u.log.Warn("order number collision, retrying", "attempt", attempt)
	}
	if errors.Is(err, repo.ErrDuplicateKey) {
		err = ErrInternal(err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "place order failed")
		return model.Order{}, err
	}

	span.SetAttributes(
		attribute.Int64("order.id", created.ID),
		attribute.String("order.number", created.OrderNumber),
	)
	u.log.Info("order placed",
		"order_id", created.ID,
		"order_number", created.OrderNumber,
		"user_id", userID,
		"total", created.TotalAmount.StringFixed(2),
	)
	return created, nil
}

func (u *OrderUsecase) placeOnce(ctx context.Context, userID int64, in PlaceOrderInput) (model.Order, error) {
	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		pb, err := u.pricing.Price(ctx, r, PricingInput{
			Lines:        in.Lines,
			CouponCode:   in.CouponCode,
			GiftCardCode: in.GiftCardCode,
		})
		if err != nil {
			return err
		}

		if pb.Coupon != nil {
			if err := u.ledger.RedeemCoupon(ctx, r, *pb.Coupon); err != nil {
				return err
			}
		}

		now := u.now()
		order := model.Order{
			OrderNumber:      u.newOrderNumber(),
			UserID:           userID,
			ItemsSubtotal:    pb.ItemsSubtotal,
			DiscountTotal:    pb.DiscountTotal,
			ShippingFee:      pb.ShippingFee,
			TotalAmount:      pb.TotalAmount,
			PaymentMethod:    string(in.PaymentMethod),
			Status:           model.OrderStatusPending,
			IsPaid:           false,
			StockDecremented: false,
			ShippingAddress:  trimAddress(in.ShippingAddress),
			PlacedAt:         now,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if pb.Coupon != nil {
			order.CouponCode = pb.Coupon.Code
		}
		if pb.GiftCard != nil && pb.GiftCardDiscount.IsPositive() {
			order.GiftCardCode = pb.GiftCard.Code
		}

		created, err := r.Orders().Create(ctx, order)
		if errors.Is(err, repo.ErrDuplicateKey) {
			return err
		}
		if err != nil {
			return ErrInternal(err)
		}

		items := pb.OrderItems()
		if err := r.OrderItems().CreateBulk(ctx, created.ID, items); err != nil {
			return ErrInternal(err)
		}

		// 使用履歴に注文IDを入れるので注文作成の後
		if pb.GiftCard != nil {
			if err := u.ledger.RedeemGiftCard(ctx, r, *pb.GiftCard, pb.GiftCardDiscount, userID, created.ID); err != nil {
				return err
			}
		}

		stored, err := r.OrderItems().ListByOrderID(ctx, created.ID)
		if err != nil {
			return ErrInternal(err)
		}
		created.Items = stored
		out = created
		return nil
	})
	return out, err
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, ErrUnauthorized()
	}
	if page < 1 {
		return OrderListOutput{}, ErrValidation("invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, ErrValidation("invalid limit")
	}

	out := OrderListOutput{Page: page, Limit: limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return ErrInternal(err)
		}
		out.Items, err = withItems(ctx, r, orders)
		out.Total = total
		return err
	})
	if err != nil {
		return OrderListOutput{}, err
	}
	return out, nil
}

// GET /orders/:id
func (u *OrderUsecase) GetOrderDetail(ctx context.Context, actor Actor, orderID int64) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, ErrUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, ErrValidation("invalid id")
	}

	var out model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findVisibleOrder(ctx, r, actor, orderID)
		if err != nil {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return ErrInternal(err)
		}
		o.Items = items
		out = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	return out, nil
}

// キャンセル。在庫を減らし済みなら戻す。支払済みなら返金アラートを出す（自動返金はしない）
func (u *OrderUsecase) Cancel(ctx context.Context, actor Actor, orderID int64) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, ErrUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, ErrValidation("invalid id")
	}

	var out model.Order
	var restocked []int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("order")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if !actor.canSee(o.UserID) {
			return ErrNotFound("order")
		}
		if !o.Status.IsCancellable() {
			return ErrInvalidTransition(string(o.Status), string(model.OrderStatusCancelled))
		}

		now := u.now()
		ok, err := r.Orders().UpdateStatus(ctx, orderID, o.Status, model.OrderStatusCancelled, now)
		if err != nil {
			return ErrInternal(err)
		}
		if !ok {
			return ErrInvalidTransition(string(o.Status), string(model.OrderStatusCancelled))
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return ErrInternal(err)
		}

		if o.StockDecremented {
			cleared, err := r.Orders().ClearStockDecremented(ctx, orderID)
			if err != nil {
				return ErrInternal(err)
			}
			if cleared {
				if err := u.reservation.Release(ctx, r, items); err != nil {
					return err
				}
				restocked = productIDs(items)
			}
		}

		if actor.IsAdmin() {
			if err := r.AuditLogs().Create(ctx, model.AuditLog{
				ActorUserID:  actor.UserID,
				Action:       model.AuditActionCancelOrder,
				ResourceType: model.AuditResourceOrder,
				ResourceID:   orderID,
				BeforeJSON:   statusJSON(o.Status),
				AfterJSON:    statusJSON(model.OrderStatusCancelled),
				CreatedAt:    now,
			}); err != nil {
				return ErrInternal(err)
			}
		}

		beforeStatus := o.Status
		o.Status = model.OrderStatusCancelled
		o.CancelledAt = &now
		o.StockDecremented = false
		o.Items = items
		out = o
		u.log.Info("order cancelled", "order_id", orderID, "from", beforeStatus, "by", actor.UserID)
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	u.products.Invalidate(ctx, restocked...)
	if out.IsPaid {
		u.alerter.Alert(ctx, notification.Alert{
			Kind:    notification.AlertRefundRequired,
			OrderID: out.ID,
			Message: "paid order cancelled, refund must be issued manually",
			Fields: map[string]string{
				"order_number": out.OrderNumber,
				"amount":       out.TotalAmount.StringFixed(2),
			},
			At: u.now(),
		})
	}
	return out, nil
}

// GET /orders/:id/invoice
func (u *OrderUsecase) Invoice(ctx context.Context, actor Actor, orderID int64) ([]byte, string, error) {
	o, err := u.GetOrderDetail(ctx, actor, orderID)
	if err != nil {
		return nil, "", err
	}

	in := invoice.Input{
		OrderNumber:   o.OrderNumber,
		PlacedAt:      o.PlacedAt,
		Currency:      u.currency,
		ItemsSubtotal: o.ItemsSubtotal.StringFixed(2),
		DiscountTotal: o.DiscountTotal.StringFixed(2),
		ShippingFee:   o.ShippingFee.StringFixed(2),
		TotalAmount:   o.TotalAmount.StringFixed(2),
	}
	if user, err := u.users.FindByID(ctx, o.UserID); err == nil {
		in.CustomerName = user.Name
		in.CustomerEmail = user.Email
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, "", ErrInternal(err)
	}
	for _, it := range o.Items {
		in.Lines = append(in.Lines, invoice.Line{
			Name:      it.ProductName,
			Variant:   variantLabel(it),
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}

	pdf, err := u.invoices.Render(in)
	if err != nil {
		return nil, "", ErrInternal(err)
	}
	return pdf, invoice.FileName(o.OrderNumber), nil
}

func findVisibleOrder(ctx context.Context, r repo.TxRepos, actor Actor, orderID int64) (model.Order, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, ErrNotFound("order")
	}
	if err != nil {
		return model.Order{}, ErrInternal(err)
	}
	if !actor.canSee(o.UserID) {
		return model.Order{}, ErrNotFound("order")
	}
	return o, nil
}

func withItems(ctx context.Context, r repo.TxRepos, orders []model.Order) ([]model.Order, error) {
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	byOrder, err := r.OrderItems().ListByOrderIDs(ctx, ids)
	if err != nil {
		return nil, ErrInternal(err)
	}
	out := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		o.Items = byOrder[o.ID]
		if o.Items == nil {
			o.Items = []model.OrderItem{}
		}
		out = append(out, o)
	}
	return out, nil
}

func toPreviewOutput(pb PriceBreakdown) PreviewOutput {
	lines := make([]PreviewLine, 0, len(pb.Lines))
	for _, l := range pb.Lines {
		pl := PreviewLine{
			ProductID:    l.Product.ID,
			ProductSlug:  l.Product.Slug,
			ProductName:  l.Product.Name,
			ProductBrand: l.Product.Brand,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineTotal:    l.LineTotal,
		}
		if l.Variant != nil {
			id := l.Variant.ID
			pl.VariantID = &id
			pl.VariantSize = l.Variant.Size
			pl.VariantColor = l.Variant.Color
		}
		lines = append(lines, pl)
	}
	return PreviewOutput{
		Items:            lines,
		ItemsSubtotal:    pb.ItemsSubtotal,
		CouponDiscount:   pb.CouponDiscount,
		GiftCardDiscount: pb.GiftCardDiscount,
		DiscountTotal:    pb.DiscountTotal,
		ShippingFee:      pb.ShippingFee,
		TotalAmount:      pb.TotalAmount,
	}
}

func trimAddress(a model.ShippingAddress) model.ShippingAddress {
	return model.ShippingAddress{
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

func variantLabel(it model.OrderItem) string {
	parts := make([]string, 0, 2)
	if it.VariantSize != "" {
		parts = append(parts, it.VariantSize)
	}
	if it.VariantColor != "" {
		parts = append(parts, it.VariantColor)
	}
	return strings.Join(parts, " / ")
}

func statusJSON[S ~string](s S) string {
	return `{"status":"` + string(s) + `"}`
}
