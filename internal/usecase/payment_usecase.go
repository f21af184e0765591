package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ecshop/internal/domain/model"
	"ecshop/internal/idempotency"
	"ecshop/internal/notification"
	"ecshop/internal/payment"
	repo "ecshop/internal/repository"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type PaymentUsecase struct {
	tx          repo.TransactionManager
	providers   *payment.Registry
	reservation InventoryReservation
	products    *ProductCache
	users       repo.UserRepository
	sender      notification.Sender
	alerter     notification.Alerter
	seen        idempotency.Checker
	log         *slog.Logger
	tracer      trace.Tracer
	currency    string
	now         func() time.Time
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	providers *payment.Registry,
	products *ProductCache,
	users repo.UserRepository,
	sender notification.Sender,
	alerter notification.Alerter,
	seen idempotency.Checker,
	log *slog.Logger,
	currency string,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:        tx,
		providers: providers,
		products:  products,
		users:     users,
		sender:    sender,
		alerter:   alerter,
		seen:      seen,
		log:       log,
		tracer:    otel.Tracer("ecshop/usecase"),
		currency:  currency,
		now:       time.Now,
	}
}

type CreatePaymentInput struct {
	OrderID  int64
	Provider model.PaymentProvider
	Method   model.PaymentMethod
}

type CreatePaymentOutput struct {
	Payment model.Payment `json:"payment"`
	// iframe_url / client_secret / approve_url など
	ProviderData map[string]any `json:"provider_data"`
	Shipment     *model.Shipment `json:"shipment,omitempty"`
}

// POST /payments
// 外部APIは書き込みの前に呼ぶ。失敗したら何も保存しない
func (u *PaymentUsecase) CreatePayment(ctx context.Context, actor Actor, in CreatePaymentInput) (CreatePaymentOutput, error) {
	ctx, span := u.tracer.Start(ctx, "PaymentUsecase.CreatePayment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", in.OrderID),
		attribute.String("payment.provider", string(in.Provider)),
	)

	out, err := u.createPayment(ctx, actor, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create payment failed")
		return CreatePaymentOutput{}, err
	}
	return out, nil
}

func (u *PaymentUsecase) createPayment(ctx context.Context, actor Actor, in CreatePaymentInput) (CreatePaymentOutput, error) {
	if actor.UserID <= 0 {
		return CreatePaymentOutput{}, ErrUnauthorized()
	}
	if in.OrderID <= 0 {
		return CreatePaymentOutput{}, ErrValidation("invalid order_id")
	}
	provider, err := u.providers.Get(in.Provider)
	if err != nil {
		return CreatePaymentOutput{}, ErrValidation("unsupported provider")
	}
	if !in.Method.IsValid() {
		return CreatePaymentOutput{}, ErrValidation("invalid payment method")
	}
	// 代引きは代引きの組み合わせだけ
	if (in.Provider == model.PaymentProviderCOD) != (in.Method == model.PaymentMethodCOD) {
		return CreatePaymentOutput{}, ErrValidation("payment method does not match provider")
	}

	// 事前チェック（読み取りだけ）
	var order model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := findVisibleOrder(ctx, r, actor, in.OrderID)
		if err != nil {
			return err
		}
		if err := checkPayable(ctx, r, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return CreatePaymentOutput{}, err
	}

	intent := payment.Intent{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		Amount:          order.TotalAmount,
		Currency:        u.currency,
		Method:          in.Method,
		ShippingAddress: order.ShippingAddress,
	}
	if user, err := u.users.FindByID(ctx, order.UserID); err == nil {
		intent.CustomerEmail = user.Email
		intent.CustomerName = user.Name
	}

	result, err := provider.CreateIntent(ctx, intent)
	if err != nil {
		u.log.Error("payment provider call failed",
			"provider", in.Provider,
			"order_id", order.ID,
			"err", err,
		)
		return CreatePaymentOutput{}, ErrProvider(string(in.Provider), err)
	}

	var out CreatePaymentOutput
	var items []model.OrderItem
	settled := false
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 行ロックを取ってから重複を見直す
		o, err := r.Orders().FindByIDForUpdate(ctx, order.ID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("order")
		}
		if err != nil {
			return ErrInternal(err)
		}
		if err := checkPayable(ctx, r, o); err != nil {
			return err
		}

		p, err := r.Payments().Create(ctx, model.Payment{
			OrderID:       o.ID,
			Provider:      in.Provider,
			Method:        in.Method,
			Amount:        o.TotalAmount,
			Currency:      u.currency,
			Status:        model.PaymentStatusPending,
			TransactionID: result.TransactionID,
		})
		if err != nil {
			return ErrInternal(err)
		}
		out.Payment = p
		out.ProviderData = result.Payload

		if !provider.SettlesImmediately() {
			return nil
		}

		// 代引き：支払済み・在庫確保・出荷作成まで同じTxで行う
		now := u.now()
		claimed, err := r.Orders().ClaimPaid(ctx, o.ID, now)
		if err != nil {
			return ErrInternal(err)
		}
		if !claimed {
			return ErrAlreadyPaid()
		}
		var reserved bool
		items, reserved, err = u.reserveForOrder(ctx, r, o.ID)
		if err != nil {
			return err
		}
		if !reserved {
			return ErrInternal(errors.New("stock claim lost for cod order"))
		}
		sh, err := r.Shipments().Create(ctx, model.Shipment{
			OrderID:        o.ID,
			Courier:        model.CODCourier,
			TrackingNumber: "COD-" + uuid.NewString(),
			Status:         model.ShipmentStatusPreparing,
			Address:        o.ShippingAddress,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			return ErrInternal(err)
		}
		out.Shipment = &sh
		settled = true
		return nil
	})
	if err != nil {
		return CreatePaymentOutput{}, err
	}

	u.log.Info("payment created",
		"payment_id", out.Payment.ID,
		"order_id", out.Payment.OrderID,
		"provider", out.Payment.Provider,
	)
	if settled {
		u.products.Invalidate(ctx, productIDs(items)...)
		u.log.Info("order settled", "order_id", order.ID, "provider", in.Provider)
		u.notify(ctx, order.ID)
	}
	return out, nil
}

// 支払い可能か。キャンセル済み・支払済み・処理中の決済あり、は不可
func checkPayable(ctx context.Context, r repo.TxRepos, o model.Order) error {
	if o.Status == model.OrderStatusCancelled {
		return ErrValidation("order is cancelled")
	}
	if o.IsPaid {
		return ErrAlreadyPaid()
	}
	existing, err := r.Payments().ListByOrderID(ctx, o.ID)
	if err != nil {
		return ErrInternal(err)
	}
	for _, p := range existing {
		// failedなら再試行できる
		if p.Status == model.PaymentStatusPending || p.Status == model.PaymentStatusPaid {
			return ErrDuplicatePayment()
		}
	}
	return nil
}

// 在庫減算フラグを取れたときだけ在庫を確保する
// フラグを取れなければ（減算済み・キャンセル済み）falseを返す
func (u *PaymentUsecase) reserveForOrder(ctx context.Context, r repo.TxRepos, orderID int64) ([]model.OrderItem, bool, error) {
	claimed, err := r.Orders().ClaimStockDecrement(ctx, orderID)
	if err != nil {
		return nil, false, ErrInternal(err)
	}
	if !claimed {
		return nil, false, nil
	}
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return nil, false, ErrInternal(err)
	}
	if err := u.reservation.Reserve(ctx, r, items); err != nil {
		return nil, false, err
	}
	return items, true, nil
}

type FinishResult struct {
	// この呼び出しが支払済みにした
	Settled bool
	// 在庫を確保できた
	StockReserved bool
	Order         model.Order
}

// 決済確定。何度呼ばれても支払済みにするのは1回だけ
func (u *PaymentUsecase) FinishOrder(ctx context.Context, orderID int64) (FinishResult, error) {
	ctx, span := u.tracer.Start(ctx, "PaymentUsecase.FinishOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID))

	var res FinishResult
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		claimed, err := r.Orders().ClaimPaid(ctx, orderID, u.now())
		if err != nil {
			return ErrInternal(err)
		}
		res.Settled = claimed
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound("order")
		}
		if err != nil {
			return ErrInternal(err)
		}
		res.Order = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "claim paid failed")
		return FinishResult{}, err
	}
	if !res.Settled {
		// 既に支払済み、またはキャンセル済み
		return res, nil
	}
	u.log.Info("order settled", "order_id", orderID)

	var items []model.OrderItem
	var reserved bool
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, reserved, err = u.reserveForOrder(ctx, r, orderID)
		return err
	})
	if err == nil && !reserved {
		// 支払確定とフラグ取得の間にキャンセルされた。返金アラートはCancel側で出る
		u.log.Warn("order cancelled before stock reservation", "order_id", orderID)
		res.Order.Status = model.OrderStatusCancelled
		return res, nil
	}
	if err != nil {
		// 支払いは確定済み。在庫は運用で対応する
		span.RecordError(err)
		u.log.Error("stock reservation failed after payment",
			"order_id", orderID,
			"order_number", res.Order.OrderNumber,
			"err", err,
		)
		u.alerter.Alert(ctx, notification.Alert{
			Kind:    notification.AlertStockReservationFailed,
			OrderID: orderID,
			Message: err.Error(),
			Fields:  map[string]string{"order_number": res.Order.OrderNumber},
			At:      u.now(),
		})
	} else {
		res.StockReserved = true
		res.Order.StockDecremented = true
		u.products.Invalidate(ctx, productIDs(items)...)
	}

	u.notify(ctx, orderID)
	return res, nil
}

// Webhook処理。返り値のエラーはログ用で、handlerは常に200を返す
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, providerName string, req payment.WebhookRequest) error {
	ctx, span := u.tracer.Start(ctx, "PaymentUsecase.HandleWebhook")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", providerName))

	err := u.handleWebhook(ctx, model.PaymentProvider(providerName), req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook failed")
	}
	return err
}

func (u *PaymentUsecase) handleWebhook(ctx context.Context, name model.PaymentProvider, req payment.WebhookRequest) error {
	provider, err := u.providers.Get(name)
	if err != nil {
		return ErrValidation("unsupported provider")
	}
	ev, err := provider.ParseWebhook(ctx, req)
	if err != nil {
		return ErrValidation("invalid webhook: " + err.Error())
	}
	if ev.Ignored || ev.TransactionID == "" {
		return nil
	}

	eventID := ev.EventID
	if eventID == "" {
		eventID = ev.TransactionID + ":" + successLabel(ev.Success)
	}
	key := idempotency.WebhookKey(string(name), eventID)
	dup, err := u.seen.Seen(ctx, key)
	if err != nil {
		// 重複チェックできなくても処理は続ける（確定処理側で排他している）
		u.log.Warn("webhook idempotency check failed", "key", key, "err", err)
	}
	if dup {
		u.log.Info("duplicate webhook ignored", "provider", name, "event_id", eventID)
		return nil
	}

	if err := u.applyWebhook(ctx, name, ev); err != nil {
		// 失敗したらプロバイダの再送で再処理できるようにする
		if ferr := u.seen.Forget(ctx, key); ferr != nil {
			u.log.Warn("webhook idempotency forget failed", "key", key, "err", ferr)
		}
		return err
	}
	return nil
}

func (u *PaymentUsecase) applyWebhook(ctx context.Context, name model.PaymentProvider, ev payment.WebhookEvent) error {
	var p model.Payment
	found := true
	// pending から遷移できたか
	marked := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByTransactionID(ctx, name, ev.TransactionID)
		if errors.Is(err, repo.ErrNotFound) {
			found = false
			return nil
		}
		if err != nil {
			return ErrInternal(err)
		}
		if err := r.Payments().SaveWebhookData(ctx, p.ID, string(ev.Raw)); err != nil {
			return ErrInternal(err)
		}
		if ev.Success {
			marked, err = r.Payments().MarkPaid(ctx, p.ID, u.now())
		} else {
			marked, err = r.Payments().MarkFailed(ctx, p.ID)
		}
		if err != nil {
			return ErrInternal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		u.log.Warn("webhook for unknown transaction", "provider", name, "transaction_id", ev.TransactionID)
		return nil
	}
	if !ev.Success {
		if !marked && p.Status == model.PaymentStatusPaid {
			u.log.Warn("failure event for paid payment ignored", "payment_id", p.ID, "provider", name)
			return nil
		}
		u.log.Info("payment failed", "payment_id", p.ID, "order_id", p.OrderID, "provider", name)
		return nil
	}
	// failed/refunded の決済に成功通知が来た。注文は確定させず運用で突き合わせる
	if !marked && p.Status != model.PaymentStatusPaid {
		u.log.Error("payment state conflict",
			"payment_id", p.ID,
			"order_id", p.OrderID,
			"payment_status", p.Status,
		)
		u.alerter.Alert(ctx, notification.Alert{
			Kind:      notification.AlertPaymentStateConflict,
			OrderID:   p.OrderID,
			PaymentID: p.ID,
			Message:   "success event for " + string(p.Status) + " payment",
			Fields: map[string]string{
				"provider":       string(name),
				"transaction_id": ev.TransactionID,
				"payment_status": string(p.Status),
			},
			At: u.now(),
		})
		return nil
	}

	res, err := u.FinishOrder(ctx, p.OrderID)
	if err != nil {
		return err
	}
	// 入金されたのに注文を確定できなかった（キャンセル済み・別の決済で支払済み）
	if marked && !res.Settled {
		msg := "payment received for already paid order"
		if res.Order.Status == model.OrderStatusCancelled {
			msg = "payment received for cancelled order"
		}
		u.alerter.Alert(ctx, notification.Alert{
			Kind:      notification.AlertRefundRequired,
			OrderID:   p.OrderID,
			PaymentID: p.ID,
			Message:   msg,
			Fields: map[string]string{
				"provider":       string(name),
				"transaction_id": ev.TransactionID,
			},
			At: u.now(),
		})
	}
	return nil
}

// GET /payments/order/:orderId
func (u *PaymentUsecase) GetByOrder(ctx context.Context, actor Actor, orderID int64) ([]model.Payment, error) {
	if actor.UserID <= 0 {
		return nil, ErrUnauthorized()
	}
	if orderID <= 0 {
		return nil, ErrValidation("invalid order_id")
	}
	var out []model.Payment
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := findVisibleOrder(ctx, r, actor, orderID); err != nil {
			return err
		}
		ps, err := r.Payments().ListByOrderID(ctx, orderID)
		if err != nil {
			return ErrInternal(err)
		}
		out = ps
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type PaymentListOutput struct {
	Items []model.Payment `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// 管理者用
func (u *PaymentUsecase) List(ctx context.Context, f repo.PaymentListFilter) (PaymentListOutput, error) {
	if f.Page < 1 {
		return PaymentListOutput{}, ErrValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return PaymentListOutput{}, ErrValidation("invalid limit")
	}
	out := PaymentListOutput{Page: f.Page, Limit: f.Limit}
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items, total, err := r.Payments().List(ctx, f)
		if err != nil {
			return ErrInternal(err)
		}
		out.Items = items
		out.Total = total
		return nil
	})
	if err != nil {
		return PaymentListOutput{}, err
	}
	return out, nil
}

// 確認メール。失敗してもログだけ
func (u *PaymentUsecase) notify(ctx context.Context, orderID int64) {
	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		o.Items, err = r.OrderItems().ListByOrderID(ctx, orderID)
		return err
	})
	if err != nil {
		u.log.Error("order confirmation skipped", "order_id", orderID, "err", err)
		return
	}
	user, err := u.users.FindByID(ctx, o.UserID)
	if err != nil {
		u.log.Error("order confirmation skipped", "order_id", orderID, "err", err)
		return
	}
	if err := u.sender.SendOrderConfirmation(ctx, user.Email, orderSnapshot(o)); err != nil {
		u.log.Error("order confirmation failed", "order_id", orderID, "err", err)
	}
}

func orderSnapshot(o model.Order) notification.OrderSnapshot {
	lines := make([]notification.ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, notification.ItemLine{
			Name:      it.ProductName,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.LineTotal.StringFixed(2),
		})
	}
	return notification.OrderSnapshot{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Items:         lines,
		ItemsSubtotal: o.ItemsSubtotal.StringFixed(2),
		DiscountTotal: o.DiscountTotal.StringFixed(2),
		ShippingFee:   o.ShippingFee.StringFixed(2),
		TotalAmount:   o.TotalAmount.StringFixed(2),
		PaymentMethod: o.PaymentMethod,
		PaidAt:        o.PaidAt,
		ShipTo: notification.ShipToAddress{
			Street:     o.ShippingAddress.Street,
			City:       o.ShippingAddress.City,
			State:      o.ShippingAddress.State,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
	}
}

func successLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
