package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"ecshop/internal/domain/model"
	"ecshop/internal/notification"
	repo "ecshop/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaceOrder_TotalsAndNoStockMovement(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)

	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 2)}})

	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
	assert.Equal(t, "200.00", o.ItemsSubtotal.StringFixed(2))
	assert.Equal(t, "0.00", o.DiscountTotal.StringFixed(2))
	assert.Equal(t, "250.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, model.OrderStatusPending, o.Status)
	assert.False(t, o.IsPaid)
	assert.False(t, o.StockDecremented)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Product product-a", o.Items[0].ProductName)

	// 在庫は決済確定まで動かない
	assert.Equal(t, int64(5), env.store.Product(a.ID).Stock)
	assert.False(t, env.store.Order(o.ID).StockDecremented)
}

func TestPlaceOrder_CouponScenario(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	c := env.seedCoupon("TENOFF", model.DiscountTypePercentage, "10", "100", nil)

	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 2)}, CouponCode: "tenoff"})

	assert.Equal(t, "20.00", o.DiscountTotal.StringFixed(2))
	assert.Equal(t, "230.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, "TENOFF", o.CouponCode)
	assert.Equal(t, int64(1), env.store.Coupon(c.ID).UsageCount)
}

func TestPlaceOrder_InsufficientStockCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 1)
	c := env.seedCoupon("TENOFF", model.DiscountTypePercentage, "10", "0", nil)

	_, err := env.orders.Preview(context.Background(), PreviewInput{Lines: []CartLine{line(a, 2)}})
	requireCode(t, err, CodeInsufficientStock)

	_, err = env.orders.PlaceOrder(context.Background(), env.user.ID, PlaceOrderInput{
		Lines:           []CartLine{line(a, 2)},
		ShippingAddress: testAddress,
		PaymentMethod:   model.PaymentMethodCard,
		CouponCode:      "TENOFF",
	})
	requireCode(t, err, CodeInsufficientStock)
	assert.Empty(t, env.store.Orders())
	assert.Equal(t, int64(0), env.store.Coupon(c.ID).UsageCount)
}

func TestPlaceOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)

	_, err := env.orders.PlaceOrder(context.Background(), env.user.ID, PlaceOrderInput{
		Lines:         []CartLine{line(a, 1)},
		PaymentMethod: model.PaymentMethodCard,
	})
	requireCode(t, err, CodeValidation)

	_, err = env.orders.PlaceOrder(context.Background(), env.user.ID, PlaceOrderInput{
		Lines:           []CartLine{line(a, 1)},
		ShippingAddress: testAddress,
		PaymentMethod:   "bitcoin",
	})
	requireCode(t, err, CodeValidation)

	_, err = env.orders.PlaceOrder(context.Background(), 0, PlaceOrderInput{})
	requireCode(t, err, CodeUnauthorized)
}

func TestPlaceOrder_CouponUsageLimitUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 50)
	c := env.seedCoupon("ONLYONE", model.DiscountTypeFixed, "10", "0", ptr[int64](1))

	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.orders.PlaceOrder(context.Background(), env.user.ID, PlaceOrderInput{
				Lines:           []CartLine{line(a, 1)},
				ShippingAddress: testAddress,
				PaymentMethod:   model.PaymentMethodCard,
				CouponCode:      "ONLYONE",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		requireCode(t, err, CodeValidation)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(1), env.store.Coupon(c.ID).UsageCount)
	assert.Len(t, env.store.Orders(), 1)
}

func TestPlaceOrder_GiftCardNeverGoesNegative(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 50)
	g := env.seedGiftCard("GC-TEST", "150")

	first := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}, GiftCardCode: "GC-TEST"})
	assert.Equal(t, "100.00", first.DiscountTotal.StringFixed(2))
	assert.Equal(t, "50.00", first.TotalAmount.StringFixed(2))
	assert.Equal(t, "GC-TEST", first.GiftCardCode)

	second := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}, GiftCardCode: "GC-TEST"})
	assert.Equal(t, "50.00", second.DiscountTotal.StringFixed(2))
	assert.Equal(t, "100.00", second.TotalAmount.StringFixed(2))

	// 残高0のカードは使えない
	_, err := env.orders.PlaceOrder(context.Background(), env.user.ID, PlaceOrderInput{
		Lines:           []CartLine{line(a, 1)},
		ShippingAddress: testAddress,
		PaymentMethod:   model.PaymentMethodCard,
		GiftCardCode:    "GC-TEST",
	})
	requireCode(t, err, CodeValidation)

	assert.True(t, env.store.GiftCard(g.ID).CurrentBalance.IsZero())
	usages := env.store.GiftCardUsages()
	require.Len(t, usages, 2)
	assert.Equal(t, first.ID, usages[0].OrderID)
	assert.Equal(t, "100.00", usages[0].Amount.StringFixed(2))
	assert.Equal(t, "50.00", usages[1].Amount.StringFixed(2))
}

func TestPlaceOrder_RetriesOrderNumberCollision(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	c := env.seedCoupon("TENOFF", model.DiscountTypePercentage, "10", "0", nil)
	env.store.SeedOrder(model.Order{OrderNumber: "ORD-TAKEN", UserID: env.user.ID, Status: model.OrderStatusPending}, nil)

	numbers := []string{"ORD-TAKEN", "ORD-FRESH"}
	env.orders.newOrderNumber = func() string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}, CouponCode: "TENOFF"})
	assert.Equal(t, "ORD-FRESH", o.OrderNumber)
	// 1回目のTxは戻っているので1回分だけ
	assert.Equal(t, int64(1), env.store.Coupon(c.ID).UsageCount)
}

func TestPlaceOrder_RollsBackOnWriteFailure(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	c := env.seedCoupon("TENOFF", model.DiscountTypePercentage, "10", "0", nil)
	env.store.FailOn("Orders.Create", errors.New("connection reset"))

	_, err := env.orders.PlaceOrder(context.Background(), env.user.ID, PlaceOrderInput{
		Lines:           []CartLine{line(a, 1)},
		ShippingAddress: testAddress,
		PaymentMethod:   model.PaymentMethodCard,
		CouponCode:      "TENOFF",
	})
	requireCode(t, err, CodeInternal)
	assert.Equal(t, int64(0), env.store.Coupon(c.ID).UsageCount)
	assert.Empty(t, env.store.Orders())
}

func TestPreview_DoesNotWrite(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	c := env.seedCoupon("TENOFF", model.DiscountTypePercentage, "10", "100", nil)
	g := env.seedGiftCard("GC-1", "20")

	out, err := env.orders.Preview(context.Background(), PreviewInput{
		Lines:        []CartLine{line(a, 2)},
		CouponCode:   "TENOFF",
		GiftCardCode: "GC-1",
	})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "product-a", out.Items[0].ProductSlug)
	assert.Equal(t, "20.00", out.CouponDiscount.StringFixed(2))
	assert.Equal(t, "20.00", out.GiftCardDiscount.StringFixed(2))
	assert.Equal(t, "210.00", out.TotalAmount.StringFixed(2))

	assert.Equal(t, int64(0), env.store.Coupon(c.ID).UsageCount)
	assert.Equal(t, "20.00", env.store.GiftCard(g.ID).CurrentBalance.StringFixed(2))
	assert.Empty(t, env.store.Orders())
}

func TestListMyOrdersAndDetailVisibility(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	o1 := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}})
	o2 := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 2)}})

	list, err := env.orders.ListMyOrders(context.Background(), env.user.ID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)
	require.Len(t, list.Items, 1)
	assert.Equal(t, o2.ID, list.Items[0].ID)
	assert.Len(t, list.Items[0].Items, 1)

	_, err = env.orders.ListMyOrders(context.Background(), env.user.ID, 1, 101)
	requireCode(t, err, CodeValidation)

	other := Actor{UserID: env.user.ID + 100, Role: model.RoleUser}
	_, err = env.orders.GetOrderDetail(context.Background(), other, o1.ID)
	requireCode(t, err, CodeNotFound)

	admin := Actor{UserID: 999, Role: model.RoleAdmin}
	got, err := env.orders.GetOrderDetail(context.Background(), admin, o1.ID)
	require.NoError(t, err)
	assert.Equal(t, o1.OrderNumber, got.OrderNumber)
}

func TestCancel_PendingOrder(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 2)}})

	out, err := env.orders.Cancel(context.Background(), env.customer(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelled, out.Status)
	assert.NotNil(t, out.CancelledAt)
	assert.Equal(t, int64(5), env.store.Product(a.ID).Stock)
	assert.Empty(t, env.alerter.kinds())
	// 本人のキャンセルは監査ログ対象外
	assert.Empty(t, env.store.AuditLogs())

	_, err = env.orders.Cancel(context.Background(), env.customer(), o.ID)
	requireCode(t, err, CodeInvalidTransition)
}

func TestCancel_PaidOrderRestocksAndAlerts(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 2)}})

	res, err := env.payments.FinishOrder(context.Background(), o.ID)
	require.NoError(t, err)
	require.True(t, res.StockReserved)
	require.Equal(t, int64(3), env.store.Product(a.ID).Stock)

	admin := Actor{UserID: 900, Role: model.RoleAdmin}
	out, err := env.orders.Cancel(context.Background(), admin, o.ID)
	require.NoError(t, err)
	assert.False(t, out.StockDecremented)
	assert.Equal(t, int64(5), env.store.Product(a.ID).Stock)
	assert.Equal(t, []notification.AlertKind{notification.AlertRefundRequired}, env.alerter.kinds())

	logs := env.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionCancelOrder, logs[0].Action)
	assert.Equal(t, `{"status":"processing"}`, logs[0].BeforeJSON)
}

func TestCancel_ShippedOrderIsRejected(t *testing.T) {
	env := newTestEnv(t)
	o := env.store.SeedOrder(model.Order{OrderNumber: "ORD-S", UserID: env.user.ID, Status: model.OrderStatusShipped, IsPaid: true}, nil)

	_, err := env.orders.Cancel(context.Background(), env.customer(), o.ID)
	requireCode(t, err, CodeInvalidTransition)

	_, err = env.orders.Cancel(context.Background(), Actor{UserID: env.user.ID + 1, Role: model.RoleUser}, o.ID)
	requireCode(t, err, CodeNotFound)
}

func TestAdminUpdateStatus(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}})

	// 未払いはprocessingにできない
	_, err := env.admin.UpdateStatus(context.Background(), 900, o.ID, AdminUpdateOrderStatusInput{Status: "processing"})
	requireCode(t, err, CodeValidation)

	_, err = env.admin.UpdateStatus(context.Background(), 900, o.ID, AdminUpdateOrderStatusInput{Status: "delivered"})
	requireCode(t, err, CodeInvalidTransition)

	_, err = env.admin.UpdateStatus(context.Background(), 900, o.ID, AdminUpdateOrderStatusInput{Status: "lost"})
	requireCode(t, err, CodeValidation)

	_, err = env.payments.FinishOrder(context.Background(), o.ID)
	require.NoError(t, err)

	out, err := env.admin.UpdateStatus(context.Background(), 900, o.ID, AdminUpdateOrderStatusInput{Status: " Shipped "})
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, out.Status)
	assert.NotNil(t, out.ShippedAt)

	logs := env.store.AuditLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, logs[0].Action)
	assert.Equal(t, `{"status":"shipped"}`, logs[0].AfterJSON)

	// cancelledはキャンセル処理に回る（shippedからは不可）
	_, err = env.admin.UpdateStatus(context.Background(), 900, o.ID, AdminUpdateOrderStatusInput{Status: "cancelled"})
	requireCode(t, err, CodeInvalidTransition)
}

func TestAdminList(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}})
	env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 1)}})
	_, err := env.orders.Cancel(context.Background(), env.customer(), o.ID)
	require.NoError(t, err)

	out, err := env.admin.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 10, Status: "cancelled"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Total)
	assert.Equal(t, o.ID, out.Items[0].ID)

	_, err = env.admin.List(context.Background(), repo.AdminOrderListFilter{Page: 1, Limit: 10, Status: "weird"})
	requireCode(t, err, CodeValidation)
}

func TestInvoice(t *testing.T) {
	env := newTestEnv(t)
	a := env.seedProduct("product-a", "100", 5)
	o := env.place(t, PlaceOrderInput{Lines: []CartLine{line(a, 2)}})

	pdf, name, err := env.orders.Invoice(context.Background(), env.customer(), o.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.Equal(t, "invoice-"+o.OrderNumber+".pdf", name)

	_, _, err = env.orders.Invoice(context.Background(), Actor{UserID: env.user.ID + 1, Role: model.RoleUser}, o.ID)
	requireCode(t, err, CodeNotFound)
}
