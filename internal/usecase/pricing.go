package usecase

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"ecshop/internal/domain/model"
	repo "ecshop/internal/repository"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// カートの1行。商品はidかslugで指定する
type CartLine struct {
	Ref       model.ProductRef
	VariantID *int64
	Quantity  int64
}

type PricingInput struct {
	Lines        []CartLine
	CouponCode   string
	GiftCardCode string
}

type PricedLine struct {
	Product   model.Product
	Variant   *model.ProductVariant
	Quantity  int64
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type Totals struct {
	ItemsSubtotal    decimal.Decimal
	CouponDiscount   decimal.Decimal
	GiftCardDiscount decimal.Decimal
	DiscountTotal    decimal.Decimal
	ShippingFee      decimal.Decimal
	TotalAmount      decimal.Decimal
}

type PriceBreakdown struct {
	Lines    []PricedLine
	Coupon   *model.Coupon
	GiftCard *model.GiftCard
	Totals
}

// 金額計算だけ。DBには触らない
// couponとgiftCardは適用可能と確認済みのものを渡す
func ComputeTotals(lineTotals []decimal.Decimal, coupon *model.Coupon, giftCard *model.GiftCard, shippingFee decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, lt := range lineTotals {
		subtotal = subtotal.Add(lt)
	}
	subtotal = subtotal.Round(2)

	couponDiscount := decimal.Zero
	if coupon != nil {
		couponDiscount = CouponDiscount(*coupon, subtotal)
	}

	giftDiscount := decimal.Zero
	if giftCard != nil {
		remaining := subtotal.Sub(couponDiscount)
		giftDiscount = decimal.Min(giftCard.CurrentBalance, remaining)
		if giftDiscount.IsNegative() {
			giftDiscount = decimal.Zero
		}
		giftDiscount = giftDiscount.Round(2)
	}

	discount := couponDiscount.Add(giftDiscount)
	total := subtotal.Sub(discount).Add(shippingFee)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		ItemsSubtotal:    subtotal,
		CouponDiscount:   couponDiscount,
		GiftCardDiscount: giftDiscount,
		DiscountTotal:    discount,
		ShippingFee:      shippingFee.Round(2),
		TotalAmount:      total.Round(2),
	}
}

// 値引き額は0〜小計の範囲に丸める
func CouponDiscount(c model.Coupon, subtotal decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.DiscountType {
	case model.DiscountTypePercentage:
		d = subtotal.Mul(c.DiscountValue).Div(hundred)
	default:
		d = c.DiscountValue
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return d.Round(2)
}

type PricingEngine struct {
	shippingFee decimal.Decimal
	now         func() time.Time
}

func NewPricingEngine(shippingFee decimal.Decimal) *PricingEngine {
	return &PricingEngine{shippingFee: shippingFee, now: time.Now}
}

func (e *PricingEngine) ShippingFee() decimal.Decimal { return e.shippingFee }

// 見積もり。読み取りだけで、クーポン回数やギフト残高は変えない
func (e *PricingEngine) Price(ctx context.Context, r repo.TxRepos, in PricingInput) (PriceBreakdown, error) {
	if len(in.Lines) == 0 {
		return PriceBreakdown{}, ErrValidation("cart is empty")
	}
	refs := make([]model.ProductRef, 0, len(in.Lines))
	for _, l := range in.Lines {
		if l.Ref.IsZero() {
			return PriceBreakdown{}, ErrValidation("product is required")
		}
		if l.Quantity < 1 {
			return PriceBreakdown{}, ErrValidation("quantity must be >= 1")
		}
		refs = append(refs, l.Ref)
	}

	// まとめて1回で引く
	products, err := r.Products().FindByRefs(ctx, refs)
	if err != nil {
		return PriceBreakdown{}, ErrInternal(err)
	}

	lines := make([]PricedLine, 0, len(in.Lines))
	wanted := map[int64]int64{}
	for _, l := range in.Lines {
		p, ok := pickProduct(products, l.Ref)
		if !ok || !p.IsActive {
			return PriceBreakdown{}, ErrNotFound("product " + l.Ref.String())
		}

		line := PricedLine{
			Product:   p,
			Quantity:  l.Quantity,
			UnitPrice: p.Price,
			LineTotal: p.Price.Mul(decimal.NewFromInt(l.Quantity)).Round(2),
		}
		if l.VariantID != nil {
			v, ok := p.FindVariant(*l.VariantID)
			if !ok {
				return PriceBreakdown{}, ErrNotFound("variant")
			}
			line.Variant = &v
		}
		wanted[p.ID] += l.Quantity
		lines = append(lines, line)
	}

	// 在庫は商品単位の合計で見る（バリアントは確保時）
	for _, l := range lines {
		if l.Product.Stock < wanted[l.Product.ID] {
			return PriceBreakdown{}, ErrInsufficientStock(l.Product.Name)
		}
	}

	lineTotals := make([]decimal.Decimal, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		lineTotals = append(lineTotals, l.LineTotal)
		subtotal = subtotal.Add(l.LineTotal)
	}

	now := e.now()
	out := PriceBreakdown{Lines: lines}

	if code := normalizeCode(in.CouponCode); code != "" {
		c, err := r.Coupons().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return PriceBreakdown{}, ErrValidation("invalid coupon code")
		}
		if err != nil {
			return PriceBreakdown{}, ErrInternal(err)
		}
		if err := checkCoupon(c, subtotal, now); err != nil {
			return PriceBreakdown{}, err
		}
		out.Coupon = &c
	}

	if code := normalizeCode(in.GiftCardCode); code != "" {
		g, err := r.GiftCards().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return PriceBreakdown{}, ErrValidation("invalid gift card code")
		}
		if err != nil {
			return PriceBreakdown{}, ErrInternal(err)
		}
		if !g.IsUsable(now) {
			return PriceBreakdown{}, ErrValidation("gift card is not usable")
		}
		out.GiftCard = &g
	}

	out.Totals = ComputeTotals(lineTotals, out.Coupon, out.GiftCard, e.shippingFee)
	return out, nil
}

func checkCoupon(c model.Coupon, subtotal decimal.Decimal, now time.Time) error {
	if !c.IsActive || !now.Before(c.ExpiryDate) {
		return ErrValidation("coupon is expired or inactive")
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrValidation("coupon usage limit reached")
	}
	if subtotal.LessThan(c.MinPurchase) {
		return ErrValidation("minimum purchase of " + c.MinPurchase.StringFixed(2) + " required for this coupon")
	}
	return nil
}

func pickProduct(products []model.Product, ref model.ProductRef) (model.Product, bool) {
	for _, p := range products {
		if ref.Matches(p) {
			return p, true
		}
	}
	return model.Product{}, false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// 明細のスナップショットを作る
func (b PriceBreakdown) OrderItems() []model.OrderItem {
	items := make([]model.OrderItem, 0, len(b.Lines))
	for _, l := range b.Lines {
		it := model.OrderItem{
			ProductID:    l.Product.ID,
			ProductName:  l.Product.Name,
			ProductBrand: l.Product.Brand,
			UnitPrice:    l.UnitPrice,
			Quantity:     l.Quantity,
			LineTotal:    l.LineTotal,
		}
		if l.Variant != nil {
			id := l.Variant.ID
			it.VariantID = &id
			it.VariantSize = l.Variant.Size
			it.VariantColor = l.Variant.Color
		}
		items = append(items, it)
	}
	return items
}

// ロック順を揃えるため商品ID順にする
func sortedByProduct(items []model.OrderItem) []model.OrderItem {
	out := append([]model.OrderItem(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
