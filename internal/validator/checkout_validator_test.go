package validator

import (
	"errors"
	"strings"
	"testing"

	"ecshop/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCartQuantities(t *testing.T) {
	assert.NoError(t, ValidateCartQuantities([]int64{1, MaxQuantity}))

	err := ValidateCartQuantities([]int64{MaxQuantity + 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Equal(t, "quantity must be <= 999", err.Error())

	many := make([]int64, MaxCartLines+1)
	err = ValidateCartQuantities(many)
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "cartItems", fe.Field)
}

func TestValidateShippingAddress(t *testing.T) {
	ok := model.ShippingAddress{Street: "1 Nile St", City: "Cairo", PostalCode: "11511", Country: "EG"}
	assert.NoError(t, ValidateShippingAddress(ok))

	// 空はここでは通す
	assert.NoError(t, ValidateShippingAddress(model.ShippingAddress{}))

	bad := ok
	bad.PostalCode = "!!"
	var fe *FieldError
	require.ErrorAs(t, ValidateShippingAddress(bad), &fe)
	assert.Equal(t, "postal_code", fe.Field)

	long := ok
	long.City = strings.Repeat("a", 256)
	require.ErrorAs(t, ValidateShippingAddress(long), &fe)
	assert.Equal(t, "city", fe.Field)
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("couponCode", ""))
	assert.NoError(t, ValidateCode("couponCode", " SAVE10 "))
	assert.NoError(t, ValidateCode("giftCardCode", "GC-AB12-CD34-EF56"))
	assert.Error(t, ValidateCode("couponCode", "SAVE 10"))
	assert.Error(t, ValidateCode("couponCode", strings.Repeat("A", 65)))
}
