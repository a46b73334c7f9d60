package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/9jaDevo/woo-bulk-variation-price-editor/internal/models"
)

// ===========================================
// Clamp Tests
// ===========================================

func TestClampValue_Percent(t *testing.T) {
	assert.Equal(t, 50.0, ClampValue(models.ModePercent, 50))
	assert.Equal(t, -50.0, ClampValue(models.ModePercent, -50))
	assert.Equal(t, MaxPercent, ClampValue(models.ModePercent, 5000))
	assert.Equal(t, -MaxPercent, ClampValue(models.ModePercent, -5000))
}

func TestClampValue_Amount(t *testing.T) {
	assert.Equal(t, 2.5, ClampValue(models.ModeAmount, 2.5))
	assert.Equal(t, MaxAmount, ClampValue(models.ModeAmount, 1e12))
	assert.Equal(t, -MaxAmount, ClampValue(models.ModeAmount, -1e12))
}

func TestClampValue_Fixed(t *testing.T) {
	assert.Equal(t, 19.99, ClampValue(models.ModeFixed, 19.99))
	// A fixed price can never be negative
	assert.Equal(t, 0.0, ClampValue(models.ModeFixed, -10))
	assert.Equal(t, MaxFixed, ClampValue(models.ModeFixed, 1e12))
}

func TestClampValue_UnknownModeTreatedAsPercent(t *testing.T) {
	assert.Equal(t, MaxPercent, ClampValue(models.PriceMode("bogus"), 5000))
}

// ===========================================
// ComputeNewPrice Tests
// ===========================================

func TestComputeNewPrice_Fixed(t *testing.T) {
	tr := NewTransformer(nil, 2)

	assert.Equal(t, "19.99", tr.ComputeNewPrice("10.00", models.ModeFixed, 19.99))
	// Fixed ignores the old price entirely, even an unset one
	assert.Equal(t, "19.99", tr.ComputeNewPrice("", models.ModeFixed, 19.99))
}

func TestComputeNewPrice_Amount(t *testing.T) {
	tr := NewTransformer(nil, 2)

	assert.Equal(t, "12.50", tr.ComputeNewPrice("10.00", models.ModeAmount, 2.5))
	assert.Equal(t, "7.50", tr.ComputeNewPrice("10.00", models.ModeAmount, -2.5))
	// Unset old price is treated as zero
	assert.Equal(t, "2.50", tr.ComputeNewPrice("", models.ModeAmount, 2.5))
}

func TestComputeNewPrice_Percent(t *testing.T) {
	tr := NewTransformer(nil, 2)

	assert.Equal(t, "11.00", tr.ComputeNewPrice("10.00", models.ModePercent, 10))
	assert.Equal(t, "9.00", tr.ComputeNewPrice("10.00", models.ModePercent, -10))
	assert.Equal(t, "0.00", tr.ComputeNewPrice("10.00", models.ModePercent, -100))
}

func TestComputeNewPrice_DecimalRounding(t *testing.T) {
	tr := NewTransformer(nil, 2)

	// 10.05 + 0.10 must not pick up binary float error
	assert.Equal(t, "10.15", tr.ComputeNewPrice("10.05", models.ModeAmount, 0.10))
	// 33.33 * 1.1 = 36.663 rounds half-up
	assert.Equal(t, "36.66", tr.ComputeNewPrice("33.33", models.ModePercent, 10))
}

func TestComputeNewPrice_Deterministic(t *testing.T) {
	tr := NewTransformer(nil, 2)

	first := tr.ComputeNewPrice("42.37", models.ModePercent, 7.77)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, tr.ComputeNewPrice("42.37", models.ModePercent, 7.77))
	}
}

func TestComputeNewPrice_AmountRoundTrip(t *testing.T) {
	tr := NewTransformer(nil, 2)

	old := "10.00"
	raised := tr.ComputeNewPrice(old, models.ModeAmount, 2.5)
	restored := tr.ComputeNewPrice(raised, models.ModeAmount, -2.5)
	assert.Equal(t, old, restored)
}

func TestComputeNewPrice_MalformedOldPriceTreatedAsZero(t *testing.T) {
	tr := NewTransformer(nil, 2)

	assert.Equal(t, "0.00", tr.ComputeNewPrice("not-a-price", models.ModePercent, 10))
}

// ===========================================
// FormatPrice Tests
// ===========================================

func TestFormatPrice(t *testing.T) {
	tr := NewTransformer(nil, 2)

	assert.Equal(t, "10.00", tr.FormatPrice("10"))
	assert.Equal(t, "10.56", tr.FormatPrice("10.555"))
	// An unset price must survive formatting unset
	assert.Equal(t, "", tr.FormatPrice(""))
}

func TestFormatPrice_ZeroDecimals(t *testing.T) {
	tr := NewTransformer(nil, 0)

	assert.Equal(t, "10", tr.FormatPrice("10.4"))
	assert.Equal(t, "11", tr.FormatPrice("10.5"))
}
