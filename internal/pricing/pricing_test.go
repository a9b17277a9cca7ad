package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menucost/models"
)

var tolerance = decimal.New(1, -6)

func d(value string) decimal.Decimal { return decimal.RequireFromString(value) }

func assertClose(t *testing.T, want, got decimal.Decimal) {
	t.Helper()
	assert.True(t, want.Sub(got).Abs().LessThanOrEqual(tolerance), "want %s, got %s", want, got)
}

func TestMarginPrice(t *testing.T) {
	t.Parallel()

	price, err := MarginPrice(d("10"), d("60"))
	require.NoError(t, err)
	assertClose(t, d("25"), price)

	price, err = MarginPrice(d("10"), d("0"))
	require.NoError(t, err)
	assertClose(t, d("10"), price)
}

func TestMarkupPrice(t *testing.T) {
	t.Parallel()

	price, err := MarkupPrice(d("10"), d("60"))
	require.NoError(t, err)
	assertClose(t, d("16"), price)

	price, err = MarkupPrice(d("4"), d("250"))
	require.NoError(t, err)
	assertClose(t, d("14"), price)
}

func TestInvalidInputs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		run  func() error
	}{
		{"margin of 100", func() error { _, err := MarginPrice(d("10"), d("100")); return err }},
		{"margin above 99", func() error { _, err := MarginPrice(d("10"), d("99.5")); return err }},
		{"negative margin", func() error { _, err := MarginPrice(d("10"), d("-1")); return err }},
		{"negative cost", func() error { _, err := MarkupPrice(d("-1"), d("10")); return err }},
		{"unknown mode", func() error { _, err := SuggestedPrice("flat", d("1"), d("10")); return err }},
		{"zero price margin", func() error { _, err := EffectiveMargin(d("0"), d("1")); return err }},
	}

	for _, tt := range cases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.ErrorIs(t, tt.run(), ErrInvalidPricingInput)
		})
	}
}

func TestMarginInverseLaw(t *testing.T) {
	t.Parallel()

	costs := []string{"0.01", "1", "3.75", "12.5", "999.99"}
	for _, rawCost := range costs {
		for m := int64(0); m <= 99; m++ {
			cost := d(rawCost)
			margin := decimal.NewFromInt(m)
			price, err := MarginPrice(cost, margin)
			require.NoError(t, err)
			got, err := EffectiveMargin(price, cost)
			require.NoError(t, err)
			assertClose(t, margin, got)
		}
	}
}

func TestMarkupInverseLaw(t *testing.T) {
	t.Parallel()

	costs := []string{"0.01", "1", "3.75", "12.5", "999.99"}
	for _, rawCost := range costs {
		for m := int64(0); m <= 99; m++ {
			cost := d(rawCost)
			markup := decimal.NewFromInt(m)
			price, err := MarkupPrice(cost, markup)
			require.NoError(t, err)
			got, err := EffectiveMargin(price, cost)
			require.NoError(t, err)
			assertClose(t, MarkupAsMargin(markup), got)
			if m > 0 {
				assert.False(t, got.Sub(markup).Abs().LessThanOrEqual(tolerance), "markup %d should not equal its margin", m)
			}
		}
	}
}

func TestSuggestedPriceDispatch(t *testing.T) {
	t.Parallel()

	margin, err := SuggestedPrice(models.PricingMargin, d("10"), d("50"))
	require.NoError(t, err)
	assertClose(t, d("20"), margin)

	markup, err := SuggestedPrice(models.PricingMarkup, d("10"), d("50"))
	require.NoError(t, err)
	assertClose(t, d("15"), markup)
}
