package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{name: "whole", amount: "944.00", want: 94400},
		{name: "no_fraction", amount: "944", want: 94400},
		{name: "float_trap", amount: "19.99", want: 1999},
		{name: "float_trap_2", amount: "0.29", want: 29},
		{name: "half_even_down", amount: "10.125", want: 1012},
		{name: "half_even_up", amount: "10.135", want: 1014},
		{name: "above_half", amount: "10.1251", want: 1013},
		{name: "zero", amount: "0", want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, MinorUnits(decimal.RequireFromString(tt.amount)))
		})
	}
}

func TestMinorUnits_SumOfParts(t *testing.T) {
	t.Parallel()

	// 900 + 24 + 20 is the totals shape the cart step produces.
	total := decimal.NewFromInt(900).Add(decimal.NewFromInt(24)).Add(decimal.NewFromInt(20))
	assert.Equal(t, int64(94400), MinorUnits(total))

	fromFloat := decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2))
	assert.Equal(t, int64(30), MinorUnits(fromFloat))
}
