package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCommission(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		rate   string
		want   string
	}{
		{name: "zero rate", amount: "1000.00", rate: "0", want: "0.00"},
		{name: "whole percent", amount: "100.00", rate: "0.01", want: "1.00"},
		{name: "five percent", amount: "10000.00", rate: "0.05", want: "500.00"},
		{name: "rounds down below half", amount: "10.05", rate: "0.015", want: "0.15"},
		{name: "rounds half away from zero", amount: "0.50", rate: "0.01", want: "0.01"},
		{name: "tiny amount rounds to zero", amount: "0.01", rate: "0.01", want: "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Commission(decimal.RequireFromString(tt.amount), decimal.RequireFromString(tt.rate))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestDebitAmount(t *testing.T) {
	got := DebitAmount(decimal.RequireFromString("10000.00"), decimal.RequireFromString("0.05"))
	assert.Equal(t, "10500.00", got.StringFixed(2))
}
