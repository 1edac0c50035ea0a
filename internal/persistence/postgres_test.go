package persistence

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal_FallsBackToZeroOnGarbage(t *testing.T) {
	require.True(t, parseDecimal("not-a-number").Equal(decimal.Zero))
	require.True(t, parseDecimal("12.5").Equal(decimal.NewFromFloat(12.5)))
}
