package binance

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSign_DeterministicForSameQuery(t *testing.T) {
	q := url.Values{"symbol": {"BTCUSDT"}, "timestamp": {"1700000000000"}}
	a := sign(q, "secret")
	b := sign(q, "secret")
	require.Equal(t, a, b, "sign is not deterministic")
	require.Len(t, a, 64, "expected 64-char hex digest")
}

func TestSign_DiffersOnQueryChange(t *testing.T) {
	a := sign(url.Values{"symbol": {"BTCUSDT"}}, "secret")
	b := sign(url.Values{"symbol": {"ETHUSDT"}}, "secret")
	require.NotEqual(t, a, b, "expected different queries to produce different signatures")
}
