package bybit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSign_DeterministicForSamePreimage(t *testing.T) {
	a := sign("1700000000000", "key", recvWindow, "category=spot&symbol=BTCUSDT", "secret")
	b := sign("1700000000000", "key", recvWindow, "category=spot&symbol=BTCUSDT", "secret")
	require.Equal(t, a, b, "sign is not deterministic")
	require.Len(t, a, 64, "expected 64-char hex digest")
}

func TestSign_DiffersOnPreimageChange(t *testing.T) {
	a := sign("1700000000000", "key", recvWindow, "symbol=BTCUSDT", "secret")
	b := sign("1700000000001", "key", recvWindow, "symbol=BTCUSDT", "secret")
	require.NotEqual(t, a, b, "expected different timestamps to produce different signatures")
}

func TestSign_DiffersOnSecret(t *testing.T) {
	a := sign("1700000000000", "key", recvWindow, "symbol=BTCUSDT", "secret-a")
	b := sign("1700000000000", "key", recvWindow, "symbol=BTCUSDT", "secret-b")
	require.NotEqual(t, a, b, "expected different secrets to produce different signatures")
}
