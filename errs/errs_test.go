package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormattingIncludesCanonicalAndVenue(t *testing.T) {
	err := New(
		"binance",
		CodeInvalid,
		WithHTTP(400),
		WithMessage("invalid order payload"),
		WithRawCode("-2013"),
		WithRawMessage("order does not exist"),
		WithCanonicalCode(CanonicalOrderNotFound),
		WithVenueMetadata(map[string]string{
			"symbol":   "BTCUSDT",
			"endpoint": "/api/v3/order",
		}),
		WithVenueField("request_id", "req-123"),
		WithRemediation("verify order id before retrying"),
		WithCause(errors.New("binance http 400")),
	)

	out := err.Error()
	require.Contains(t, out, "exchange=binance")
	require.Contains(t, out, "code=invalid_request")
	require.Contains(t, out, "canonical=order_not_found")
	require.Contains(t, out, "venue=endpoint=\"/api/v3/order\",request_id=\"req-123\",symbol=\"BTCUSDT\"")
	require.Contains(t, out, "remediation=\"verify order id before retrying\"")
	require.Contains(t, out, "cause=\"binance http 400\"")
}

func TestWithCanonicalCodeEmptyDefaultsToUnknown(t *testing.T) {
	err := New("binance", CodeInvalid, WithCanonicalCode("   "))
	require.Equal(t, CanonicalUnknown, err.Canonical)
	require.NotContains(t, err.Error(), "canonical=")
}

func TestWithVenueMetadataMerge(t *testing.T) {
	err := New(
		"binance",
		CodeExchange,
		WithVenueMetadata(map[string]string{"symbol": "BTCUSDT"}),
		WithVenueMetadata(map[string]string{"symbol": "ETHUSDT", "endpoint": "/api"}),
	)

	require.Equal(t, "ETHUSDT", err.VenueMetadata["symbol"])
	require.Equal(t, "/api", err.VenueMetadata["endpoint"])
}

func TestNilErrorString(t *testing.T) {
	var e *E
	require.Equal(t, "<nil>", e.Error())
}
