package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProvider_NoopWhenEndpointEmpty(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	require.NoError(t, err)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestParseEndpoint_SplitsSchemeAndHost(t *testing.T) {
	host, insecure := parseEndpoint("https://collector.internal:4318")
	require.Equal(t, "collector.internal:4318", host)
	require.False(t, insecure, "expected https endpoint to be treated as secure")

	host, insecure = parseEndpoint("http://localhost:4318")
	require.Equal(t, "localhost:4318", host)
	require.True(t, insecure, "expected insecure http endpoint")
}
