package migrations

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceURL_AddsFileScheme(t *testing.T) {
	require.Equal(t, "file:///db/migrations", sourceURL("/db/migrations"))
	require.Equal(t, "file:///already/prefixed", sourceURL("file:///already/prefixed"))
}
