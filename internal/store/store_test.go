package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPqStringArray(t *testing.T) {
	type key string
	require.Equal(t, []string{"a", "b"}, pqStringArray([]key{"a", "b"}))
	require.Empty(t, pqStringArray([]string(nil)))
}

func TestWrapPreservesNil(t *testing.T) {
	require.NoError(t, wrap(nil, "read pref"))
}
