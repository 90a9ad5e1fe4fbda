package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListRoundTrip(t *testing.T) {
	list := StringList{"a", "b"}

	value, err := list.Value()
	require.NoError(t, err)

	var decoded StringList
	require.NoError(t, decoded.Scan(value))
	assert.Equal(t, list, decoded)
}

func TestStringListScanNil(t *testing.T) {
	var list StringList
	require.NoError(t, list.Scan(nil))
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStringListHelpers(t *testing.T) {
	list := StringList{"a", "b", "c"}

	assert.True(t, list.Contains("b"))
	assert.False(t, list.Contains("z"))

	trimmed := list.Without("b")
	assert.Equal(t, StringList{"a", "c"}, trimmed)
	// Original is untouched
	assert.Equal(t, StringList{"a", "b", "c"}, list)
}
