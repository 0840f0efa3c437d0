package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc\n... (truncated)", Truncate("abcdef", 3))
	assert.Equal(t, "héllo", Truncate("héllo", 5), "counts runes, not bytes")
	assert.Equal(t, "anything", Truncate("anything", 0))

	long := strings.Repeat("x", 10001)
	assert.True(t, strings.HasSuffix(Truncate(long, 10000), "(truncated)"))
}
