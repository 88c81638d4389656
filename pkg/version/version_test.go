package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	s := Get()
	assert.NotEmpty(t, s)
	assert.Equal(t, strings.TrimSpace(Version), s)
	assert.True(t, strings.HasPrefix(s, "v"))
	assert.NotContains(t, s, "\n")
}

func TestRevisionDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() { _ = Revision() })
}
