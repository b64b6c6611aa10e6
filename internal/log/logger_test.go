package log

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWriterFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWriter("warn", &buf), "hub")

	l.Info().Msg("hidden")
	l.Warn().Str("room", "r1").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"hub"`)
	assert.Contains(t, out, `"room":"r1"`)
}
