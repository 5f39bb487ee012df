package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSink_Levels(t *testing.T) {
	t.Parallel()

	var quiet bytes.Buffer
	l := NewWithSink(false, zapcore.AddSync(&quiet))
	l.Debugw("hidden", "k", 1)
	l.Infow("loaded source", "rows", 3)
	assert.NotContains(t, quiet.String(), "hidden")
	assert.Contains(t, quiet.String(), "loaded source")
	assert.Contains(t, quiet.String(), `"rows": 3`)

	var loud bytes.Buffer
	l = NewWithSink(true, zapcore.AddSync(&loud))
	l.Debugw("shown")
	assert.Contains(t, loud.String(), "shown")
}
