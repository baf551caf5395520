package output_test

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"go.trai.ch/rex/internal/ui/output"
	"go.trai.ch/rex/internal/ui/style"
)

func TestColorProfile_NoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.Equal(t, termenv.Ascii, output.ColorProfile())
}

func TestNew_WritesToBuffer(t *testing.T) {
	var buf bytes.Buffer
	out := output.New(&buf)

	_, _ = out.WriteString("test")
	assert.Equal(t, "test", buf.String())
}

func TestNew_Nil(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.NotNil(t, output.New(nil))
	})
}

func TestPaint_NoColorIsPlain(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	out := output.New(&bytes.Buffer{})

	assert.Equal(t, "cached", output.Paint(out, "cached", style.Green))
}
