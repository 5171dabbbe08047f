package notify

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestConsole(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	var buf bytes.Buffer
	c := NewConsole(&buf)
	c.Success("Finish updating database.")
	c.Failure("Fail to update database.")
	c.Warning("Disconnected")

	assert.Equal(t, "✅ Finish updating database.\n❌ Fail to update database.\n⚠ Disconnected\n", buf.String())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	r.Success("a")
	r.Warning("b")

	assert.Equal(t, []Notification{
		{Level: LevelSuccess, Message: "a"},
		{Level: LevelWarning, Message: "b"},
	}, r.All())
}
