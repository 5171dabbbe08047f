package notify

import (
	"io"
	"sync"

	"github.com/fatih/color"
)

// Notifier shows short user-visible messages
type Notifier interface {
	Success(msg string)
	Failure(msg string)
	// Warning is persistent, e.g. the disconnected banner
	Warning(msg string)
}

// Console prints notifications in color
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	success *color.Color
	failure *color.Color
	warning *color.Color
}

// NewConsole creates a console notifier writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{
		out:     out,
		success: color.New(color.FgGreen),
		failure: color.New(color.FgRed),
		warning: color.New(color.FgYellow, color.Bold),
	}
}

func (c *Console) Success(msg string) { c.print(c.success, "✅ "+msg) }
func (c *Console) Failure(msg string) { c.print(c.failure, "❌ "+msg) }
func (c *Console) Warning(msg string) { c.print(c.warning, "⚠ "+msg) }

func (c *Console) print(col *color.Color, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	col.Fprintln(c.out, msg)
}

// Level of a recorded notification
type Level string

const (
	LevelSuccess Level = "success"
	LevelFailure Level = "failure"
	LevelWarning Level = "warning"
)

// Notification is one recorded message
type Notification struct {
	Level   Level
	Message string
}

// Recorder keeps notifications in memory
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Failure(msg string) { r.add(LevelFailure, msg) }
func (r *Recorder) Warning(msg string) { r.add(LevelWarning, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Level: level, Message: msg})
}

// All returns a copy of the recorded notifications
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Nop discards notifications
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Failure(string) {}
func (Nop) Warning(string) {}
