package main

import (
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

type testSignal string

func (s testSignal) Signal()        {}
func (s testSignal) String() string { return string(s) }

type recordingApp struct {
	log *[]string
}

func (r recordingApp) Hidden()  { *r.log = append(*r.log, "hidden") }
func (r recordingApp) Visible() { *r.log = append(*r.log, "visible") }

func TestHandleSignals(t *testing.T) {
	color.NoColor = true
	origAction, origSuspend := lifecycleAction, suspendProcess
	t.Cleanup(func() {
		lifecycleAction, suspendProcess = origAction, origSuspend
	})

	var log []string
	lifecycleAction = func(sig os.Signal) string {
		switch sig {
		case testSignal("tstp"):
			return "hidden"
		case testSignal("cont"):
			return "visible"
		}
		return ""
	}
	suspendProcess = func() { log = append(log, "stopped") }

	sigChan := make(chan os.Signal, 4)
	sigChan <- testSignal("tstp")
	sigChan <- testSignal("cont")
	sigChan <- testSignal("int")
	sigChan <- testSignal("tstp")

	sig := handleSignals(recordingApp{log: &log}, sigChan)
	assert.Equal(t, testSignal("int"), sig)
	assert.Equal(t, []string{"hidden", "stopped", "visible"}, log)
}

func TestHandleSignalsClosedChannel(t *testing.T) {
	sigChan := make(chan os.Signal)
	close(sigChan)
	assert.Nil(t, handleSignals(recordingApp{log: new([]string)}, sigChan))
}
