//go:build unix

package main

import (
	"os"
	"os/signal"
	"syscall"
)

func init() {
	notifyLifecycleSignals = func(sigChan chan<- os.Signal) {
		signal.Notify(sigChan, syscall.SIGTSTP, syscall.SIGCONT)
	}

	lifecycleAction = func(sig os.Signal) string {
		switch sig {
		case syscall.SIGTSTP:
			return "hidden"
		case syscall.SIGCONT:
			return "visible"
		}
		return ""
	}

	suspendProcess = func() {
		syscall.Kill(os.Getpid(), syscall.SIGSTOP)
	}
}
