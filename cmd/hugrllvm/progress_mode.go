package main

import (
	"fmt"
	"os"
	"strings"
)

// progressDisplay selects how `build` reports per-file progress.
type progressDisplay int

const (
	progressAuto progressDisplay = iota
	progressLive
	progressSummary
)

// parseProgressDisplay reads --ui. "on" and "off" are accepted alongside
// "live" and "summary".
func parseProgressDisplay(value string) (progressDisplay, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "", "auto":
		return progressAuto, nil
	case "on", "live":
		return progressLive, nil
	case "off", "summary":
		return progressSummary, nil
	default:
		return progressAuto, fmt.Errorf("invalid --ui value %q (expected auto|on|off)", value)
	}
}

// live reports whether the bubbletea view should drive the build. In auto
// mode that needs an interactive stdout that is not a dumb terminal.
func (d progressDisplay) live(stdout *os.File) bool {
	switch d {
	case progressLive:
		return true
	case progressSummary:
		return false
	}
	return os.Getenv("TERM") != "dumb" && isTerminal(stdout)
}
