package main

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"shotdetect/internal/store"
)

var (
	numberPrinter = message.NewPrinter(language.English)
	titleCaser    = cases.Title(language.English)
)

// formatCount groups digits, e.g. 12345 -> "12,345".
func formatCount(n int) string {
	return numberPrinter.Sprintf("%d", n)
}

// formatTimecode renders milliseconds as HH:MM:SS.mmm.
func formatTimecode(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func formatElapsed(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func statusLabel(status store.Status) string {
	if status == "" {
		return "Unknown"
	}
	return titleCaser.String(string(status))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
