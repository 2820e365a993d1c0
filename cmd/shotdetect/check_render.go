package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
)

type checkState int

const (
	checkInfo checkState = iota
	checkOK
	checkWarn
	checkFail
)

const checkLabelWidth = 20

var checkStyles = map[checkState]struct {
	label string
	color text.Colors
}{
	checkInfo: {"INFO", text.Colors{text.FgBlue}},
	checkOK:   {"OK", text.Colors{text.FgGreen}},
	checkWarn: {"WARN", text.Colors{text.FgYellow}},
	checkFail: {"ERROR", text.Colors{text.FgRed}},
}

// checkPrinter writes doctor output, coloring lines when w is a terminal.
type checkPrinter struct {
	w        io.Writer
	colorize bool
	failed   bool
}

func newCheckPrinter(w io.Writer) *checkPrinter {
	return &checkPrinter{w: w, colorize: isTerminal(w)}
}

func (p *checkPrinter) section(title string) {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if p.colorize {
		line, rule = text.FgBlue.Sprint(line), text.FgBlue.Sprint(rule)
	}
	fmt.Fprintln(p.w, line)
	fmt.Fprintln(p.w, rule)
}

func (p *checkPrinter) line(label string, state checkState, detail string) {
	if state == checkFail {
		p.failed = true
	}
	fmt.Fprintln(p.w, renderCheck(label, state, detail, p.colorize))
}

func (p *checkPrinter) blank() {
	fmt.Fprintln(p.w)
}

func renderCheck(label string, state checkState, detail string, colorize bool) string {
	style := checkStyles[state]
	tag := "[" + style.label + "]"
	if detail != "" {
		tag += " " + detail
	}
	line := fmt.Sprintf("  %-*s %s", checkLabelWidth, label+":", tag)
	if colorize {
		return style.color.Sprint(line)
	}
	return line
}
