package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/wippyai/modhost/host"
	"github.com/wippyai/modhost/mod"
)

var (
	headerColor  = color.New(color.Bold)
	loadedColor  = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	failedColor  = color.New(color.FgRed)
	skippedColor = color.New(color.FgHiBlack)
)

type rowState int

const (
	rowLoaded rowState = iota
	rowChecked
	rowFailed
	rowSkipped
)

func (s rowState) String() string {
	switch s {
	case rowLoaded:
		return "loaded"
	case rowChecked:
		return "ok"
	case rowFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// row is one mod in a report, shared by the plain and interactive views.
type row struct {
	rec     *mod.Record
	name    string
	version string
	author  string
	detail  string
	state   rowState
}

func reportRows(rep *host.Report, load bool) []row {
	loaded := make(map[*mod.Record]bool, len(rep.Loaded))
	for _, m := range rep.Loaded {
		loaded[m.Record] = true
	}

	rows := make([]row, 0, len(rep.Mods)+len(rep.Skipped))
	for _, rec := range rep.Mods {
		r := newRow(rec)
		switch {
		case rec.Failed():
			r.state = rowFailed
			r.detail = rec.Error
		case !load:
			r.state = rowChecked
		case loaded[rec]:
			r.state = rowLoaded
		default:
			// LoadMods stopped early.
			continue
		}
		if r.state != rowFailed {
			r.detail = describe(rec)
		}
		rows = append(rows, r)
	}
	for _, rec := range rep.Skipped {
		r := newRow(rec)
		r.state = rowSkipped
		r.detail = rec.Error
		rows = append(rows, r)
	}
	return rows
}

func newRow(rec *mod.Record) row {
	r := row{rec: rec, name: rec.DisplayName}
	if rec.Manifest != nil {
		r.version = rec.Manifest.Version.String()
		r.author = rec.Manifest.Author
	}
	return r
}

func describe(rec *mod.Record) string {
	var parts []string
	if rec.IsContentPack() {
		parts = append(parts, "content pack for "+rec.Manifest.ContentPackFor.UniqueID)
	}
	if w := rec.Warnings(); w != 0 {
		parts = append(parts, "warnings: "+w.String())
	}
	return strings.Join(parts, "; ")
}

// setColor applies --color. auto leaves color on only for terminals.
func setColor(mode string) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "on":
		color.NoColor = false
	case "off":
		color.NoColor = true
	default:
		color.NoColor = !isTerminal(os.Stdout)
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func printReport(w io.Writer, rep *host.Report, load bool) {
	rows := reportRows(rep, load)

	var ok, failed, skipped []row
	for _, r := range rows {
		switch r.state {
		case rowLoaded, rowChecked:
			ok = append(ok, r)
		case rowFailed:
			failed = append(failed, r)
		default:
			skipped = append(skipped, r)
		}
	}

	verb := "Loaded"
	if !load {
		verb = "Checked"
	}
	headerColor.Fprintf(w, "%s %d mods:\n", verb, len(ok))
	for _, r := range ok {
		line := "   " + r.name
		if r.version != "" {
			line += " " + r.version
		}
		if r.author != "" {
			line += " by " + r.author
		}
		if r.rec.Warnings() != 0 {
			warnColor.Fprintln(w, line+" | "+r.detail)
		} else if r.detail != "" {
			loadedColor.Fprintln(w, line+" | "+r.detail)
		} else {
			loadedColor.Fprintln(w, line)
		}
	}

	if len(failed) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintf(w, "Skipped %d mods:\n", len(failed))
		for _, r := range failed {
			failedColor.Fprintf(w, "   %s because %s\n", r.name, r.detail)
			if d := r.rec.ErrorDetails; d != "" {
				skippedColor.Fprintf(w, "      %s\n", d)
			}
		}
	}

	if len(skipped) > 0 {
		fmt.Fprintln(w)
		headerColor.Fprintf(w, "Ignored %d folders:\n", len(skipped))
		for _, r := range skipped {
			skippedColor.Fprintf(w, "   %s (%s)\n", r.rec.RelativePathWithRoot(), r.detail)
		}
	}
}
