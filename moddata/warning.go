package moddata

import (
	"fmt"
	"strings"
)

// Warning is a set of non-fatal risk flags raised for a mod.
type Warning uint32

const (
	WarningNone                Warning = 0
	WarningBrokenCodeLoaded    Warning = 1 << 0
	WarningChangesSerializer   Warning = 1 << 1
	WarningPatchesHost         Warning = 1 << 2
	WarningUsesDynamic         Warning = 1 << 3
	WarningUsesUnvalidatedTick Warning = 1 << 4
	WarningNoUpdateKeys        Warning = 1 << 5
	WarningAccessesConsole     Warning = 1 << 6
	WarningAccessesFilesystem  Warning = 1 << 7
	WarningAccessesShell       Warning = 1 << 8
)

var warningNames = []struct {
	w    Warning
	name string
}{
	{WarningBrokenCodeLoaded, "BrokenCodeLoaded"},
	{WarningChangesSerializer, "ChangesSerializer"},
	{WarningPatchesHost, "PatchesHost"},
	{WarningUsesDynamic, "UsesDynamic"},
	{WarningUsesUnvalidatedTick, "UsesUnvalidatedTick"},
	{WarningNoUpdateKeys, "NoUpdateKeys"},
	{WarningAccessesConsole, "AccessesConsole"},
	{WarningAccessesFilesystem, "AccessesFilesystem"},
	{WarningAccessesShell, "AccessesShell"},
}

// Has reports whether any bit of o is set in w.
func (w Warning) Has(o Warning) bool {
	return w&o != 0
}

func (w Warning) String() string {
	if w == WarningNone {
		return "None"
	}
	var parts []string
	for _, n := range warningNames {
		if w&n.w != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseWarning parses a single warning name, case-insensitively.
func ParseWarning(s string) (Warning, error) {
	for _, n := range warningNames {
		if strings.EqualFold(n.name, strings.TrimSpace(s)) {
			return n.w, nil
		}
	}
	return WarningNone, fmt.Errorf("unknown warning %q", s)
}
