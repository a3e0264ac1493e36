package rewrite

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/wippyai/modhost/mod"
)

// Outcome is what a handler found or did.
type Outcome int

const (
	None Outcome = iota
	Rewritten
	NotCompatible
	PatchesHost
	ChangesSerializer
	UsesUnvalidatedLifecycleHook
	AccessesConsole
	AccessesFilesystem
	AccessesShell
)

var outcomeNames = [...]string{
	None:                         "None",
	Rewritten:                    "Rewritten",
	NotCompatible:                "NotCompatible",
	PatchesHost:                  "PatchesHost",
	ChangesSerializer:            "ChangesSerializer",
	UsesUnvalidatedLifecycleHook: "UsesUnvalidatedLifecycleHook",
	AccessesConsole:              "AccessesConsole",
	AccessesFilesystem:           "AccessesFilesystem",
	AccessesShell:                "AccessesShell",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Warning returns the record warning raised by o.
func (o Outcome) Warning() mod.Warning {
	switch o {
	case NotCompatible:
		return mod.WarningBrokenCodeLoaded
	case PatchesHost:
		return mod.WarningPatchesHost
	case ChangesSerializer:
		return mod.WarningChangesSerializer
	case UsesUnvalidatedLifecycleHook:
		return mod.WarningUsesUnvalidatedTick
	case AccessesConsole:
		return mod.WarningAccessesConsole
	case AccessesFilesystem:
		return mod.WarningAccessesFilesystem
	case AccessesShell:
		return mod.WarningAccessesShell
	}
	return mod.WarningNone
}

// Message renders the log line for o in file.
func (o Outcome) Message(file, phrase string) (zapcore.Level, string) {
	switch o {
	case Rewritten:
		return zapcore.DebugLevel, fmt.Sprintf("Rewrote %s to fix %s...", file, phrase)
	case NotCompatible:
		return zapcore.WarnLevel, fmt.Sprintf("Broken code in %s: %s.", file, phrase)
	case PatchesHost:
		return zapcore.DebugLevel, fmt.Sprintf("Detected host patcher in binary %s.", file)
	case ChangesSerializer:
		return zapcore.DebugLevel, fmt.Sprintf("Detected possible save serializer change (%s) in binary %s.", phrase, file)
	case UsesUnvalidatedLifecycleHook:
		return zapcore.DebugLevel, fmt.Sprintf("Detected reference to %s in binary %s.", phrase, file)
	case AccessesConsole:
		return zapcore.DebugLevel, fmt.Sprintf("Detected direct console access (%s) in binary %s.", phrase, file)
	case AccessesFilesystem:
		return zapcore.DebugLevel, fmt.Sprintf("Detected filesystem access (%s) in binary %s.", phrase, file)
	case AccessesShell:
		return zapcore.DebugLevel, fmt.Sprintf("Detected shell or process access (%s) in binary %s.", phrase, file)
	}
	return zapcore.DebugLevel, ""
}
