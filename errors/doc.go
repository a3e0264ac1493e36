// Package errors provides structured error types for modhost.
//
// Errors are categorized by Phase (which loading stage failed) and Kind (error category).
// The Error type carries the mod, file and location it refers to, plus a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseLoad, errors.KindNotFound).
//		Mod("Better Lanterns").
//		File("mods/lanterns/lanterns.wasm").
//		Detail("binary doesn't exist").
//		Build()
//
// Loading failures come in two variants. A Recoverable aborts one mod and the
// host moves on to the next; a Fatal means the loader's own contract was broken
// and the whole pass stops:
//
//	var rec *errors.Recoverable
//	if stderrors.As(err, &rec) { ... }
//	if errors.IsFatal(err) { ... }
package errors
