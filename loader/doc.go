// Package loader admits a mod's binaries into the engine.
//
// Expand walks the binary graph rooted at a mod's entry binary: every import
// module and dylink needed entry naming a binary next to it is expanded
// first, so the result is ordered leaf to root. Binaries already resident in
// the runtime, or already reached in the same expansion, are reported as
// AlreadyLoaded and not read again.
//
// Loader.Load then runs each binary through the rewrite pipeline and the
// broken reference check, re-encodes it if anything changed, and instantiates
// it under its short name.
package loader
