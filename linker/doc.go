// Package linker resolves binary names to definitions while a mod's binary
// graph is loaded.
//
// # Resolution Order
//
//  1. Definitions registered with Resolver.Add (binaries of the current graph)
//  2. Search directories (usually the mod's own folder)
//  3. Modules already instantiated in the runtime
//
// A name found in an earlier source shadows later ones, so an in-memory
// rewritten binary wins over the unmodified copy on disk.
package linker
