// Package wasm decodes and re-encodes core WebAssembly binaries.
//
// The codec models exactly what the mod loader inspects: types, imports,
// function declarations, exports, code bodies and custom sections. Every
// other section is preserved as raw bytes, so a module that is decoded and
// encoded without edits produces an identical binary.
//
// Function bodies are not decoded during ParseModule. DecodeInstructions
// splits a body into instructions, keeping immediates raw apart from the
// function index of call, return_call and ref.func.
//
// Two custom sections have first-class helpers: dylink.0 (the needed-library
// list of a dynamically linked binary) and modhost.signatures (host-level
// type names a binary declares for its imports).
package wasm
