// Package engine owns the wazero runtime mods are admitted into and the
// catalogue of host functions they may import.
//
// # Architecture
//
// The package provides three main types:
//
//	Engine    - the shared runtime, with WASI and the host modules instantiated
//	HostAPI   - every host module and function, with WIT and core signatures
//	Registry  - what mods registered through the host API while instantiating
//
// # Host API
//
// Host functions are declared with WIT types and lowered to core signatures
// with the canonical ABI. The core signature is what imports are checked
// against; the WIT signature is what diagnostics print.
//
//	WIT Type        Core Representation    Flat Count
//	─────────────────────────────────────────────────
//	bool, u8-u32    i32                    1
//	u64, s64        i64                    1
//	f32             f32                    1
//	f64             f64                    1
//	string          (ptr, len) as i32×2    2
//	list<T>         (ptr, len) as i32×2    2
//	record          flattened fields       sum of fields
//	option<T>       (disc, payload)        1 + flat(T)
//	result<T,E>     (disc, joined payload) 1 + max(cases)
//
// When the flat count exceeds MaxFlatParams (16) parameters are passed as one
// pointer; past MaxFlatResults (1) results are written through a return
// pointer appended to the parameters.
//
// Functions may also carry a host-level signature with type parameters, such
// as "register_dictionary<K, V>", which the rewrite package compares against
// signatures a binary declares in its modhost.signatures section.
//
// # Admission
//
// Compile validates a binary; Instantiate admits it under a name so later
// binaries can import it. Instantiation runs _initialize and nothing else:
// the entry export is left to the caller.
//
// # Thread Safety
//
// Engine and Registry are safe for concurrent use. HostAPI is read-only after
// New returns.
package engine
