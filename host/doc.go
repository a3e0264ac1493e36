// Package host runs the mod loading pipeline.
//
// A pass scans the mods folder, validates each manifest, applies load order
// overrides, sorts mods by dependency and then loads each code mod's binary
// graph into a shared wazero runtime. Content packs are listed without a
// binary. The entry export of each loaded mod is returned, not called.
//
// One mod failing never stops the pass; its record is marked failed with a
// message for the user. Only internal errors (*errors.Fatal) are returned.
package host
