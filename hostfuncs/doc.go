// Package hostfuncs implements the native helpers behind R's tools package
// as plain Go functions (PerformXxx) with JSON request and response types.
//
// Functions are grouped into bundles and served through an immutable
// HandlerRegistry. Nothing here depends on a WASM runtime or on the R
// value model; see the bridge package for the latter.
package hostfuncs
