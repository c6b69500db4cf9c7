// Package host runs WebAssembly plugins against the bridge's host functions.
//
// An Executor owns a wazero runtime with WASI and the "r_tools" host module
// instantiated from a hostfuncs.HandlerRegistry. Plugins are either WASI
// commands, run to completion by Run, or reactors loaded by LoadPlugin and
// driven through their exports with PluginInstance.Call.
package host
