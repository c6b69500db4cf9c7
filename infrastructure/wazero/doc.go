// Package wazero exports a hostfuncs.HandlerRegistry to WebAssembly guests
// running in the wazero runtime.
//
// Every registry function becomes an export of one host module (default
// "r_tools") with signature (i64) -> i64, where both values pack a guest
// pointer and length. Guests must export "allocate(size) -> ptr" so the
// host can write responses into their memory.
//
//	reg, err := hostfuncs.NewRegistry(
//	    hostfuncs.WithBundle(hostfuncs.AllBundles()),
//	)
//	if err != nil {
//	    return err
//	}
//	rt := wazero.NewRuntime(ctx)
//	err = rtwazero.RegisterWithRuntime(ctx, rt, reg, rtwazero.WithLogger(logger))
package wazero
