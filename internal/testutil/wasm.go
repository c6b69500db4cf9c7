// Package testutil provides helpers shared by tests.
package testutil

import "bytes"

// GuestModule assembles a minimal WASM guest for exercising host modules.
//
// It imports tab_expand (i64)->i64 and log_message (i64)->() from module
// hostModule, and exports:
//
//	memory          one page
//	allocate(i32)   a bump allocator starting at 1024
//	call(i64) i64   forwards to tab_expand
//	log(i64)        forwards to log_message
func GuestModule(hostModule string) []byte {
	return cat(
		[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		// types: 0 (i64)->i64, 1 (i32)->i32, 2 (i64)->()
		section(1, []byte{3,
			0x60, 1, 0x7e, 1, 0x7e,
			0x60, 1, 0x7f, 1, 0x7f,
			0x60, 1, 0x7e, 0}),
		section(2, []byte{2},
			name(hostModule), name("tab_expand"), []byte{0x00, 0},
			name(hostModule), name("log_message"), []byte{0x00, 2}),
		// functions 2 call, 3 allocate, 4 log
		section(3, []byte{3, 0, 1, 2}),
		section(5, []byte{1, 0x00, 1}),
		// mutable i32 heap pointer, i32.const 1024
		section(6, []byte{1, 0x7f, 1, 0x41, 0x80, 0x08, 0x0b}),
		section(7, []byte{4},
			name("memory"), []byte{0x02, 0},
			name("call"), []byte{0x00, 2},
			name("allocate"), []byte{0x00, 3},
			name("log"), []byte{0x00, 4}),
		section(10, []byte{3},
			[]byte{6, 0, 0x20, 0, 0x10, 0, 0x0b},
			[]byte{11, 0, 0x23, 0, 0x23, 0, 0x20, 0, 0x6a, 0x24, 0, 0x0b},
			[]byte{6, 0, 0x20, 0, 0x10, 1, 0x0b}),
	)
}

// CommandModule assembles a WASI command whose _start calls
// wasi_snapshot_preview1.proc_exit(code).
func CommandModule(code byte) []byte {
	return cat(
		[]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00},
		// types: 0 (i32)->(), 1 ()->()
		section(1, []byte{2, 0x60, 1, 0x7f, 0, 0x60, 0, 0}),
		section(2, []byte{1}, name("wasi_snapshot_preview1"), name("proc_exit"), []byte{0x00, 0}),
		section(3, []byte{1, 1}),
		section(5, []byte{1, 0x00, 1}),
		section(7, []byte{2},
			name("memory"), []byte{0x02, 0},
			name("_start"), []byte{0x00, 1}),
		// i32.const code (code < 64 keeps the LEB128 a single byte)
		section(10, []byte{1}, []byte{6, 0, 0x41, code & 0x3f, 0x10, 0, 0x0b}),
	)
}

func name(s string) []byte { return append([]byte{byte(len(s))}, s...) }

// section encodes a section whose content is shorter than 128 bytes.
func section(id byte, parts ...[]byte) []byte {
	content := cat(parts...)
	return append([]byte{id, byte(len(content))}, content...)
}

func cat(parts ...[]byte) []byte { return bytes.Join(parts, nil) }
