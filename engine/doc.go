// Package engine hosts the resvg renderer module on wazero.
//
// # Types
//
//	Engine   - wazero runtime with WASI preview1 and read-only mounts
//	Module   - compiled renderer with its exports checked
//	Instance - one instantiated renderer, used by a single goroutine
//
// # Module Contract
//
// The module must export memory, render_svg_to_png_with_options,
// free_png_buffer and an allocator (cabi_realloc, malloc, alloc or allocate).
// A free export (cabi_free, free or deallocate) is optional; without one,
// buffers are released through cabi_realloc with a new size of 0.
//
// resvg_options_abi_version, when exported, must return 1. _initialize, when
// exported, runs once per instance.
//
// The only import module provided is wasi_snapshot_preview1. LoadModule
// rejects anything else with a *errors.MissingImportsError listing every
// unresolved function.
//
// # Traps
//
// A guest call that returns an error marks the instance broken. Its memory
// may be inconsistent, so it must not be reused.
//
// Most users should use the runtime package.
package engine
