package engine

// Exports of the renderer module.
const (
	RenderExport     = "render_svg_to_png_with_options"
	ReleaseExport    = "free_png_buffer"
	ABIVersionExport = "resvg_options_abi_version"
	MemoryExport     = "memory"
	InitializeExport = "_initialize"

	CabiRealloc = "cabi_realloc"
	CabiFree    = "cabi_free"

	// C and legacy allocator names, tried in order after cabi_realloc
	cMalloc       = "malloc"
	simpleAlloc   = "alloc"
	legacyAlloc   = "allocate"
	cFree         = "free"
	legacyDealloc = "deallocate"
)

// WASIModule is the only import module the host provides.
const WASIModule = "wasi_snapshot_preview1"

var (
	allocExports = []string{CabiRealloc, cMalloc, simpleAlloc, legacyAlloc}
	freeExports  = []string{CabiFree, cFree, legacyDealloc}
)
