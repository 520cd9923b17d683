package testguest

// StubConfig shapes the module returned by StubModule.
type StubConfig struct {
	// ABIVersion is returned by resvg_options_abi_version. Zero omits the export.
	ABIVersion int32
	// ImportEnv adds an import of env.abort, which the host does not provide.
	ImportEnv bool
	// OmitRender drops the render export.
	OmitRender bool
}

// Stub module layout.
const (
	// StubOutputOffset is where the stub keeps its PNG signature.
	StubOutputOffset = 16
	// StubHeapBase is where the stub's bump allocator starts.
	StubHeapBase = 1024
)

// Names of the counters the stub exports as mutable i32 globals.
const (
	StubGlobalFrees    = "frees"
	StubGlobalAllocs   = "allocs"
	StubGlobalPNGFrees = "png_frees"
)

// StubModule returns a tiny core wasm module with the renderer's export
// surface. It does not render anything:
//
//   - malloc is a bump allocator starting at StubHeapBase;
//   - free and free_png_buffer only count their calls;
//   - render returns status (c - '0') when the document's first byte c is
//     not '<'; otherwise it points the out-parameters at the eight PNG
//     signature bytes stored at StubOutputOffset and returns 0.
func StubModule(cfg StubConfig) []byte {
	const (
		i32     = 0x7f
		funcTyp = 0x60
	)

	types := vec(
		[]byte{funcTyp, 1, i32, 1, i32},                // 0: (i32) -> i32
		[]byte{funcTyp, 1, i32, 0},                     // 1: (i32) -> ()
		[]byte{funcTyp, 4, i32, i32, i32, i32, 1, i32}, // 2: (i32 i32 i32 i32) -> i32
		[]byte{funcTyp, 2, i32, i32, 0},                // 3: (i32 i32) -> ()
		[]byte{funcTyp, 0, 1, i32},                     // 4: () -> i32
	)

	var base uint32
	var imports []byte
	if cfg.ImportEnv {
		imports = vec(cat(name("env"), name("abort"), []byte{0x00, 1}))
		base = 1
	}

	funcs := [][]byte{{0}, {1}, {2}, {3}}
	if cfg.ABIVersion != 0 {
		funcs = append(funcs, []byte{4})
	}

	globals := vec(
		cat([]byte{i32, 1, 0x41}, sleb(StubHeapBase), []byte{0x0b}),
		[]byte{i32, 1, 0x41, 0, 0x0b},
		[]byte{i32, 1, 0x41, 0, 0x0b},
		[]byte{i32, 1, 0x41, 0, 0x0b},
	)

	exports := [][]byte{
		cat(name("memory"), []byte{0x02, 0}),
		cat(name("malloc"), []byte{0x00}, uleb(base+0)),
		cat(name("free"), []byte{0x00}, uleb(base+1)),
		cat(name("free_png_buffer"), []byte{0x00}, uleb(base+3)),
		cat(name(StubGlobalFrees), []byte{0x03, 1}),
		cat(name(StubGlobalAllocs), []byte{0x03, 2}),
		cat(name(StubGlobalPNGFrees), []byte{0x03, 3}),
	}
	if !cfg.OmitRender {
		exports = append(exports, cat(name("render_svg_to_png_with_options"), []byte{0x00}, uleb(base+2)))
	}
	if cfg.ABIVersion != 0 {
		exports = append(exports, cat(name("resvg_options_abi_version"), []byte{0x00}, uleb(base+4)))
	}

	malloc := []byte{
		0x00,       // no locals
		0x23, 0x00, // global.get heap (result)
		0x23, 0x00, // global.get heap
		0x20, 0x00, // local.get size
		0x6a,       // i32.add
		0x41, 0x07, // i32.const 7
		0x6a,       // i32.add
		0x41, 0x78, // i32.const -8
		0x71,       // i32.and
		0x24, 0x00, // global.set heap
		0x23, 0x02, 0x41, 0x01, 0x6a, 0x24, 0x02, // allocs++
		0x0b,
	}
	free := []byte{
		0x00,
		0x23, 0x01, 0x41, 0x01, 0x6a, 0x24, 0x01, // frees++
		0x0b,
	}
	render := []byte{
		0x00,
		0x20, 0x00, // local.get svg
		0x2d, 0x00, 0x00, // i32.load8_u
		0x41, 0x3c, // i32.const '<'
		0x47,       // i32.ne
		0x04, 0x40, // if
		0x20, 0x00, // local.get svg
		0x2d, 0x00, 0x00, // i32.load8_u
		0x41, 0x30, // i32.const '0'
		0x6b,       // i32.sub
		0x0f,       // return
		0x0b,       // end
		0x20, 0x02, // local.get out_buf
		0x41, StubOutputOffset,
		0x36, 0x02, 0x00, // i32.store
		0x20, 0x03, // local.get out_len
		0x41, byte(len(PNGSignature)),
		0x36, 0x02, 0x00, // i32.store
		0x41, 0x00, // status 0
		0x0b,
	}
	freePNG := []byte{
		0x00,
		0x23, 0x03, 0x41, 0x01, 0x6a, 0x24, 0x03, // png_frees++
		0x0b,
	}
	bodies := [][]byte{malloc, free, render, freePNG}
	if cfg.ABIVersion != 0 {
		bodies = append(bodies, cat([]byte{0x00, 0x41}, sleb(int64(cfg.ABIVersion)), []byte{0x0b}))
	}
	code := make([][]byte, len(bodies))
	for i, b := range bodies {
		code[i] = cat(uleb(uint32(len(b))), b)
	}

	data := vec(cat(
		[]byte{0x00, 0x41, StubOutputOffset, 0x0b},
		uleb(uint32(len(PNGSignature))),
		PNGSignature,
	))

	module := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	module = append(module, section(1, types)...)
	if cfg.ImportEnv {
		module = append(module, section(2, imports)...)
	}
	module = append(module, section(3, vec(funcs...))...)
	module = append(module, section(5, []byte{1, 0x00, 2})...) // one memory, min 2 pages
	module = append(module, section(6, globals)...)
	module = append(module, section(7, vec(exports...))...)
	module = append(module, section(10, vec(code...))...)
	module = append(module, section(11, data)...)
	return module
}

func section(id byte, content []byte) []byte {
	return cat([]byte{id}, uleb(uint32(len(content))), content)
}

func vec(items ...[]byte) []byte {
	return cat(append([][]byte{uleb(uint32(len(items)))}, items...)...)
}

func name(s string) []byte {
	return cat(uleb(uint32(len(s))), []byte(s))
}

func cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
