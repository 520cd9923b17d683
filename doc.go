// Package svgpng renders SVG documents to PNG through a resvg build compiled
// to WebAssembly and hosted in-process.
//
// # Architecture Overview
//
//	svgpng/          Root package with Memory, Allocator and Options
//	├── runtime/     High-level API: Runtime.Render, instance pool
//	├── render/      One render call: bridge, foreign call, output release
//	├── bridge/      Option record layout and scratch buffers in guest memory
//	├── engine/      wazero host for the renderer module
//	└── errors/      Structured errors and status mapping
//
// # Quick Start
//
//	rt, err := runtime.New(ctx, wasmBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	png, err := rt.Render(ctx, `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"/>`,
//	    &svgpng.Options{Width: svgpng.Ptr(64), Background: "white"})
//
// # Options
//
// Unset values are nil pointers or empty strings. They reach the renderer as
// its documented sentinels: -1 for width and height, 0 for zoom, null for
// strings and the default DPI of 96.
//
// # Memory Ownership
//
// Everything the host writes into guest memory for a call is freed before the
// call returns, on every path. The PNG buffer the renderer returns is copied
// out and handed back through free_png_buffer exactly once, and only when the
// render succeeded.
package svgpng
