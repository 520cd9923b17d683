// Package runtime is the high-level API for rendering SVG documents to PNG.
//
// # Quick Start
//
//	ctx := context.Background()
//	wasm, err := os.ReadFile("resvg.wasm")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rt, err := runtime.New(ctx, wasm, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	png, err := rt.Render(ctx, svgText, &svgpng.Options{Width: svgpng.Ptr(256)})
//
// # Concurrency
//
// A Runtime keeps a pool of renderer instances, PoolSize at most. Render is
// safe for concurrent use; each call holds one instance exclusively. Waiting
// for a free instance respects ctx, the render call itself does not: once
// issued it runs to completion.
//
// An instance whose guest call trapped is closed instead of returned to the
// pool, and a fresh one is created on demand.
//
// # Files
//
// The renderer reads fonts and linked images only through Config.Mounts.
// RenderFile sets Options.ResourcesDir to the guest path of the document's
// directory when that directory is under a mount, so relative hrefs resolve
// next to the input the way the resvg CLI does.
//
// # Errors
//
// Every error is an *errors.Error or *errors.MissingImportsError. Use
// errors.ClassOf to tell caller, document and engine failures apart.
package runtime
