package runtime

import (
	"bytes"
	"context"
	stderrors "errors"
	"image/png"
	"os"
	"testing"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/errors"
)

// Tests against a real resvg build. Set SVGPNG_RESVG_WASM to its path.
func loadResvg(t *testing.T) *Runtime {
	t.Helper()
	path := os.Getenv("SVGPNG_RESVG_WASM")
	if path == "" {
		t.Skip("SVGPNG_RESVG_WASM not set")
	}
	wasm, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wasm: %v", err)
	}

	ctx := context.Background()
	rt, err := New(ctx, wasm, &Config{PoolSize: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { rt.Close(ctx) })
	return rt
}

const square = `<svg xmlns="http://www.w3.org/2000/svg" width="20" height="10" viewBox="0 0 20 10">
  <rect width="20" height="10" fill="#336699"/>
</svg>`

func TestResvg_Sizes(t *testing.T) {
	rt := loadResvg(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts *svgpng.Options
		w, h int
	}{
		{"intrinsic", nil, 20, 10},
		{"width", &svgpng.Options{Width: svgpng.Ptr(100)}, 100, 50},
		{"height", &svgpng.Options{Height: svgpng.Ptr(40)}, 80, 40},
		{"zoom", &svgpng.Options{Zoom: svgpng.Ptr(float32(3))}, 60, 30},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := rt.Render(ctx, square, tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47}) {
				t.Fatalf("not a PNG: % x", data[:min(8, len(data))])
			}
			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatal(err)
			}
			if b := img.Bounds(); b.Dx() != tc.w || b.Dy() != tc.h {
				t.Errorf("size = %dx%d, want %dx%d", b.Dx(), b.Dy(), tc.w, tc.h)
			}
		})
	}
}

func TestResvg_Failures(t *testing.T) {
	rt := loadResvg(t)
	ctx := context.Background()

	if _, err := rt.Render(ctx, "this is not svg", nil); !stderrors.Is(err, errors.ErrParse) {
		t.Errorf("garbage document: err = %v", err)
	}
	if _, err := rt.Render(ctx, square, &svgpng.Options{Fonts: [][]byte{{}}}); !stderrors.Is(err, errors.ErrFontLoad) {
		t.Errorf("empty font: err = %v", err)
	}

	// invalid background strings are ignored, not rejected
	if _, err := rt.Render(ctx, square, &svgpng.Options{Background: "not-a-color"}); err != nil {
		t.Errorf("bad background: %v", err)
	}
}

func TestResvg_Deterministic(t *testing.T) {
	rt := loadResvg(t)
	ctx := context.Background()
	opts := &svgpng.Options{Width: svgpng.Ptr(64), Background: "#fff"}

	a, err := rt.Render(ctx, square, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := rt.Render(ctx, square, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("identical renders differ")
	}
}
