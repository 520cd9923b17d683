package bridge_test

import (
	"bytes"
	stderrors "errors"
	"math"
	"strconv"
	"testing"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/bridge"
	"github.com/wippyai/svgpng/errors"
	"github.com/wippyai/svgpng/internal/testguest"
)

func newBridge() (*bridge.Bridge, *testguest.Guest) {
	g := testguest.New()
	return bridge.New(g.Memory(), g.Allocator()), g
}

func TestEncodeNilOptions(t *testing.T) {
	b, g := newBridge()
	defer b.Release()

	rec, err := b.Encode(nil)
	if err != nil {
		t.Fatal(err)
	}
	if rec != bridge.DefaultRecord() {
		t.Errorf("rec = %+v, want defaults", rec)
	}
	if rec.Width != -1 || rec.Height != -1 || rec.Zoom != 0 || rec.DPI != 96 {
		t.Errorf("sentinels not applied: %+v", rec)
	}
	if g.Heap.Allocs != 0 {
		t.Errorf("nil options allocated %d buffers", g.Heap.Allocs)
	}
}

func TestEncodeZeroOptionsMatchesNil(t *testing.T) {
	b, _ := newBridge()
	defer b.Release()

	rec, err := b.Encode(&svgpng.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rec != bridge.DefaultRecord() {
		t.Errorf("rec = %+v, want defaults", rec)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	b, g := newBridge()

	fonts := [][]byte{[]byte("font-one"), []byte("font-number-two")}
	opts := &svgpng.Options{
		Width:             svgpng.Ptr(200),
		Height:            svgpng.Ptr(150),
		Zoom:              svgpng.Ptr(float32(2.5)),
		DPI:               300,
		SkipSystemFonts:   true,
		Background:        "#ff000080",
		ExportID:          "layer-1",
		ExportAreaPage:    true,
		ExportAreaDrawing: true,
		ResourcesDir:      "/assets",
		FontFile:          "/fonts/Inter-Regular.ttf",
		FontDir:           "/fonts",
		Fonts:             fonts,
	}

	rec, err := b.Encode(opts)
	if err != nil {
		t.Fatal(err)
	}
	ptr, err := b.Place(rec)
	if err != nil {
		t.Fatal(err)
	}

	got, err := bridge.DecodeRecord(g.Mem, ptr)
	if err != nil {
		t.Fatal(err)
	}
	if got != rec {
		t.Fatalf("decoded %+v, placed %+v", got, rec)
	}

	if got.Width != 200 || got.Height != 150 || got.Zoom != 2.5 || got.DPI != 300 {
		t.Errorf("numeric fields: %+v", got)
	}
	if !got.SkipSystemFonts || !got.ExportAreaPage || !got.ExportAreaDrawing {
		t.Errorf("flags: %+v", got)
	}

	strs := map[string]struct {
		ptr  uint32
		want string
	}{
		"background":    {got.Background, opts.Background},
		"export_id":     {got.ExportID, opts.ExportID},
		"resources_dir": {got.ResourcesDir, opts.ResourcesDir},
		"font_file":     {got.FontFile, opts.FontFile},
		"font_dir":      {got.FontDir, opts.FontDir},
	}
	for name, s := range strs {
		if s.ptr == 0 {
			t.Errorf("%s: null pointer", name)
			continue
		}
		v, err := g.Mem.CString(s.ptr)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if v != s.want {
			t.Errorf("%s = %q, want %q", name, v, s.want)
		}
	}

	if got.FontCount != 2 {
		t.Fatalf("FontCount = %d, want 2", got.FontCount)
	}
	for i, want := range fonts {
		p, _ := g.Mem.ReadU32(got.Fonts + uint32(i)*bridge.PointerSize)
		n, _ := g.Mem.ReadU32(got.FontLens + uint32(i)*bridge.PointerSize)
		data, err := g.Mem.Read(p, n)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, want) {
			t.Errorf("font %d = %q, want %q", i, data, want)
		}
	}

	// 5 strings + 2 blobs + 2 arrays + record
	if b.Allocations() != 10 {
		t.Errorf("Allocations = %d, want 10", b.Allocations())
	}

	b.Release()
	if g.Heap.Frees != g.Heap.Allocs || len(g.Heap.Live()) != 0 {
		t.Errorf("allocs %d frees %d live %v", g.Heap.Allocs, g.Heap.Frees, g.Heap.Live())
	}
	if g.Heap.BadFrees != 0 {
		t.Errorf("BadFrees = %d", g.Heap.BadFrees)
	}
}

func TestFontBlobsAreCopies(t *testing.T) {
	b, g := newBridge()
	defer b.Release()

	blob := []byte("original")
	rec, err := b.Encode(&svgpng.Options{Fonts: [][]byte{blob}})
	if err != nil {
		t.Fatal(err)
	}
	blob[0] = 'X'

	p, _ := g.Mem.ReadU32(rec.Fonts)
	data, _ := g.Mem.Read(p, 8)
	if string(data) != "original" {
		t.Errorf("guest copy changed with caller slice: %q", data)
	}
}

func TestEmptyStringsAreNull(t *testing.T) {
	b, g := newBridge()
	defer b.Release()

	rec, err := b.Encode(&svgpng.Options{Background: "", ExportID: ""})
	if err != nil {
		t.Fatal(err)
	}
	if rec.Background != 0 || rec.ExportID != 0 || rec.Fonts != 0 || rec.FontLens != 0 || rec.FontCount != 0 {
		t.Errorf("absent fields not null: %+v", rec)
	}
	if g.Heap.Allocs != 0 {
		t.Errorf("allocated %d buffers for absent strings", g.Heap.Allocs)
	}
}

func TestInvalidFontReleasesEarlierBuffers(t *testing.T) {
	tests := []struct {
		name  string
		fonts [][]byte
		index int
	}{
		{"empty first", [][]byte{{}}, 0},
		{"nil first", [][]byte{nil}, 0},
		{"empty after valid", [][]byte{[]byte("a"), []byte("bb"), {}}, 2},
		{"nil after valid", [][]byte{[]byte("a"), nil, []byte("c")}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, g := newBridge()

			_, err := b.Encode(&svgpng.Options{
				Background: "white",
				Fonts:      tt.fonts,
			})
			if !stderrors.Is(err, errors.ErrFontLoad) {
				t.Fatalf("err = %v, want font load", err)
			}
			var e *errors.Error
			if !stderrors.As(err, &e) || e.Phase != errors.PhaseValidate || e.Value != tt.index {
				t.Errorf("err = %#v, want validate phase at index %d", e, tt.index)
			}

			// background string plus one buffer per valid blob before the bad one
			if want := 1 + tt.index; b.Allocations() != want {
				t.Errorf("Allocations = %d, want %d", b.Allocations(), want)
			}

			b.Release()
			if g.Heap.Frees != g.Heap.Allocs || len(g.Heap.Live()) != 0 {
				t.Errorf("leak: allocs %d frees %d", g.Heap.Allocs, g.Heap.Frees)
			}
		})
	}
}

func TestEncodeRejectsInvalidNumbers(t *testing.T) {
	tests := []struct {
		name string
		opts svgpng.Options
		kind errors.Kind
	}{
		{"zero width", svgpng.Options{Width: svgpng.Ptr(0)}, errors.KindInvalidInput},
		{"negative height", svgpng.Options{Height: svgpng.Ptr(-5)}, errors.KindInvalidInput},
		{"zero zoom", svgpng.Options{Zoom: svgpng.Ptr(float32(0))}, errors.KindInvalidInput},
		{"negative zoom", svgpng.Options{Zoom: svgpng.Ptr(float32(-1))}, errors.KindInvalidInput},
		{"nan zoom", svgpng.Options{Zoom: svgpng.Ptr(float32(math.NaN()))}, errors.KindInvalidInput},
		{"inf zoom", svgpng.Options{Zoom: svgpng.Ptr(float32(math.Inf(1)))}, errors.KindInvalidInput},
	}

	if strconv.IntSize == 64 {
		big := math.MaxInt32
		big++
		tests = append(tests, struct {
			name string
			opts svgpng.Options
			kind errors.Kind
		}{"width overflow", svgpng.Options{Width: &big}, errors.KindOverflow})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, g := newBridge()
			defer b.Release()

			_, err := b.Encode(&tt.opts)
			var e *errors.Error
			if !stderrors.As(err, &e) {
				t.Fatalf("err = %v, want *errors.Error", err)
			}
			if e.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", e.Kind, tt.kind)
			}
			if errors.ClassOf(err) != errors.ClassCaller {
				t.Errorf("ClassOf = %v, want caller", errors.ClassOf(err))
			}
			if g.Heap.Allocs != 0 {
				t.Errorf("allocated before numeric validation: %d", g.Heap.Allocs)
			}
		})
	}
}

func TestDPIIsForwardedUnchanged(t *testing.T) {
	for _, dpi := range []int{-1, 1, 72, 96, 10000} {
		b, _ := newBridge()
		rec, err := b.Encode(&svgpng.Options{DPI: dpi})
		b.Release()
		if err != nil {
			t.Fatalf("dpi %d: %v", dpi, err)
		}
		if rec.DPI != int32(dpi) {
			t.Errorf("dpi %d encoded as %d", dpi, rec.DPI)
		}
	}
}

func TestCStringValidation(t *testing.T) {
	b, g := newBridge()
	defer b.Release()

	if _, err := b.CString([]string{"bad"}, "a\xffb"); !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidUTF8}) {
		t.Errorf("invalid UTF-8: err = %v", err)
	}
	if _, err := b.CString([]string{"nul"}, "a\x00b"); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("embedded NUL: err = %v", err)
	}
	if g.Heap.Allocs != 0 {
		t.Errorf("rejected strings allocated %d buffers", g.Heap.Allocs)
	}

	ptr, err := b.CString([]string{"ok"}, "héllo")
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := g.Mem.Read(ptr, uint32(len("héllo"))+1)
	if raw[len(raw)-1] != 0 {
		t.Error("missing NUL terminator")
	}
	if s, _ := g.Mem.CString(ptr); s != "héllo" {
		t.Errorf("CString = %q", s)
	}
}

func TestDocument(t *testing.T) {
	b, g := newBridge()
	defer b.Release()

	_, err := b.Document("")
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("err = %v, want invalid input", err)
	}
	if g.Heap.Allocs != 0 {
		t.Errorf("empty document allocated %d buffers", g.Heap.Allocs)
	}

	svg := `<svg xmlns="http://www.w3.org/2000/svg"/>`
	ptr, err := b.Document(svg)
	if err != nil {
		t.Fatal(err)
	}
	if s, _ := g.Mem.CString(ptr); s != svg {
		t.Errorf("document = %q", s)
	}
}

func TestAllocationFailureKeepsEarlierBuffersTracked(t *testing.T) {
	b, g := newBridge()
	g.Heap.FailAt = 3

	_, err := b.Encode(&svgpng.Options{
		Background:   "red",
		ExportID:     "id",
		ResourcesDir: "/r",
	})
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindAllocation}) {
		t.Fatalf("err = %v, want allocation failure", err)
	}
	if errors.ClassOf(err) != errors.ClassHost {
		t.Errorf("ClassOf = %v, want host", errors.ClassOf(err))
	}
	if b.Allocations() != 2 {
		t.Errorf("Allocations = %d, want 2", b.Allocations())
	}

	b.Release()
	if g.Heap.Frees != 2 || len(g.Heap.Live()) != 0 {
		t.Errorf("frees %d live %v", g.Heap.Frees, g.Heap.Live())
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	b, g := newBridge()

	if _, err := b.Document("<svg/>"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := b.OutSlots(); err != nil {
		t.Fatal(err)
	}

	b.Release()
	b.Release()

	if g.Heap.Frees != 2 || g.Heap.BadFrees != 0 {
		t.Errorf("frees %d bad %d, want 2/0", g.Heap.Frees, g.Heap.BadFrees)
	}
	if b.Allocations() != 0 {
		t.Errorf("Allocations after release = %d", b.Allocations())
	}
	if _, err := b.Document("<svg/>"); !stderrors.Is(err, &errors.Error{Kind: errors.KindNotInitialized}) {
		t.Errorf("use after release: err = %v", err)
	}
}

func TestOutSlots(t *testing.T) {
	b, g := newBridge()
	defer b.Release()

	ptrAddr, lenAddr, err := b.OutSlots()
	if err != nil {
		t.Fatal(err)
	}
	if lenAddr != ptrAddr+bridge.PointerSize {
		t.Errorf("len slot at %d, ptr slot at %d", lenAddr, ptrAddr)
	}
	if ptrAddr%bridge.PointerSize != 0 {
		t.Errorf("out slots misaligned: %d", ptrAddr)
	}
	for _, addr := range []uint32{ptrAddr, lenAddr} {
		if v, _ := g.Mem.ReadU32(addr); v != 0 {
			t.Errorf("slot %d = %d, want 0", addr, v)
		}
	}
}
