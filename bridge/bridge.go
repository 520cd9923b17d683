package bridge

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/errors"
)

// Bridge turns caller options into a native record inside the guest and owns
// every scratch buffer the record references. A Bridge serves one render;
// Release must run on every path once it is created.
type Bridge struct {
	mem     svgpng.Memory
	alloc   svgpng.Allocator
	scratch *Scratch
}

func New(mem svgpng.Memory, alloc svgpng.Allocator) *Bridge {
	return &Bridge{
		mem:     mem,
		alloc:   alloc,
		scratch: NewScratch(),
	}
}

// Release frees every scratch buffer exactly once. Calling it again is a no-op.
func (b *Bridge) Release() {
	if b.scratch == nil {
		return
	}
	b.scratch.FreeAndRelease(b.alloc)
	b.scratch = nil
}

// Allocations is the number of live scratch buffers.
func (b *Bridge) Allocations() int {
	if b.scratch == nil {
		return 0
	}
	return b.scratch.Count()
}

// ScratchBytes is the total size of live scratch buffers.
func (b *Bridge) ScratchBytes() uint64 {
	if b.scratch == nil {
		return 0
	}
	return b.scratch.Bytes()
}

func (b *Bridge) allocate(path []string, size, align uint32) (uint32, error) {
	if b.scratch == nil {
		return 0, errors.NotInitialized(errors.PhaseEncode, "bridge")
	}
	ptr, err := b.alloc.Alloc(size, align)
	if err != nil {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Path(path...).
			Detail("failed to allocate %d bytes (align %d)", size, align).
			Cause(err).
			Build()
	}
	if ptr == 0 {
		return 0, errors.New(errors.PhaseEncode, errors.KindAllocation).
			Path(path...).
			Detail("allocator returned null for %d bytes", size).
			Build()
	}
	b.scratch.Add(ptr, size, align)
	return ptr, nil
}

func (b *Bridge) write(path []string, ptr uint32, data []byte) error {
	if err := b.mem.Write(ptr, data); err != nil {
		return errors.New(errors.PhaseEncode, errors.KindOutOfBounds).
			Path(path...).
			Detail("write %d bytes at %d", len(data), ptr).
			Cause(err).
			Build()
	}
	return nil
}

// Document copies the SVG text into the guest as a NUL-terminated string.
// An empty document fails before anything is allocated.
func (b *Bridge) Document(doc string) (uint32, error) {
	if doc == "" {
		return 0, errors.EmptyDocument()
	}
	return b.CString([]string{"document"}, doc)
}

// CString copies s into the guest as a NUL-terminated UTF-8 string.
// The empty string is encoded as the null pointer.
func (b *Bridge) CString(path []string, str string) (uint32, error) {
	if str == "" {
		return 0, nil
	}
	if !utf8.ValidString(str) {
		return 0, errors.InvalidUTF8(errors.PhaseEncode, path, []byte(str))
	}
	if strings.IndexByte(str, 0) >= 0 {
		return 0, errors.InvalidInput(errors.PhaseEncode, path, "string contains a NUL byte")
	}
	if uint64(len(str)) >= math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseEncode, path, len(str), "u32")
	}

	size := uint32(len(str)) + 1
	ptr, err := b.allocate(path, size, 1)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, size)
	copy(buf, str)
	if err := b.write(path, ptr, buf); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Bytes copies data into a guest buffer owned by the bridge.
func (b *Bridge) Bytes(path []string, data []byte) (uint32, error) {
	if uint64(len(data)) > math.MaxUint32 {
		return 0, errors.Overflow(errors.PhaseEncode, path, len(data), "u32")
	}
	ptr, err := b.allocate(path, uint32(len(data)), 1)
	if err != nil {
		return 0, err
	}
	if err := b.write(path, ptr, data); err != nil {
		return 0, err
	}
	return ptr, nil
}

// Encode builds the native record for opts. Absent options become the
// sentinels the renderer reads as "derive from the document". Buffers
// allocated before a failure stay tracked and are freed by Release.
func (b *Bridge) Encode(opts *svgpng.Options) (Record, error) {
	rec := DefaultRecord()
	if opts == nil {
		return rec, nil
	}

	var err error
	if rec.Width, err = dimension(FieldWidth, opts.Width); err != nil {
		return rec, err
	}
	if rec.Height, err = dimension(FieldHeight, opts.Height); err != nil {
		return rec, err
	}
	if opts.Zoom != nil {
		z := *opts.Zoom
		if z <= 0 || math.IsNaN(float64(z)) || math.IsInf(float64(z), 0) {
			return rec, errors.New(errors.PhaseEncode, errors.KindInvalidInput).
				Path("options", FieldZoom).
				Value(z).
				Detail("zoom must be a positive finite number").
				Build()
		}
		rec.Zoom = z
	}

	dpi := opts.EffectiveDPI()
	if dpi > math.MaxInt32 || dpi < math.MinInt32 {
		return rec, errors.Overflow(errors.PhaseEncode, []string{"options", FieldDPI}, dpi, "s32")
	}
	rec.DPI = int32(dpi)

	rec.SkipSystemFonts = opts.SkipSystemFonts
	rec.ExportAreaPage = opts.ExportAreaPage
	rec.ExportAreaDrawing = opts.ExportAreaDrawing

	strs := []struct {
		dst   *uint32
		field string
		value string
	}{
		{&rec.Background, FieldBackground, opts.Background},
		{&rec.ExportID, FieldExportID, opts.ExportID},
		{&rec.ResourcesDir, FieldResourcesDir, opts.ResourcesDir},
		{&rec.FontFile, FieldFontFile, opts.FontFile},
		{&rec.FontDir, FieldFontDir, opts.FontDir},
	}
	for _, f := range strs {
		if *f.dst, err = b.CString([]string{"options", f.field}, f.value); err != nil {
			return rec, err
		}
	}

	if err := b.encodeFonts(opts.Fonts, &rec); err != nil {
		return rec, err
	}
	return rec, nil
}

func dimension(field string, v *int) (int32, error) {
	if v == nil {
		return UnsetDimension, nil
	}
	path := []string{"options", field}
	if *v <= 0 {
		return 0, errors.New(errors.PhaseEncode, errors.KindInvalidInput).
			Path(path...).
			Value(*v).
			Detail("%s must be positive", field).
			Build()
	}
	if *v > math.MaxInt32 {
		return 0, errors.Overflow(errors.PhaseEncode, path, *v, "s32")
	}
	return int32(*v), nil
}

// encodeFonts copies every blob and builds the parallel pointer and length
// arrays. An empty list leaves the null pointers and zero count in place.
func (b *Bridge) encodeFonts(fonts [][]byte, rec *Record) error {
	if len(fonts) == 0 {
		return nil
	}
	n := uint32(len(fonts))
	if uint64(len(fonts))*PointerSize > math.MaxUint32 {
		return errors.Overflow(errors.PhaseEncode, []string{"options", FieldFonts}, len(fonts), "u32")
	}

	ptrs := make([]byte, n*PointerSize)
	lens := make([]byte, n*PointerSize)
	for i, font := range fonts {
		if len(font) == 0 {
			return errors.FontData(i)
		}
		path := []string{"options", fmt.Sprintf("fonts[%d]", i)}
		ptr, err := b.Bytes(path, font)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(ptrs[i*PointerSize:], ptr)
		binary.LittleEndian.PutUint32(lens[i*PointerSize:], uint32(len(font)))
	}

	fontsPath := []string{"options", FieldFonts}
	arr, err := b.allocate(fontsPath, n*PointerSize, PointerSize)
	if err != nil {
		return err
	}
	if err := b.write(fontsPath, arr, ptrs); err != nil {
		return err
	}

	lensPath := []string{"options", FieldFontLens}
	lensArr, err := b.allocate(lensPath, n*PointerSize, PointerSize)
	if err != nil {
		return err
	}
	if err := b.write(lensPath, lensArr, lens); err != nil {
		return err
	}

	rec.Fonts = arr
	rec.FontLens = lensArr
	rec.FontCount = n
	return nil
}

// Place allocates the record inside the guest and writes it there.
func (b *Bridge) Place(rec Record) (uint32, error) {
	path := []string{"record"}
	ptr, err := b.allocate(path, RecordLayout.Size, RecordLayout.Align)
	if err != nil {
		return 0, err
	}
	if err := b.write(path, ptr, rec.Encode()); err != nil {
		return 0, err
	}
	return ptr, nil
}

// OutSlots allocates the two out-parameters of the render call, an output
// pointer followed by its length, both zeroed.
func (b *Bridge) OutSlots() (ptrAddr, lenAddr uint32, err error) {
	path := []string{"out"}
	base, err := b.allocate(path, 2*PointerSize, PointerSize)
	if err != nil {
		return 0, 0, err
	}
	if err := b.write(path, base, make([]byte, 2*PointerSize)); err != nil {
		return 0, 0, err
	}
	return base, base + PointerSize, nil
}
