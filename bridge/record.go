package bridge

import (
	"encoding/binary"
	"math"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/errors"
)

// Record is the fixed-layout options record passed by reference to the
// renderer. Pointer fields are linear-memory offsets; zero means unset.
type Record struct {
	Width             int32
	Height            int32
	Zoom              float32
	DPI               int32
	SkipSystemFonts   bool
	Background        uint32
	ExportID          uint32
	ExportAreaPage    bool
	ExportAreaDrawing bool
	ResourcesDir      uint32
	Fonts             uint32
	FontLens          uint32
	FontCount         uint32
	FontFile          uint32
	FontDir           uint32
}

// DefaultRecord is the record produced for nil options.
func DefaultRecord() Record {
	return Record{
		Width:  UnsetDimension,
		Height: UnsetDimension,
		Zoom:   UnsetZoom,
		DPI:    svgpng.DefaultDPI,
	}
}

// Encode returns the record in wire form. Padding bytes are zero.
func (r Record) Encode() []byte {
	l := RecordLayout
	buf := make([]byte, l.Size)
	le := binary.LittleEndian

	le.PutUint32(buf[l.Width:], uint32(r.Width))
	le.PutUint32(buf[l.Height:], uint32(r.Height))
	le.PutUint32(buf[l.Zoom:], math.Float32bits(r.Zoom))
	le.PutUint32(buf[l.DPI:], uint32(r.DPI))
	buf[l.SkipSystemFonts] = boolByte(r.SkipSystemFonts)
	le.PutUint32(buf[l.Background:], r.Background)
	le.PutUint32(buf[l.ExportID:], r.ExportID)
	buf[l.ExportAreaPage] = boolByte(r.ExportAreaPage)
	buf[l.ExportAreaDrawing] = boolByte(r.ExportAreaDrawing)
	le.PutUint32(buf[l.ResourcesDir:], r.ResourcesDir)
	le.PutUint32(buf[l.Fonts:], r.Fonts)
	le.PutUint32(buf[l.FontLens:], r.FontLens)
	le.PutUint32(buf[l.FontCount:], r.FontCount)
	le.PutUint32(buf[l.FontFile:], r.FontFile)
	le.PutUint32(buf[l.FontDir:], r.FontDir)

	return buf
}

// DecodeRecord reads a record back from linear memory.
func DecodeRecord(mem svgpng.Memory, ptr uint32) (Record, error) {
	l := RecordLayout
	buf, err := mem.Read(ptr, l.Size)
	if err != nil {
		return Record{}, errors.OutOfBounds(errors.PhaseDecode, []string{"record"}, ptr, l.Size)
	}
	le := binary.LittleEndian

	return Record{
		Width:             int32(le.Uint32(buf[l.Width:])),
		Height:            int32(le.Uint32(buf[l.Height:])),
		Zoom:              math.Float32frombits(le.Uint32(buf[l.Zoom:])),
		DPI:               int32(le.Uint32(buf[l.DPI:])),
		SkipSystemFonts:   buf[l.SkipSystemFonts] != 0,
		Background:        le.Uint32(buf[l.Background:]),
		ExportID:          le.Uint32(buf[l.ExportID:]),
		ExportAreaPage:    buf[l.ExportAreaPage] != 0,
		ExportAreaDrawing: buf[l.ExportAreaDrawing] != 0,
		ResourcesDir:      le.Uint32(buf[l.ResourcesDir:]),
		Fonts:             le.Uint32(buf[l.Fonts:]),
		FontLens:          le.Uint32(buf[l.FontLens:]),
		FontCount:         le.Uint32(buf[l.FontCount:]),
		FontFile:          le.Uint32(buf[l.FontFile:]),
		FontDir:           le.Uint32(buf[l.FontDir:]),
	}, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
