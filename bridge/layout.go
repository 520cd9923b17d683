package bridge

import (
	"go.bytecodealliance.org/wit"
)

// RecordVersion identifies the record layout below. A renderer that exports
// resvg_options_abi_version must report the same value.
const RecordVersion = 1

// PointerSize is the width of pointer and size_t fields on the wasm32 target.
const PointerSize = 4

// Sentinels written for absent options.
const (
	UnsetDimension int32   = -1
	UnsetZoom      float32 = 0
)

// Record field names, in wire order.
const (
	FieldWidth             = "width"
	FieldHeight            = "height"
	FieldZoom              = "zoom"
	FieldDPI               = "dpi"
	FieldSkipSystemFonts   = "skip_system_fonts"
	FieldBackground        = "background"
	FieldExportID          = "export_id"
	FieldExportAreaPage    = "export_area_page"
	FieldExportAreaDrawing = "export_area_drawing"
	FieldResourcesDir      = "resources_dir"
	FieldFonts             = "fonts"
	FieldFontLens          = "font_lens"
	FieldFontCount         = "font_count"
	FieldFontFile          = "font_file"
	FieldFontDir           = "font_dir"
)

// pointer and size_t are both u32 on wasm32
var pointerType wit.Type = wit.U32{}

// RecordSchema describes the native options record as a WIT record. Field
// order and widths are the wire contract; any change needs a new
// RecordVersion.
var RecordSchema = &wit.TypeDef{
	Kind: &wit.Record{
		Fields: []wit.Field{
			{Name: FieldWidth, Type: wit.S32{}},
			{Name: FieldHeight, Type: wit.S32{}},
			{Name: FieldZoom, Type: wit.F32{}},
			{Name: FieldDPI, Type: wit.S32{}},
			{Name: FieldSkipSystemFonts, Type: wit.Bool{}},
			{Name: FieldBackground, Type: pointerType},
			{Name: FieldExportID, Type: pointerType},
			{Name: FieldExportAreaPage, Type: wit.Bool{}},
			{Name: FieldExportAreaDrawing, Type: wit.Bool{}},
			{Name: FieldResourcesDir, Type: pointerType},
			{Name: FieldFonts, Type: pointerType},
			{Name: FieldFontLens, Type: pointerType},
			{Name: FieldFontCount, Type: pointerType},
			{Name: FieldFontFile, Type: pointerType},
			{Name: FieldFontDir, Type: pointerType},
		},
	},
}

// Info is the size, alignment and field offsets of a type.
type Info struct {
	FieldOffs map[string]uint32
	Size      uint32
	Align     uint32
}

// Calculator computes C-compatible layouts for the scalar and record types
// used by the native record.
type Calculator struct {
	cache map[*wit.TypeDef]Info
}

func NewCalculator() *Calculator {
	return &Calculator{
		cache: make(map[*wit.TypeDef]Info),
	}
}

func (c *Calculator) Calculate(t wit.Type) Info {
	switch typ := t.(type) {
	case wit.U8, wit.S8, wit.Bool:
		return Info{Size: 1, Align: 1}
	case wit.U16, wit.S16:
		return Info{Size: 2, Align: 2}
	case wit.U32, wit.S32, wit.F32:
		return Info{Size: 4, Align: 4}
	case wit.U64, wit.S64, wit.F64:
		return Info{Size: 8, Align: 8}
	case *wit.TypeDef:
		return c.calculateTypeDef(typ)
	default:
		return Info{Size: 0, Align: 1}
	}
}

func (c *Calculator) calculateTypeDef(t *wit.TypeDef) Info {
	if cached, ok := c.cache[t]; ok {
		return cached
	}

	var info Info
	switch kind := t.Kind.(type) {
	case *wit.Record:
		info = c.calculateRecord(kind)
	case wit.Type:
		info = c.Calculate(kind)
	default:
		info = Info{Size: 0, Align: 1}
	}

	c.cache[t] = info
	return info
}

// calculateRecord places each field at its natural alignment and rounds the
// total size up to the widest alignment, the same rule a C compiler uses.
func (c *Calculator) calculateRecord(r *wit.Record) Info {
	if len(r.Fields) == 0 {
		return Info{Size: 0, Align: 1}
	}

	fieldOffs := make(map[string]uint32, len(r.Fields))
	maxAlign := uint32(1)
	offset := uint32(0)

	for _, field := range r.Fields {
		fieldLayout := c.Calculate(field.Type)

		offset = alignTo(offset, fieldLayout.Align)
		fieldOffs[field.Name] = offset

		if fieldLayout.Align > maxAlign {
			maxAlign = fieldLayout.Align
		}

		offset += fieldLayout.Size
	}

	return Info{
		Size:      alignTo(offset, maxAlign),
		Align:     maxAlign,
		FieldOffs: fieldOffs,
	}
}

func alignTo(offset, align uint32) uint32 {
	if align == 0 {
		return offset
	}
	return (offset + align - 1) &^ (align - 1)
}

// Layout holds the byte offset of every record field.
type Layout struct {
	Size              uint32
	Align             uint32
	Width             uint32
	Height            uint32
	Zoom              uint32
	DPI               uint32
	SkipSystemFonts   uint32
	Background        uint32
	ExportID          uint32
	ExportAreaPage    uint32
	ExportAreaDrawing uint32
	ResourcesDir      uint32
	Fonts             uint32
	FontLens          uint32
	FontCount         uint32
	FontFile          uint32
	FontDir           uint32
}

// RecordLayout is the layout of RecordSchema.
var RecordLayout = newLayout(NewCalculator().Calculate(RecordSchema))

func newLayout(info Info) Layout {
	offs := info.FieldOffs
	return Layout{
		Size:              info.Size,
		Align:             info.Align,
		Width:             offs[FieldWidth],
		Height:            offs[FieldHeight],
		Zoom:              offs[FieldZoom],
		DPI:               offs[FieldDPI],
		SkipSystemFonts:   offs[FieldSkipSystemFonts],
		Background:        offs[FieldBackground],
		ExportID:          offs[FieldExportID],
		ExportAreaPage:    offs[FieldExportAreaPage],
		ExportAreaDrawing: offs[FieldExportAreaDrawing],
		ResourcesDir:      offs[FieldResourcesDir],
		Fonts:             offs[FieldFonts],
		FontLens:          offs[FieldFontLens],
		FontCount:         offs[FieldFontCount],
		FontFile:          offs[FieldFontFile],
		FontDir:           offs[FieldFontDir],
	}
}
