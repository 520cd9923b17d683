package svgpng

// DefaultDPI is used when Options.DPI is zero.
const DefaultDPI = 96

// Options controls a single render. The zero value renders the document at
// its intrinsic size with default settings.
//
// Optional numeric fields are pointers; optional strings are absent when
// empty. How absent values are encoded for the renderer is not visible here.
type Options struct {
	// Width and Height select the output size in pixels. When only one is
	// set the renderer derives the other from the document's aspect ratio.
	Width  *int
	Height *int

	// Zoom multiplies the intrinsic size.
	Zoom *float32

	// DPI used to resolve physical units. Zero selects DefaultDPI. Invalid
	// values are forwarded; the renderer clamps or ignores them.
	DPI int

	SkipSystemFonts bool

	// Background is a CSS color string. The renderer ignores colors it
	// cannot parse.
	Background string

	// ExportID renders only the element with this id.
	ExportID string

	ExportAreaPage    bool
	ExportAreaDrawing bool

	// ResourcesDir is the base path used to resolve external references.
	ResourcesDir string

	// FontFile and FontDir are resolved inside the renderer's filesystem view.
	FontFile string
	FontDir  string

	// Fonts holds in-memory font data. Every entry must be non-empty.
	Fonts [][]byte
}

// Ptr returns a pointer to v, for filling optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// EffectiveDPI returns the DPI that is sent to the renderer.
func (o *Options) EffectiveDPI() int {
	if o == nil || o.DPI == 0 {
		return DefaultDPI
	}
	return o.DPI
}
