package errors

// Status codes returned by render_svg_to_png_with_options.
const (
	StatusOK          int32 = 0
	StatusParse       int32 = 1
	StatusRender      int32 = 2
	StatusFontLoad    int32 = 3
	StatusOutOfMemory int32 = 4
)

// FromStatus maps a foreign status code to a typed error. It returns nil
// for StatusOK. Codes outside the known set become KindUnknownStatus and keep
// the raw value.
func FromStatus(code int32) *Error {
	b := New(PhaseRender, KindUnknownStatus).Status(code)
	switch code {
	case StatusOK:
		return nil
	case StatusParse:
		b = New(PhaseRender, KindParse).Status(code).Detail("failed to parse SVG")
	case StatusRender:
		b = New(PhaseRender, KindRender).Status(code).Detail("failed to render PNG")
	case StatusFontLoad:
		b = New(PhaseRender, KindFontLoad).Status(code).Detail("failed to load fonts")
	case StatusOutOfMemory:
		b = New(PhaseRender, KindOutOfMemory).Status(code).Detail("memory allocation failed")
	default:
		b = b.Value(code).Detail("unknown error: %d", code)
	}
	return b.Build()
}
