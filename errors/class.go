package errors

import stderrors "errors"

// Class groups failures by who has to act on them.
type Class int

const (
	// ClassHost covers host-side problems: loading, instantiation,
	// allocation and memory access.
	ClassHost Class = iota
	// ClassCaller means the request itself must be fixed.
	ClassCaller
	// ClassDocument means the SVG could not be parsed.
	ClassDocument
	// ClassEngine means the renderer failed on a valid request.
	ClassEngine
)

func (c Class) String() string {
	switch c {
	case ClassCaller:
		return "caller"
	case ClassDocument:
		return "document"
	case ClassEngine:
		return "engine"
	default:
		return "host"
	}
}

// ClassOf classifies err. Errors that are not *Error are ClassHost.
func ClassOf(err error) Class {
	var e *Error
	if !stderrors.As(err, &e) {
		return ClassHost
	}
	switch e.Kind {
	case KindInvalidInput, KindInvalidUTF8, KindOverflow, KindFontLoad:
		return ClassCaller
	case KindParse:
		return ClassDocument
	case KindRender, KindOutOfMemory, KindUnknownStatus, KindTrap:
		return ClassEngine
	default:
		return ClassHost
	}
}

// StatusOf returns the raw foreign status carried by err, if any.
func StatusOf(err error) (int32, bool) {
	var e *Error
	if !stderrors.As(err, &e) || !e.HasStatus {
		return 0, false
	}
	return e.Status, true
}
