package render

import (
	"bytes"
	"context"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/bridge"
	"github.com/wippyai/svgpng/errors"
	"go.uber.org/zap"
)

// Foreign entry point names, used in error messages.
const (
	RenderFunc  = "render_svg_to_png_with_options"
	ReleaseFunc = "free_png_buffer"
)

// Guest is an instantiated renderer. Implementations are not safe for
// concurrent use; callers hold a Guest exclusively for one Render.
type Guest interface {
	Memory() svgpng.Memory
	Allocator() svgpng.Allocator

	// Render calls the foreign render entry point. A non-nil error means the
	// call itself failed (trap, closed instance), not that it returned a
	// non-zero status.
	Render(ctx context.Context, doc, record, outPtr, outLen uint32) (int32, error)

	// FreeOutput calls the foreign buffer-release entry point.
	FreeOutput(ctx context.Context, ptr, length uint32) error
}

// Output is a buffer owned by the renderer. It is only ever released through
// Guest.FreeOutput and never enters a scratch set.
type Output struct {
	Ptr uint32
	Len uint32
}

func (o Output) release(ctx context.Context, g Guest) error {
	if err := g.FreeOutput(ctx, o.Ptr, o.Len); err != nil {
		return errors.Trap(ReleaseFunc, err)
	}
	return nil
}

// Render renders doc to PNG bytes using g.
func Render(ctx context.Context, g Guest, doc string, opts *svgpng.Options) ([]byte, error) {
	if doc == "" {
		return nil, errors.EmptyDocument()
	}

	b := bridge.New(g.Memory(), g.Allocator())
	defer b.Release()

	docPtr, err := b.Document(doc)
	if err != nil {
		return nil, err
	}
	rec, err := b.Encode(opts)
	if err != nil {
		return nil, err
	}
	recPtr, err := b.Place(rec)
	if err != nil {
		return nil, err
	}
	outPtr, outLen, err := b.OutSlots()
	if err != nil {
		return nil, err
	}

	log := Logger()
	log.Debug("render",
		zap.Int("document_bytes", len(doc)),
		zap.Int("scratch", b.Allocations()),
		zap.Uint64("scratch_bytes", b.ScratchBytes()),
		zap.Uint32("fonts", rec.FontCount))

	status, err := g.Render(ctx, docPtr, recPtr, outPtr, outLen)
	if err != nil {
		return nil, errors.Trap(RenderFunc, err)
	}
	if err := errors.FromStatus(status); err != nil {
		log.Debug("render failed", zap.Int32("status", status), zap.Error(err))
		return nil, err
	}

	out, err := readOutput(g.Memory(), outPtr, outLen)
	if err != nil {
		return nil, err
	}
	return collect(ctx, g, out)
}

func readOutput(mem svgpng.Memory, ptrAddr, lenAddr uint32) (Output, error) {
	ptr, err := mem.ReadU32(ptrAddr)
	if err != nil {
		return Output{}, errors.OutOfBounds(errors.PhaseDecode, []string{"out", "ptr"}, ptrAddr, bridge.PointerSize)
	}
	n, err := mem.ReadU32(lenAddr)
	if err != nil {
		return Output{}, errors.OutOfBounds(errors.PhaseDecode, []string{"out", "len"}, lenAddr, bridge.PointerSize)
	}
	return Output{Ptr: ptr, Len: n}, nil
}

// collect copies out into Go memory and releases it. The release runs even
// when the copy fails.
func collect(ctx context.Context, g Guest, out Output) ([]byte, error) {
	data, copyErr := copyOutput(g.Memory(), out)
	releaseErr := out.release(ctx, g)

	if copyErr != nil {
		if releaseErr != nil {
			Logger().Warn("output release failed",
				zap.Uint32("ptr", out.Ptr),
				zap.Uint32("len", out.Len),
				zap.Error(releaseErr))
		}
		return nil, copyErr
	}
	if releaseErr != nil {
		return nil, releaseErr
	}

	Logger().Debug("render done", zap.Int("png_bytes", len(data)))
	return data, nil
}

func copyOutput(mem svgpng.Memory, out Output) ([]byte, error) {
	if out.Len == 0 {
		return []byte{}, nil
	}
	if out.Ptr == 0 {
		return nil, errors.New(errors.PhaseDecode, errors.KindOutOfBounds).
			Path("out").
			Detail("renderer reported %d bytes at null", out.Len).
			Build()
	}
	view, err := mem.Read(out.Ptr, out.Len)
	if err != nil {
		return nil, errors.OutOfBounds(errors.PhaseDecode, []string{"out"}, out.Ptr, out.Len)
	}
	return bytes.Clone(view), nil
}
