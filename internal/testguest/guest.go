package testguest

import (
	"bytes"
	"context"

	svgpng "github.com/wippyai/svgpng"
	"github.com/wippyai/svgpng/bridge"
	"github.com/wippyai/svgpng/errors"
)

// PNGSignature is the fixed eight-byte PNG file header.
var PNGSignature = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	memorySize = 4 << 20
	heapBase   = 1024
	heapLimit  = 2 << 20
	engineBase = 2 << 20
)

// Received is what the guest saw on one render call, decoded from its own
// memory.
type Received struct {
	Strings  map[string]string
	Document string
	Fonts    [][]byte
	Record   bridge.Record
}

// Release is one call to the output release entry point.
type Release struct {
	Ptr uint32
	Len uint32
}

// Guest is a scriptable stand-in for the renderer. Request-side buffers come
// from Heap; output buffers come from a separate region, so mixing the two
// release paths shows up as BadFrees or BadReleases.
type Guest struct {
	Mem  *Memory
	Heap *Heap

	// Status is returned from every render call. Output is written on status 0.
	Status int32
	Output []byte
	// Trap makes the render call fail as if the guest trapped.
	Trap error
	// ReleaseErr is returned from FreeOutput.
	ReleaseErr error

	Received    []Received
	Releases    []Release
	RenderCalls int
	BadReleases int

	outputs    map[uint32]uint32
	engineNext uint32
}

func New() *Guest {
	mem := NewMemory(memorySize)
	return &Guest{
		Mem:        mem,
		Heap:       NewHeap(mem, heapBase, heapLimit),
		Output:     append([]byte(nil), PNGSignature...),
		outputs:    make(map[uint32]uint32),
		engineNext: engineBase,
	}
}

func (g *Guest) Memory() svgpng.Memory {
	return g.Mem
}

func (g *Guest) Allocator() svgpng.Allocator {
	return g.Heap
}

func (g *Guest) Render(_ context.Context, doc, record, outPtr, outLen uint32) (int32, error) {
	g.RenderCalls++

	rc, err := g.echo(doc, record)
	if err != nil {
		return 0, err
	}
	g.Received = append(g.Received, rc)

	if g.Trap != nil {
		return 0, g.Trap
	}
	if g.Status != errors.StatusOK {
		return g.Status, nil
	}

	ptr := g.engineNext
	size := uint32(len(g.Output))
	if err := g.Mem.Write(ptr, g.Output); err != nil {
		return errors.StatusOutOfMemory, nil
	}
	g.engineNext += size + 8
	g.outputs[ptr] = size

	if err := g.Mem.WriteU32(outPtr, ptr); err != nil {
		return 0, err
	}
	if err := g.Mem.WriteU32(outLen, size); err != nil {
		return 0, err
	}
	return errors.StatusOK, nil
}

func (g *Guest) FreeOutput(_ context.Context, ptr, length uint32) error {
	g.Releases = append(g.Releases, Release{Ptr: ptr, Len: length})
	got, ok := g.outputs[ptr]
	if !ok || got != length {
		g.BadReleases++
	} else {
		delete(g.outputs, ptr)
	}
	return g.ReleaseErr
}

// LiveOutputs is the number of output buffers not yet released.
func (g *Guest) LiveOutputs() int {
	return len(g.outputs)
}

func (g *Guest) echo(doc, record uint32) (Received, error) {
	var rc Received
	var err error

	if rc.Document, err = g.Mem.CString(doc); err != nil {
		return rc, err
	}
	if rc.Record, err = bridge.DecodeRecord(g.Mem, record); err != nil {
		return rc, err
	}

	rc.Strings = make(map[string]string)
	for name, ptr := range map[string]uint32{
		bridge.FieldBackground:   rc.Record.Background,
		bridge.FieldExportID:     rc.Record.ExportID,
		bridge.FieldResourcesDir: rc.Record.ResourcesDir,
		bridge.FieldFontFile:     rc.Record.FontFile,
		bridge.FieldFontDir:      rc.Record.FontDir,
	} {
		if ptr == 0 {
			continue
		}
		if rc.Strings[name], err = g.Mem.CString(ptr); err != nil {
			return rc, err
		}
	}

	for i := uint32(0); i < rc.Record.FontCount; i++ {
		p, err := g.Mem.ReadU32(rc.Record.Fonts + i*bridge.PointerSize)
		if err != nil {
			return rc, err
		}
		n, err := g.Mem.ReadU32(rc.Record.FontLens + i*bridge.PointerSize)
		if err != nil {
			return rc, err
		}
		data, err := g.Mem.Read(p, n)
		if err != nil {
			return rc, err
		}
		rc.Fonts = append(rc.Fonts, bytes.Clone(data))
	}
	return rc, nil
}

// Last returns the most recent Received value.
func (g *Guest) Last() Received {
	if len(g.Received) == 0 {
		return Received{}
	}
	return g.Received[len(g.Received)-1]
}
