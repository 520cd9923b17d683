package testguest

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// Memory is a flat byte slice standing in for linear memory.
type Memory struct {
	data []byte
}

func NewMemory(size uint32) *Memory {
	return &Memory{data: make([]byte, size)}
}

func (m *Memory) check(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("out of bounds: offset=%d length=%d size=%d", offset, length, len(m.data))
	}
	return nil
}

// Read returns a view of memory, like wazero does.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

func (m *Memory) WriteU8(offset uint32, value uint8) error {
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.data[offset] = value
	return nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if err := m.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	return nil
}

func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// CString reads a NUL-terminated string starting at ptr.
func (m *Memory) CString(ptr uint32) (string, error) {
	if err := m.check(ptr, 0); err != nil {
		return "", err
	}
	for i := ptr; i < uint32(len(m.data)); i++ {
		if m.data[i] == 0 {
			return string(m.data[ptr:i]), nil
		}
	}
	return "", fmt.Errorf("unterminated string at %d", ptr)
}

// Heap is a bump allocator over a region of Memory that remembers every live
// allocation, so tests can check that each one is freed exactly once.
type Heap struct {
	live     map[uint32]uint32
	mem      *Memory
	next     uint32
	limit    uint32
	Allocs   int
	Frees    int
	BadFrees int
	// FailAt makes the n-th Alloc call (1-based) fail. Zero disables it.
	FailAt int
	calls  int
}

func NewHeap(mem *Memory, base, limit uint32) *Heap {
	return &Heap{
		live:  make(map[uint32]uint32),
		mem:   mem,
		next:  base,
		limit: limit,
	}
}

func (h *Heap) Alloc(size, align uint32) (uint32, error) {
	h.calls++
	if h.FailAt > 0 && h.calls == h.FailAt {
		return 0, fmt.Errorf("scripted allocation failure #%d", h.calls)
	}
	if align == 0 {
		align = 1
	}
	ptr := (h.next + align - 1) &^ (align - 1)
	n := size
	if n == 0 {
		n = 1
	}
	if uint64(ptr)+uint64(n) > uint64(h.limit) {
		return 0, fmt.Errorf("heap exhausted: %d bytes", size)
	}
	h.next = ptr + n
	h.live[ptr] = size
	h.Allocs++
	return ptr, nil
}

func (h *Heap) Free(ptr, size, _ uint32) {
	got, ok := h.live[ptr]
	if !ok || got != size {
		h.BadFrees++
		return
	}
	delete(h.live, ptr)
	h.Frees++
}

// Live returns the pointers that are still allocated, sorted.
func (h *Heap) Live() []uint32 {
	out := make([]uint32, 0, len(h.live))
	for p := range h.live {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
