package layout

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// BufferWrite describes one upload of a changed byte range into a GPU buffer at the given offset.
type BufferWrite struct {
	Offset uint64
	Data   []byte
}

// Buffer is a CPU side image of a struct or constant buffer. Members are addressed by path, such
// as "world", "material.color" or "lights[2].range".
type Buffer struct {
	layout *Layout
	data   []byte

	// dirtyLo and dirtyHi bound the bytes written since the last Flush. dirtyHi == 0 means clean.
	dirtyLo, dirtyHi uint64
}

// NewBuffer creates a zeroed image of l.
//
// Parameters:
//   - l: the layout of the buffer
//
// Returns:
//   - *Buffer: the image, l.Size bytes long
func NewBuffer(l *Layout) *Buffer {
	return &Buffer{layout: l, data: make([]byte, l.Size)}
}

// Bytes returns the whole image. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Locate returns the byte range a member path covers.
//
// Parameters:
//   - path: the member path
//
// Returns:
//   - uint64: the start offset from the beginning of the buffer
//   - uint64: the size in bytes
//   - error: if a segment names no member, indexes a non-array or is out of range
func (b *Buffer) Locate(path string) (uint64, uint64, error) {
	fields := b.layout.Fields
	var offset, size uint64
	parent := ""
	for i, segment := range strings.Split(path, ".") {
		if i > 0 && fields == nil {
			return 0, 0, fmt.Errorf("layout: %q: %s has no members", path, parent)
		}
		name, index, err := splitIndex(segment)
		if err != nil {
			return 0, 0, fmt.Errorf("layout: %q: %w", path, err)
		}
		f, ok := findField(fields, name)
		if !ok {
			return 0, 0, fmt.Errorf("layout: %q: no member %s", path, name)
		}
		offset += f.Offset
		size = f.Size
		if index >= 0 {
			if f.ArraySize <= 0 {
				return 0, 0, fmt.Errorf("layout: %q: %s is not an array", path, name)
			}
			if index >= f.ArraySize {
				return 0, 0, fmt.Errorf("layout: %q: index %d out of range [0, %d)", path, index, f.ArraySize)
			}
			offset += uint64(index) * f.Stride
			size = f.Size - uint64(f.ArraySize-1)*f.Stride
		}
		fields = f.Fields
		parent = name
	}
	return offset, size, nil
}

// Set copies data into the member at path. Data shorter than the member leaves the rest
// untouched.
//
// Parameters:
//   - path: the member path
//   - data: the raw bytes
//
// Returns:
//   - error: if the path is invalid or data is longer than the member
func (b *Buffer) Set(path string, data []byte) error {
	offset, size, err := b.Locate(path)
	if err != nil {
		return err
	}
	if uint64(len(data)) > size {
		return fmt.Errorf("layout: %q: %d bytes do not fit in %d", path, len(data), size)
	}
	copy(b.data[offset:], data)
	b.mark(offset, offset+uint64(len(data)))
	return nil
}

// SetValues copies numeric values into the member at path in machine byte order.
//
// Parameters:
//   - b: the buffer
//   - path: the member path
//   - values: the values, e.g. the 16 floats of a float4x4
//
// Returns:
//   - error: as for Set
func SetValues[T ~float32 | ~int32 | ~uint32](b *Buffer, path string, values ...T) error {
	data, err := binary.Append(nil, binary.NativeEndian, values)
	if err != nil {
		return fmt.Errorf("layout: %q: %w", path, err)
	}
	return b.Set(path, data)
}

// Flush returns the bytes changed since the previous Flush and marks the buffer clean.
//
// Returns:
//   - BufferWrite: the changed range, sharing memory with the buffer
//   - bool: false if nothing changed
func (b *Buffer) Flush() (BufferWrite, bool) {
	if b.dirtyHi == 0 {
		return BufferWrite{}, false
	}
	w := BufferWrite{Offset: b.dirtyLo, Data: b.data[b.dirtyLo:b.dirtyHi]}
	b.dirtyLo, b.dirtyHi = 0, 0
	return w, true
}

func (b *Buffer) mark(lo, hi uint64) {
	if hi <= lo {
		return
	}
	if b.dirtyHi == 0 || lo < b.dirtyLo {
		b.dirtyLo = lo
	}
	b.dirtyHi = max(b.dirtyHi, hi)
}

func findField(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// splitIndex splits "name[3]" into name and 3. The index is -1 when absent.
func splitIndex(segment string) (string, int, error) {
	open := strings.IndexByte(segment, '[')
	if open < 0 {
		return segment, -1, nil
	}
	if !strings.HasSuffix(segment, "]") {
		return "", 0, fmt.Errorf("malformed index in %q", segment)
	}
	index, err := strconv.Atoi(segment[open+1 : len(segment)-1])
	if err != nil || index < 0 {
		return "", 0, fmt.Errorf("malformed index in %q", segment)
	}
	return segment[:open], index, nil
}
