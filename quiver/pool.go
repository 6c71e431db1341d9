package quiver

import (
	"reflect"
	"unsafe"
)

// Pool is the growable byte arena backing one component type. Records of
// trivial types occupy exactly the type's size; records of custom-regime
// types are length-prefixed so the pool can relocate and compact them without
// knowing the payload type. Removing or resizing a record shifts every
// trailing byte, so callers owning offsets past the affected record must
// adjust them by the returned delta.
type Pool struct {
	ty   *ComponentType
	data []byte

	// zero value of the pooled type, handed out by failed lookups
	def reflect.Value
}

func NewPool(ty *ComponentType) *Pool {
	return &Pool{
		ty:  ty,
		def: reflect.New(ty.Type),
	}
}

// Type returns the component type this pool stores.
func (p *Pool) Type() *ComponentType {
	return p.ty
}

// Len returns the arena size in bytes.
func (p *Pool) Len() int {
	return len(p.data)
}

// Insert appends a record for value and returns its byte offset.
func (p *Pool) Insert(value any) int {
	offset := len(p.data)
	p.data = p.ty.Encode(p.data, value)
	return offset
}

// Value materializes the record at offset. Trivial records are copied out;
// use Ptr for an in-place view.
func (p *Pool) Value(offset int) any {
	return p.ty.Decode(p.data, offset)
}

// Ptr returns a pointer to the record at offset. Only meaningful for trivial
// types; the pointer stays valid until the arena next grows or compacts.
func (p *Pool) Ptr(offset int) unsafe.Pointer {
	return unsafe.Pointer(&p.data[offset])
}

// DefaultPtr returns a pointer to a pre-allocated zero value of the pooled
// type. Debug-mode failures resolve to it so callers always receive a usable
// reference.
func (p *Pool) DefaultPtr() unsafe.Pointer {
	return p.def.UnsafePointer()
}

// Size returns the total encoded size of the record at offset, including any
// length prefix.
func (p *Pool) Size(offset int) int {
	if p.ty.Trivial {
		return max(int(p.ty.Size), 1)
	}

	return lengthPrefixSize + lengthPrefix(p.data[offset:])
}

// Update re-serializes value over the record at offset and returns the change
// in the record's encoded size. A non-zero delta means every trailing record
// moved by that many bytes.
func (p *Pool) Update(offset int, value any) int {
	if p.ty.Trivial {
		rawCopyIn(p.data[offset:offset+int(p.ty.Size)], value)
		return 0
	}

	oldLen := lengthPrefix(p.data[offset:])
	newLen := p.ty.codec.length(value)
	delta := newLen - oldLen

	payload := offset + lengthPrefixSize
	switch {
	case delta > 0:
		end := len(p.data)
		p.data = append(p.data, make([]byte, delta)...)
		copy(p.data[payload+newLen:], p.data[payload+oldLen:end])

	case delta < 0:
		copy(p.data[payload+newLen:], p.data[payload+oldLen:])
		p.data = p.data[:len(p.data)+delta]
	}

	putLengthPrefix(p.data[offset:], newLen)
	p.ty.codec.serialize(value, p.data, payload)

	return delta
}

// Remove deletes the record at offset, compacting the arena, and returns the
// freed byte count.
func (p *Pool) Remove(offset int) int {
	n := p.Size(offset)
	p.data = append(p.data[:offset], p.data[offset+n:]...)
	return n
}
