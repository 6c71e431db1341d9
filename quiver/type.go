package quiver

import (
	"log/slog"
	"reflect"
	"unsafe"

	"github.com/rhughes91/arrow/internal/assert"
)

// TypeId identifies a registered payload type. Component types and system
// types draw from separate counters; within a counter, ids are assigned in
// first-use order, monotonically increasing, and stable for the lifetime of
// the process.
type TypeId uint32

type typeMeta struct {
	Name string
	Type reflect.Type

	// Size is the in-memory size of the type. Only meaningful for trivial
	// types; records of custom-regime types are sized by their codec.
	Size uintptr

	// Trivial marks types whose values contain no pointers and can therefore
	// be copied byte for byte into a pool. Everything else goes through the
	// serialization protocol and is stored length-prefixed.
	Trivial bool

	codec *codec
}

// ComponentType describes a payload type registered as a component.
type ComponentType struct {
	Id TypeId
	typeMeta
}

// SystemType describes a payload type registered as a system's static
// instance.
type SystemType struct {
	Id TypeId
	typeMeta
}

var (
	componentTypes []*ComponentType
	componentsByRT = map[reflect.Type]*ComponentType{}

	systemTypes []*SystemType
	systemsByRT = map[reflect.Type]*SystemType{}
)

// ComponentTypeOf returns the ComponentType for T, registering it on first
// use. Registration is not safe for concurrent use; the engine assumes a
// single logical thread of control.
func ComponentTypeOf[T any]() *ComponentType {
	rt := reflect.TypeFor[T]()
	if ty, ok := componentsByRT[rt]; ok {
		return ty
	}

	assert.IsNonPointerType(rt)

	ty := &ComponentType{
		Id:       TypeId(len(componentTypes)),
		typeMeta: metaOf(rt),
	}

	componentsByRT[rt] = ty
	componentTypes = append(componentTypes, ty)

	slog.Debug(
		"New component type registered",
		slog.String("name", ty.Name),
		slog.Int("id", int(ty.Id)),
	)

	return ty
}

// SystemTypeOf returns the SystemType for S, registering it on first use.
func SystemTypeOf[S any]() *SystemType {
	rt := reflect.TypeFor[S]()
	if ty, ok := systemsByRT[rt]; ok {
		return ty
	}

	assert.IsNonPointerType(rt)

	ty := &SystemType{
		Id:       TypeId(len(systemTypes)),
		typeMeta: metaOf(rt),
	}

	systemsByRT[rt] = ty
	systemTypes = append(systemTypes, ty)

	slog.Debug(
		"New system type registered",
		slog.String("name", ty.Name),
		slog.Int("id", int(ty.Id)),
	)

	return ty
}

func metaOf(rt reflect.Type) typeMeta {
	meta := typeMeta{
		Name:    rt.String(),
		Type:    rt,
		Size:    rt.Size(),
		Trivial: !typeHasPointers(rt),
	}

	if !meta.Trivial {
		meta.codec = codecForType(rt)
	}

	return meta
}

// ComponentCount returns the number of component types registered so far.
func ComponentCount() int {
	return len(componentTypes)
}

// ComponentTypeAt returns the component type registered under the given id.
func ComponentTypeAt(id TypeId) *ComponentType {
	return componentTypes[id]
}

// SystemCount returns the number of system types registered so far.
func SystemCount() int {
	return len(systemTypes)
}

// EncodedSize returns the number of bytes Encode will produce for value.
// Zero-size types still occupy one byte so every record keeps a distinct
// offset and a valid address.
func (m *typeMeta) EncodedSize(value any) int {
	if m.Trivial {
		return max(int(m.Size), 1)
	}

	return lengthPrefixSize + m.codec.length(value)
}

// Encode appends the record for value to buf and returns the extended buffer.
// Custom-regime records carry their length prefix so they stay relocatable.
func (m *typeMeta) Encode(buf []byte, value any) []byte {
	offset := len(buf)
	buf = append(buf, make([]byte, m.EncodedSize(value))...)

	if m.Trivial {
		rawCopyIn(buf[offset:offset+int(m.Size)], value)
		return buf
	}

	n := m.codec.length(value)
	putLengthPrefix(buf[offset:], n)
	m.codec.serialize(value, buf, offset+lengthPrefixSize)

	return buf
}

// Decode materializes the record at offset as a value of the described type.
func (m *typeMeta) Decode(buf []byte, offset int) any {
	if m.Trivial {
		return rawCopyOut(m.Type, buf[offset:offset+int(m.Size)])
	}

	return m.codec.deserialize(buf, offset+lengthPrefixSize)
}

// typeHasPointers reports whether a value of the type holds pointers, e.g.
// by having a field of type *T, a string, a slice or a map value. Such types
// cannot live in a byte pool verbatim: the bytes would hide the pointers from
// the garbage collector.
func typeHasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128:
		return false

	case reflect.Array:
		return typeHasPointers(t.Elem())

	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if typeHasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false

	default:
		return true
	}
}

type eface struct {
	typ, val unsafe.Pointer
}

// dataPtrOf returns a pointer to the bytes of the value boxed in v. Only
// valid for pointer-free types, which the runtime always boxes indirectly.
func dataPtrOf(v any) unsafe.Pointer {
	return (*eface)(unsafe.Pointer(&v)).val
}

func rawCopyIn(dst []byte, value any) {
	src := unsafe.Slice((*byte)(dataPtrOf(value)), len(dst))
	copy(dst, src)
}

func rawCopyOut(rt reflect.Type, src []byte) any {
	rv := reflect.New(rt)
	dst := unsafe.Slice((*byte)(rv.UnsafePointer()), len(src))
	copy(dst, src)
	return rv.Elem().Interface()
}
