package quiver

import (
	"encoding/binary"
	"log/slog"
	"reflect"
	"unsafe"
)

// lengthPrefixSize is the width of the byte-count header written in front of
// every custom-regime record and of every counted sequence.
const lengthPrefixSize = 4

func putLengthPrefix(buf []byte, n int) {
	binary.LittleEndian.PutUint32(buf, uint32(n))
}

func lengthPrefix(buf []byte) int {
	return int(binary.LittleEndian.Uint32(buf))
}

// Codec is the serialization protocol customization point for a payload type
// that is not trivially copyable. Length reports the number of bytes
// Serialize will write for a value, Serialize writes the value into buf at
// offset and returns the bytes written, and Deserialize materializes a value
// from buf at offset. The buffer handed to Serialize is always pre-sized to
// Length(value) bytes past offset.
type Codec[T any] struct {
	Length      func(value T) int
	Serialize   func(value T, buf []byte, offset int) int
	Deserialize func(buf []byte, offset int) T
}

// RegisterCodec installs the serialization protocol for T. Call it before T
// is first used as a component or system payload; registration resolves the
// codec once, at first use. Types whose values carry pointers and have no
// registered codec fall back to a zero-value codec that logs a diagnostic on
// every use.
func RegisterCodec[T any](c Codec[T]) {
	rt := reflect.TypeFor[T]()
	codecs[rt] = &codec{
		length: func(v any) int {
			return c.Length(v.(T))
		},
		serialize: func(v any, buf []byte, offset int) int {
			return c.Serialize(v.(T), buf, offset)
		},
		deserialize: func(buf []byte, offset int) any {
			return c.Deserialize(buf, offset)
		},
	}
}

// codec is the type-erased form every registered or derived Codec is stored
// in.
type codec struct {
	length      func(v any) int
	serialize   func(v any, buf []byte, offset int) int
	deserialize func(buf []byte, offset int) any
}

var codecs = map[reflect.Type]*codec{}

// codecForType resolves the codec for rt, deriving built-in codecs for
// strings and slices on first use. Derivation recurses element by element, so
// nested sequences come for free.
func codecForType(rt reflect.Type) *codec {
	if c, ok := codecs[rt]; ok {
		return c
	}

	var c *codec
	switch {
	case rt.Kind() == reflect.String:
		c = stringCodec(rt)

	case rt.Kind() == reflect.Slice:
		c = sliceCodec(rt)

	case !typeHasPointers(rt):
		c = rawCodec(rt)

	default:
		c = zeroCodec(rt)
	}

	codecs[rt] = c
	return c
}

func stringCodec(rt reflect.Type) *codec {
	plain := rt == reflect.TypeFor[string]()

	return &codec{
		length: func(v any) int {
			return lengthPrefixSize + len(reflect.ValueOf(v).String())
		},
		serialize: func(v any, buf []byte, offset int) int {
			s := reflect.ValueOf(v).String()
			putLengthPrefix(buf[offset:], len(s))
			copy(buf[offset+lengthPrefixSize:], s)
			return lengthPrefixSize + len(s)
		},
		deserialize: func(buf []byte, offset int) any {
			n := lengthPrefix(buf[offset:])
			s := string(buf[offset+lengthPrefixSize : offset+lengthPrefixSize+n])
			if plain {
				return s
			}
			return reflect.ValueOf(s).Convert(rt).Interface()
		},
	}
}

func sliceCodec(rt reflect.Type) *codec {
	elem := rt.Elem()
	elemSize := int(elem.Size())

	if !typeHasPointers(elem) {
		// pointer-free elements are stored back to back, no per-element
		// headers
		return &codec{
			length: func(v any) int {
				return lengthPrefixSize + reflect.ValueOf(v).Len()*elemSize
			},
			serialize: func(v any, buf []byte, offset int) int {
				rv := reflect.ValueOf(v)
				n := rv.Len()
				putLengthPrefix(buf[offset:], n)
				if n > 0 {
					src := unsafe.Slice((*byte)(rv.UnsafePointer()), n*elemSize)
					copy(buf[offset+lengthPrefixSize:], src)
				}
				return lengthPrefixSize + n*elemSize
			},
			deserialize: func(buf []byte, offset int) any {
				n := lengthPrefix(buf[offset:])
				out := reflect.MakeSlice(rt, n, n)
				if n > 0 {
					dst := unsafe.Slice((*byte)(out.UnsafePointer()), n*elemSize)
					copy(dst, buf[offset+lengthPrefixSize:])
				}
				return out.Interface()
			},
		}
	}

	ec := codecForType(elem)

	return &codec{
		length: func(v any) int {
			rv := reflect.ValueOf(v)
			total := lengthPrefixSize
			for i := 0; i < rv.Len(); i++ {
				total += lengthPrefixSize + ec.length(rv.Index(i).Interface())
			}
			return total
		},
		serialize: func(v any, buf []byte, offset int) int {
			rv := reflect.ValueOf(v)
			putLengthPrefix(buf[offset:], rv.Len())

			cursor := offset + lengthPrefixSize
			for i := 0; i < rv.Len(); i++ {
				value := rv.Index(i).Interface()
				n := ec.length(value)
				putLengthPrefix(buf[cursor:], n)
				ec.serialize(value, buf, cursor+lengthPrefixSize)
				cursor += lengthPrefixSize + n
			}
			return cursor - offset
		},
		deserialize: func(buf []byte, offset int) any {
			count := lengthPrefix(buf[offset:])
			out := reflect.MakeSlice(rt, count, count)

			cursor := offset + lengthPrefixSize
			for i := 0; i < count; i++ {
				n := lengthPrefix(buf[cursor:])
				out.Index(i).Set(reflect.ValueOf(ec.deserialize(buf, cursor+lengthPrefixSize)))
				cursor += lengthPrefixSize + n
			}
			return out.Interface()
		},
	}
}

// rawCodec covers pointer-free types that end up in a custom-regime context,
// e.g. as the payload of a registered codec that delegates back to the
// protocol.
func rawCodec(rt reflect.Type) *codec {
	size := int(rt.Size())

	return &codec{
		length: func(v any) int {
			return size
		},
		serialize: func(v any, buf []byte, offset int) int {
			rawCopyIn(buf[offset:offset+size], v)
			return size
		},
		deserialize: func(buf []byte, offset int) any {
			return rawCopyOut(rt, buf[offset:offset+size])
		},
	}
}

// zeroCodec is the fallback for types with no trivial-copy guarantee and no
// registered codec. It reports the misconfiguration and yields empty records
// and zero values instead of aborting.
func zeroCodec(rt reflect.Type) *codec {
	complain := func() {
		slog.Error(
			"Type has no registered serialization codec",
			slog.String("type", rt.String()),
		)
	}

	return &codec{
		length: func(v any) int {
			complain()
			return 0
		},
		serialize: func(v any, buf []byte, offset int) int {
			complain()
			return 0
		},
		deserialize: func(buf []byte, offset int) any {
			complain()
			return reflect.Zero(rt).Interface()
		},
	}
}
