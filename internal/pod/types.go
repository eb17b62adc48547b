// Package pod implements the self-describing, 8-byte-aligned typed
// value format (POD) used to encode property bags and format
// descriptors inside control command payloads.
package pod

import "encoding/binary"

// Type discriminates the kind of value a POD prefix describes.
type Type uint32

const (
	TypeInvalid Type = iota
	TypeBool
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
	TypeBytes
	TypeRectangle
	TypeFraction
	TypeArray
	TypeStruct
	TypeObject
	TypeProp
)

func (t Type) String() string {
	switch t {
	case TypeInvalid:
		return "invalid"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeLong:
		return "long"
	case TypeFloat:
		return "float"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeRectangle:
		return "rectangle"
	case TypeFraction:
		return "fraction"
	case TypeArray:
		return "array"
	case TypeStruct:
		return "struct"
	case TypeObject:
		return "object"
	case TypeProp:
		return "prop"
	default:
		return "unknown"
	}
}

// PropFlags qualify a Prop's allowed-value range semantics.
type PropFlags uint32

const (
	PropRangeNone PropFlags = iota
	PropRangeMin
	PropRangeMinMax
	PropRangeEnum
)

// prefixSize is the on-wire {size, type} header every value carries,
// host-native u32 pairs (8 bytes total).
const prefixSize = 8

// Rectangle is a width/height pair (video frame dimensions).
type Rectangle struct {
	Width, Height uint32
}

// Fraction is a numerator/denominator pair (e.g. a frame rate).
type Fraction struct {
	Num, Denom uint32
}

// align8 rounds n up to the next multiple of 8.
func align8(n int) int {
	return (n + 7) &^ 7
}

var nativeEndian = binary.NativeEndian

func putU32(b []byte, v uint32) { nativeEndian.PutUint32(b, v) }
func getU32(b []byte) uint32    { return nativeEndian.Uint32(b) }
func putU64(b []byte, v uint64) { nativeEndian.PutUint64(b, v) }
func getU64(b []byte) uint64    { return nativeEndian.Uint64(b) }
