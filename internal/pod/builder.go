package pod

import "math"

// Builder assembles a POD region into a growable byte slice. It
// mirrors the original spa_pod_builder's frame stack: Push reserves a
// {size, type} prefix (and, for ARRAY/OBJECT/PROP, a fixed descriptor) and
// remembers the reservation on a parent chain; every write after a
// Push bumps the size field of every open ancestor; Pop patches the
// remembered prefix with the final accumulated size and re-aligns the
// cursor to 8 bytes.
type Builder struct {
	buf    []byte
	stack  *frame
	closed bool
}

type frame struct {
	parent   *frame
	prefixAt int
	typ      Type
	bodySize uint32
	tight    bool // ARRAY or PROP: children may omit their own header
	first    bool // true until the first child of this frame is written
}

// NewBuilder returns a Builder writing into a fresh internal buffer.
func NewBuilder() *Builder { return &Builder{} }

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return len(b.buf) }

// Bytes returns the accumulated region. Valid only once all frames
// have been popped (Depth() == 0); returns a copy-free view into the
// builder's internal buffer.
func (b *Builder) Bytes() []byte { return b.buf }

// Depth reports how many frames are currently open.
func (b *Builder) Depth() int {
	n := 0
	for f := b.stack; f != nil; f = f.parent {
		n++
	}
	return n
}

func (b *Builder) inTightMode() (*frame, bool) {
	if b.stack != nil && b.stack.tight {
		return b.stack, true
	}
	return b.stack, false
}

// advance bumps the cursor-adjacent bookkeeping: every ancestor frame's
// bodySize grows by n, matching spa_pod_builder_advance.
func (b *Builder) advance(n int) {
	for f := b.stack; f != nil; f = f.parent {
		f.bodySize += uint32(n)
	}
}

func (b *Builder) writeValue(typ Type, body []byte) uint32 {
	ref := uint32(len(b.buf))
	top, tight := b.inTightMode()
	suppressHeader := tight && !(top.typ == TypeProp && top.first)
	if suppressHeader {
		b.buf = append(b.buf, body...)
		b.advance(len(body))
	} else {
		start := len(b.buf)
		hdr := make([]byte, prefixSize)
		putU32(hdr[0:4], uint32(len(body)))
		putU32(hdr[4:8], uint32(typ))
		b.buf = append(b.buf, hdr...)
		b.buf = append(b.buf, body...)
		if top == nil || !top.tight {
			for len(b.buf)%8 != 0 {
				b.buf = append(b.buf, 0)
			}
		}
		b.advance(len(b.buf) - start)
	}
	if top != nil {
		top.first = false
	}
	return ref
}

// Bool writes a boolean scalar.
func (b *Builder) Bool(v bool) uint32 {
	body := make([]byte, 4)
	if v {
		putU32(body, 1)
	}
	return b.writeValue(TypeBool, body)
}

// Int writes a signed 32-bit scalar.
func (b *Builder) Int(v int32) uint32 {
	body := make([]byte, 4)
	putU32(body, uint32(v))
	return b.writeValue(TypeInt, body)
}

// Long writes a signed 64-bit scalar.
func (b *Builder) Long(v int64) uint32 {
	body := make([]byte, 8)
	putU64(body, uint64(v))
	return b.writeValue(TypeLong, body)
}

// Float writes a 32-bit float scalar (widened to a 4-byte body).
func (b *Builder) Float(v float32) uint32 {
	body := make([]byte, 4)
	putU32(body, float32bits(v))
	return b.writeValue(TypeFloat, body)
}

// Double writes a 64-bit float scalar.
func (b *Builder) Double(v float64) uint32 {
	body := make([]byte, 8)
	putU64(body, float64bits(v))
	return b.writeValue(TypeDouble, body)
}

// String writes a zero-terminated, 8-byte-padded string body.
func (b *Builder) String(s string) uint32 {
	body := make([]byte, len(s)+1)
	copy(body, s)
	return b.writeValue(TypeString, body)
}

// Raw writes an opaque, 8-byte-padded byte body (TypeBytes).
func (b *Builder) Raw(v []byte) uint32 {
	body := append([]byte(nil), v...)
	return b.writeValue(TypeBytes, body)
}

// Rectangle writes a width/height pair.
func (b *Builder) Rectangle(r Rectangle) uint32 {
	body := make([]byte, 8)
	putU32(body[0:4], r.Width)
	putU32(body[4:8], r.Height)
	return b.writeValue(TypeRectangle, body)
}

// Fraction writes a numerator/denominator pair.
func (b *Builder) Fraction(f Fraction) uint32 {
	body := make([]byte, 8)
	putU32(body[0:4], f.Num)
	putU32(body[4:8], f.Denom)
	return b.writeValue(TypeFraction, body)
}

// PushArray opens an ARRAY frame. Every element added before the
// matching Pop must be of childType and childSize bytes; elements are
// packed tightly with no per-element header. Returns the offset of the
// reserved outer prefix (for diagnostics); callers do not need it.
func (b *Builder) PushArray(childType Type, childSize uint32) uint32 {
	prefixAt := len(b.buf)
	hdr := make([]byte, prefixSize+prefixSize)
	putU32(hdr[0:4], prefixSize) // body size so far: the descriptor itself
	putU32(hdr[4:8], uint32(TypeArray))
	putU32(hdr[8:12], childSize)
	putU32(hdr[12:16], uint32(childType))
	b.buf = append(b.buf, hdr...)
	f := &frame{parent: b.stack, prefixAt: prefixAt, typ: TypeArray, bodySize: prefixSize, tight: true, first: true}
	b.stack = f
	b.advanceParents(f, prefixSize+prefixSize)
	return uint32(prefixAt)
}

// advanceParents bumps every frame above f (not f itself, already
// initialized) by n, used right after a Push writes its own fixed
// descriptor bytes.
func (b *Builder) advanceParents(f *frame, n int) {
	for p := f.parent; p != nil; p = p.parent {
		p.bodySize += uint32(n)
	}
}

// PushStruct opens a STRUCT frame; children are written with their own
// headers, one after another, no special packing.
func (b *Builder) PushStruct() uint32 {
	prefixAt := len(b.buf)
	hdr := make([]byte, prefixSize)
	putU32(hdr[4:8], uint32(TypeStruct))
	b.buf = append(b.buf, hdr...)
	f := &frame{parent: b.stack, prefixAt: prefixAt, typ: TypeStruct}
	b.stack = f
	b.advanceParents(f, prefixSize)
	return uint32(prefixAt)
}

// PushObject opens an OBJECT frame with a fixed {id, objectType}
// descriptor; its children (typically Prop frames) carry their own
// headers.
func (b *Builder) PushObject(id, objectType uint32) uint32 {
	prefixAt := len(b.buf)
	hdr := make([]byte, prefixSize+prefixSize)
	putU32(hdr[0:4], prefixSize)
	putU32(hdr[4:8], uint32(TypeObject))
	putU32(hdr[8:12], id)
	putU32(hdr[12:16], objectType)
	b.buf = append(b.buf, hdr...)
	f := &frame{parent: b.stack, prefixAt: prefixAt, typ: TypeObject, bodySize: prefixSize}
	b.stack = f
	b.advanceParents(f, prefixSize+prefixSize)
	return uint32(prefixAt)
}

// PushProp opens a PROP frame: {key, flags} descriptor followed by a
// main value (written with a header so its type is recoverable) and
// zero or more alternative values of the same type (packed tightly,
// without headers).
func (b *Builder) PushProp(key uint32, flags PropFlags) uint32 {
	prefixAt := len(b.buf)
	hdr := make([]byte, prefixSize+prefixSize)
	putU32(hdr[0:4], prefixSize)
	putU32(hdr[4:8], uint32(TypeProp))
	putU32(hdr[8:12], key)
	putU32(hdr[12:16], uint32(flags))
	b.buf = append(b.buf, hdr...)
	f := &frame{parent: b.stack, prefixAt: prefixAt, typ: TypeProp, bodySize: prefixSize, tight: true, first: true}
	b.stack = f
	b.advanceParents(f, prefixSize+prefixSize)
	return uint32(prefixAt)
}

// Pop closes the innermost open frame, patching its reserved prefix
// with the accumulated body size and padding the cursor to 8 bytes.
func (b *Builder) Pop() error {
	f := b.stack
	if f == nil {
		return ErrNoActiveFrame
	}
	putU32(b.buf[f.prefixAt:f.prefixAt+4], f.bodySize)
	b.stack = f.parent
	before := len(b.buf)
	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
	if pad := len(b.buf) - before; pad > 0 {
		b.advance(pad)
	}
	return nil
}

func float32bits(f float32) uint32 { return math.Float32bits(f) }

func float64bits(f float64) uint64 { return math.Float64bits(f) }
