package pod

import "math"

// Value is a decoded POD value: a type tag plus the raw body bytes the
// builder produced for it (header and trailing padding stripped).
type Value struct {
	Type Type
	body []byte
}

// Prop is a decoded PROP child: a key, range-qualifying flags, a main
// value, and zero or more alternative values of the same type (used
// for enum/min-max ranges).
type Prop struct {
	Key          uint32
	Flags        PropFlags
	Main         Value
	Alternatives []Value
}

// Decode parses a single header-prefixed value starting at data[0],
// returning the Value and the number of bytes consumed (including the
// header and any trailing 8-byte padding).
func Decode(data []byte) (Value, int, error) {
	return decodeOne(data)
}

func decodeOne(data []byte) (Value, int, error) {
	if len(data) < prefixSize {
		return Value{}, 0, ErrTruncated
	}
	size := getU32(data[0:4])
	typ := Type(getU32(data[4:8]))
	total := prefixSize + int(size)
	if total > len(data) {
		return Value{}, 0, ErrTruncated
	}
	body := data[prefixSize:total]
	consumed := align8(total)
	if consumed > len(data) {
		consumed = total
	}
	return Value{Type: typ, body: body}, consumed, nil
}

// decodeTight reads a value of a known type and size with no header,
// used for array elements and prop alternatives.
func decodeTight(typ Type, data []byte, size int) (Value, error) {
	if size > len(data) {
		return Value{}, ErrTruncated
	}
	return Value{Type: typ, body: data[:size]}, nil
}

func (v Value) checkType(want Type) error {
	if v.Type != want {
		return ErrTypeMismatch
	}
	return nil
}

// Bool returns the value's boolean payload.
func (v Value) Bool() (bool, error) {
	if err := v.checkType(TypeBool); err != nil {
		return false, err
	}
	if len(v.body) < 4 {
		return false, ErrTruncated
	}
	return getU32(v.body[:4]) != 0, nil
}

// Int returns the value's signed 32-bit payload.
func (v Value) Int() (int32, error) {
	if err := v.checkType(TypeInt); err != nil {
		return 0, err
	}
	if len(v.body) < 4 {
		return 0, ErrTruncated
	}
	return int32(getU32(v.body[:4])), nil
}

// Long returns the value's signed 64-bit payload.
func (v Value) Long() (int64, error) {
	if err := v.checkType(TypeLong); err != nil {
		return 0, err
	}
	if len(v.body) < 8 {
		return 0, ErrTruncated
	}
	return int64(getU64(v.body[:8])), nil
}

// Float returns the value's 32-bit float payload.
func (v Value) Float() (float32, error) {
	if err := v.checkType(TypeFloat); err != nil {
		return 0, err
	}
	if len(v.body) < 4 {
		return 0, ErrTruncated
	}
	return math.Float32frombits(getU32(v.body[:4])), nil
}

// Double returns the value's 64-bit float payload.
func (v Value) Double() (float64, error) {
	if err := v.checkType(TypeDouble); err != nil {
		return 0, err
	}
	if len(v.body) < 8 {
		return 0, ErrTruncated
	}
	return math.Float64frombits(getU64(v.body[:8])), nil
}

// Str returns the value's zero-terminated string payload, trimmed of
// its trailing NUL and any alignment padding.
func (v Value) Str() (string, error) {
	if err := v.checkType(TypeString); err != nil {
		return "", err
	}
	i := 0
	for i < len(v.body) && v.body[i] != 0 {
		i++
	}
	return string(v.body[:i]), nil
}

// Raw returns the value's opaque byte payload.
func (v Value) Raw() ([]byte, error) {
	if err := v.checkType(TypeBytes); err != nil {
		return nil, err
	}
	return v.body, nil
}

// RectangleValue returns the value's width/height payload.
func (v Value) RectangleValue() (Rectangle, error) {
	if err := v.checkType(TypeRectangle); err != nil {
		return Rectangle{}, err
	}
	if len(v.body) < 8 {
		return Rectangle{}, ErrTruncated
	}
	return Rectangle{Width: getU32(v.body[0:4]), Height: getU32(v.body[4:8])}, nil
}

// FractionValue returns the value's numerator/denominator payload.
func (v Value) FractionValue() (Fraction, error) {
	if err := v.checkType(TypeFraction); err != nil {
		return Fraction{}, err
	}
	if len(v.body) < 8 {
		return Fraction{}, ErrTruncated
	}
	return Fraction{Num: getU32(v.body[0:4]), Denom: getU32(v.body[4:8])}, nil
}

// Elements decodes an ARRAY value's tightly packed children.
func (v Value) Elements() ([]Value, error) {
	if err := v.checkType(TypeArray); err != nil {
		return nil, err
	}
	if len(v.body) < prefixSize {
		return nil, ErrTruncated
	}
	childSize := int(getU32(v.body[0:4]))
	childType := Type(getU32(v.body[4:8]))
	rest := v.body[prefixSize:]
	if childSize == 0 {
		if len(rest) != 0 {
			return nil, ErrMisaligned
		}
		return nil, nil
	}
	if len(rest)%childSize != 0 {
		return nil, ErrMisaligned
	}
	n := len(rest) / childSize
	out := make([]Value, 0, n)
	for i := 0; i < n; i++ {
		chunk := rest[i*childSize : (i+1)*childSize]
		elem, err := decodeTight(childType, chunk, childSize)
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}

// Fields decodes a STRUCT value's header-prefixed, individually padded
// children in order.
func (v Value) Fields() ([]Value, error) {
	if err := v.checkType(TypeStruct); err != nil {
		return nil, err
	}
	return decodeSequence(v.body)
}

// ObjectID and ObjectType report an OBJECT value's descriptor, and
// Props decodes its header-prefixed PROP children.
func (v Value) ObjectID() (uint32, error) {
	if err := v.checkType(TypeObject); err != nil {
		return 0, err
	}
	if len(v.body) < prefixSize {
		return 0, ErrTruncated
	}
	return getU32(v.body[0:4]), nil
}

func (v Value) ObjectType() (uint32, error) {
	if err := v.checkType(TypeObject); err != nil {
		return 0, err
	}
	if len(v.body) < prefixSize {
		return 0, ErrTruncated
	}
	return getU32(v.body[4:8]), nil
}

func (v Value) Props() ([]Prop, error) {
	if err := v.checkType(TypeObject); err != nil {
		return nil, err
	}
	if len(v.body) < prefixSize {
		return nil, ErrTruncated
	}
	vals, err := decodeSequence(v.body[prefixSize:])
	if err != nil {
		return nil, err
	}
	out := make([]Prop, 0, len(vals))
	for _, child := range vals {
		p, err := child.asProp()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// decodeSequence decodes a run of header-prefixed, individually padded
// values (STRUCT and OBJECT child layout) until the slice is exhausted.
func decodeSequence(data []byte) ([]Value, error) {
	var out []Value
	for len(data) > 0 {
		v, n, err := decodeOne(data)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		data = data[n:]
	}
	return out, nil
}

// asProp interprets a Value already known to be of TypeProp.
func (v Value) asProp() (Prop, error) {
	if err := v.checkType(TypeProp); err != nil {
		return Prop{}, err
	}
	if len(v.body) < prefixSize {
		return Prop{}, ErrTruncated
	}
	key := getU32(v.body[0:4])
	flags := PropFlags(getU32(v.body[4:8]))
	rest := v.body[prefixSize:]
	main, n, err := decodeOne(rest)
	if err != nil {
		return Prop{}, err
	}
	// Prop elements carry no inter-element padding: the alternatives
	// start right after the exact header+body span, not at the
	// 8-byte-rounded n that decodeOne reports.
	exact := prefixSize + len(main.body)
	afterMain := rest[exact:]
	_ = n
	var alts []Value
	if mainSize := len(main.body); mainSize > 0 && len(afterMain) > 0 {
		if len(afterMain)%mainSize != 0 {
			return Prop{}, ErrMisaligned
		}
		count := len(afterMain) / mainSize
		alts = make([]Value, 0, count)
		for i := 0; i < count; i++ {
			chunk := afterMain[i*mainSize : (i+1)*mainSize]
			elem, err := decodeTight(main.Type, chunk, mainSize)
			if err != nil {
				return Prop{}, err
			}
			alts = append(alts, elem)
		}
	}
	return Prop{Key: key, Flags: flags, Main: main, Alternatives: alts}, nil
}
