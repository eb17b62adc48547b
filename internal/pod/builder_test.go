package pod

import "testing"

func mustPop(t *testing.T, b *Builder) {
	t.Helper()
	if err := b.Pop(); err != nil {
		t.Fatalf("Pop: %v", err)
	}
}

func TestScalarRoundTrip(t *testing.T) {
	b := NewBuilder()
	b.Bool(true)
	b.Int(-7)
	b.Long(1 << 40)
	b.Float(3.5)
	b.Double(2.25)
	b.String("hello")
	b.Raw([]byte{1, 2, 3})
	b.Rectangle(Rectangle{Width: 640, Height: 480})
	b.Fraction(Fraction{Num: 30, Denom: 1})

	data := b.Bytes()
	off := 0
	checkNext := func(want Type) Value {
		v, n, err := Decode(data[off:])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if v.Type != want {
			t.Fatalf("type = %v, want %v", v.Type, want)
		}
		off += n
		return v
	}

	if v := checkNext(TypeBool); mustBool(t, v) != true {
		t.Fatal("bool mismatch")
	}
	if v := checkNext(TypeInt); mustInt(t, v) != -7 {
		t.Fatal("int mismatch")
	}
	if v := checkNext(TypeLong); mustLong(t, v) != 1<<40 {
		t.Fatal("long mismatch")
	}
	if v := checkNext(TypeFloat); mustFloat(t, v) != 3.5 {
		t.Fatal("float mismatch")
	}
	if v := checkNext(TypeDouble); mustDouble(t, v) != 2.25 {
		t.Fatal("double mismatch")
	}
	if v := checkNext(TypeString); mustStr(t, v) != "hello" {
		t.Fatal("string mismatch")
	}
	v := checkNext(TypeBytes)
	raw, err := v.Raw()
	if err != nil || string(raw) != "\x01\x02\x03" {
		t.Fatalf("bytes mismatch: %v %v", raw, err)
	}
	v = checkNext(TypeRectangle)
	rect, err := v.RectangleValue()
	if err != nil || rect != (Rectangle{640, 480}) {
		t.Fatalf("rectangle mismatch: %v %v", rect, err)
	}
	v = checkNext(TypeFraction)
	frac, err := v.FractionValue()
	if err != nil || frac != (Fraction{30, 1}) {
		t.Fatalf("fraction mismatch: %v %v", frac, err)
	}
	if off != len(data) {
		t.Fatalf("consumed %d of %d bytes", off, len(data))
	}
	if len(data)%8 != 0 {
		t.Fatalf("final length %d not 8-aligned", len(data))
	}
}

func mustBool(t *testing.T, v Value) bool {
	t.Helper()
	b, err := v.Bool()
	if err != nil {
		t.Fatalf("Bool: %v", err)
	}
	return b
}
func mustInt(t *testing.T, v Value) int32 {
	t.Helper()
	n, err := v.Int()
	if err != nil {
		t.Fatalf("Int: %v", err)
	}
	return n
}
func mustLong(t *testing.T, v Value) int64 {
	t.Helper()
	n, err := v.Long()
	if err != nil {
		t.Fatalf("Long: %v", err)
	}
	return n
}
func mustFloat(t *testing.T, v Value) float32 {
	t.Helper()
	n, err := v.Float()
	if err != nil {
		t.Fatalf("Float: %v", err)
	}
	return n
}
func mustDouble(t *testing.T, v Value) float64 {
	t.Helper()
	n, err := v.Double()
	if err != nil {
		t.Fatalf("Double: %v", err)
	}
	return n
}
func mustStr(t *testing.T, v Value) string {
	t.Helper()
	s, err := v.Str()
	if err != nil {
		t.Fatalf("Str: %v", err)
	}
	return s
}

func TestArrayNoPerElementHeader(t *testing.T) {
	b := NewBuilder()
	b.PushArray(TypeInt, 4)
	b.Int(1)
	b.Int(2)
	b.Int(3)
	mustPop(t, b)

	data := b.Bytes()
	// outer prefix(8) + descriptor(8) + 3*4 bytes body, padded to 8.
	wantBody := 8 + 3*4
	if len(data) != align8(8+wantBody) {
		t.Fatalf("len = %d, want %d", len(data), align8(8+wantBody))
	}
	v, n, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("consumed %d, want %d", n, len(data))
	}
	elems, err := v.Elements()
	if err != nil {
		t.Fatalf("Elements: %v", err)
	}
	if len(elems) != 3 {
		t.Fatalf("len(elems) = %d, want 3", len(elems))
	}
	for i, want := range []int32{1, 2, 3} {
		got, err := elems[i].Int()
		if err != nil || got != want {
			t.Fatalf("elems[%d] = %d, %v; want %d", i, got, err, want)
		}
	}
}

func TestStructNestedFields(t *testing.T) {
	b := NewBuilder()
	b.PushStruct()
	b.Int(42)
	b.String("abc")
	b.PushStruct()
	b.Bool(false)
	mustPop(t, b)
	mustPop(t, b)

	data := b.Bytes()
	v, n, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("consumed %d, want %d", n, len(data))
	}
	fields, err := v.Fields()
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(fields) != 3 {
		t.Fatalf("len(fields) = %d, want 3", len(fields))
	}
	if got, err := fields[0].Int(); err != nil || got != 42 {
		t.Fatalf("fields[0] = %d, %v", got, err)
	}
	if got, err := fields[1].Str(); err != nil || got != "abc" {
		t.Fatalf("fields[1] = %q, %v", got, err)
	}
	inner, err := fields[2].Fields()
	if err != nil || len(inner) != 1 {
		t.Fatalf("fields[2].Fields() = %v, %v", inner, err)
	}
	if got, err := inner[0].Bool(); err != nil || got != false {
		t.Fatalf("inner[0] = %v, %v", got, err)
	}
}

func TestObjectWithProps(t *testing.T) {
	b := NewBuilder()
	b.PushObject(1, 100)
	b.PushProp(10, PropRangeNone)
	b.Int(7)
	mustPop(t, b)
	b.PushProp(11, PropRangeEnum)
	b.Int(1)
	b.Int(2)
	b.Int(3)
	mustPop(t, b)
	mustPop(t, b)

	data := b.Bytes()
	v, n, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("consumed %d, want %d", n, len(data))
	}
	id, err := v.ObjectID()
	if err != nil || id != 1 {
		t.Fatalf("ObjectID = %d, %v", id, err)
	}
	objType, err := v.ObjectType()
	if err != nil || objType != 100 {
		t.Fatalf("ObjectType = %d, %v", objType, err)
	}
	props, err := v.Props()
	if err != nil {
		t.Fatalf("Props: %v", err)
	}
	if len(props) != 2 {
		t.Fatalf("len(props) = %d, want 2", len(props))
	}
	if props[0].Key != 10 || props[0].Flags != PropRangeNone {
		t.Fatalf("props[0] = %+v", props[0])
	}
	if got, err := props[0].Main.Int(); err != nil || got != 7 {
		t.Fatalf("props[0].Main = %d, %v", got, err)
	}
	if len(props[0].Alternatives) != 0 {
		t.Fatalf("props[0].Alternatives = %v, want none", props[0].Alternatives)
	}
	if props[1].Key != 11 || props[1].Flags != PropRangeEnum {
		t.Fatalf("props[1] = %+v", props[1])
	}
	if got, err := props[1].Main.Int(); err != nil || got != 1 {
		t.Fatalf("props[1].Main = %d, %v", got, err)
	}
	if len(props[1].Alternatives) != 2 {
		t.Fatalf("props[1].Alternatives = %v, want 2", props[1].Alternatives)
	}
	if got, err := props[1].Alternatives[0].Int(); err != nil || got != 2 {
		t.Fatalf("props[1].Alternatives[0] = %d, %v", got, err)
	}
	if got, err := props[1].Alternatives[1].Int(); err != nil || got != 3 {
		t.Fatalf("props[1].Alternatives[1] = %d, %v", got, err)
	}
}

func TestPopWithoutPushReturnsError(t *testing.T) {
	b := NewBuilder()
	if err := b.Pop(); err != ErrNoActiveFrame {
		t.Fatalf("err = %v, want ErrNoActiveFrame", err)
	}
}

func TestTypeMismatchOnWrongAccessor(t *testing.T) {
	b := NewBuilder()
	b.Int(5)
	v, _, err := Decode(b.Bytes())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := v.Str(); err != ErrTypeMismatch {
		t.Fatalf("err = %v, want ErrTypeMismatch", err)
	}
}
