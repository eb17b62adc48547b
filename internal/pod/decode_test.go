package pod

import "testing"

// TestFormatDescriptorRoundTrip builds an OBJECT shaped like a video
// format descriptor (media type/subtype ints, a size rectangle, a
// framerate fraction with enum alternatives) and checks every field
// survives a build/decode round trip, 8-byte aligned throughout.
func TestFormatDescriptorRoundTrip(t *testing.T) {
	const (
		objectFormat     = 1
		propMediaType    = 1
		propMediaSubtype = 2
		propSize         = 3
		propFramerate    = 4
	)

	b := NewBuilder()
	b.PushObject(1, objectFormat)
	b.PushProp(propMediaType, PropRangeNone)
	b.Int(1) // video
	mustPop(t, b)
	b.PushProp(propMediaSubtype, PropRangeNone)
	b.Int(3) // raw
	mustPop(t, b)
	b.PushProp(propSize, PropRangeNone)
	b.Rectangle(Rectangle{Width: 1920, Height: 1080})
	mustPop(t, b)
	b.PushProp(propFramerate, PropRangeEnum)
	b.Fraction(Fraction{Num: 30, Denom: 1})
	b.Fraction(Fraction{Num: 60, Denom: 1})
	b.Fraction(Fraction{Num: 24, Denom: 1})
	mustPop(t, b)
	mustPop(t, b)

	data := b.Bytes()
	if len(data)%8 != 0 {
		t.Fatalf("final length %d not 8-aligned", len(data))
	}

	v, n, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if n != len(data) {
		t.Fatalf("consumed %d of %d", n, len(data))
	}
	objType, err := v.ObjectType()
	if err != nil || objType != objectFormat {
		t.Fatalf("ObjectType = %d, %v", objType, err)
	}
	props, err := v.Props()
	if err != nil {
		t.Fatalf("Props: %v", err)
	}
	if len(props) != 4 {
		t.Fatalf("len(props) = %d, want 4", len(props))
	}

	mediaType, err := props[0].Main.Int()
	if err != nil || mediaType != 1 {
		t.Fatalf("mediaType = %d, %v", mediaType, err)
	}
	mediaSubtype, err := props[1].Main.Int()
	if err != nil || mediaSubtype != 3 {
		t.Fatalf("mediaSubtype = %d, %v", mediaSubtype, err)
	}
	size, err := props[2].Main.RectangleValue()
	if err != nil || size != (Rectangle{1920, 1080}) {
		t.Fatalf("size = %v, %v", size, err)
	}
	rate, err := props[3].Main.FractionValue()
	if err != nil || rate != (Fraction{30, 1}) {
		t.Fatalf("framerate main = %v, %v", rate, err)
	}
	if len(props[3].Alternatives) != 2 {
		t.Fatalf("len(alternatives) = %d, want 2", len(props[3].Alternatives))
	}
	alt0, err := props[3].Alternatives[0].FractionValue()
	if err != nil || alt0 != (Fraction{60, 1}) {
		t.Fatalf("alt0 = %v, %v", alt0, err)
	}
	alt1, err := props[3].Alternatives[1].FractionValue()
	if err != nil || alt1 != (Fraction{24, 1}) {
		t.Fatalf("alt1 = %v, %v", alt1, err)
	}
}

func TestDecodeTruncatedHeader(t *testing.T) {
	_, _, err := Decode([]byte{1, 2, 3})
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestDecodeTruncatedBody(t *testing.T) {
	hdr := make([]byte, 8)
	putU32(hdr[0:4], 100) // claims 100 bytes of body
	putU32(hdr[4:8], uint32(TypeBytes))
	_, _, err := Decode(hdr)
	if err != ErrTruncated {
		t.Fatalf("err = %v, want ErrTruncated", err)
	}
}

func TestArrayMisalignedElementCount(t *testing.T) {
	b := NewBuilder()
	b.PushArray(TypeInt, 4)
	b.Int(1)
	mustPop(t, b)
	data := b.Bytes()
	// Corrupt the descriptor's child size to one that doesn't evenly
	// divide the body.
	putU32(data[8:12], 3)
	v, _, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, err := v.Elements(); err != ErrMisaligned {
		t.Fatalf("err = %v, want ErrMisaligned", err)
	}
}
