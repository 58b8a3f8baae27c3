package cell

import "testing"

func TestRGBRoundTrip(t *testing.T) {
	c := RGB(0, 128, 255)
	r, g, b, a := c.RGBA()
	if r != 0 || g != 128 || b != 255 || a != 0xFF {
		t.Fatalf("RGBA() = %d,%d,%d,%d", r, g, b, a)
	}
	if uint32(c) != 0xFF0080FF {
		t.Fatalf("packed color = %#x, want 0xFF0080FF", uint32(c))
	}
}

func TestAttrHas(t *testing.T) {
	a := AttrBold | AttrUnderline
	if !a.Has(AttrBold) {
		t.Fatal("expected AttrBold set")
	}
	if a.Has(AttrItalic) {
		t.Fatal("did not expect AttrItalic set")
	}
	if !a.Has(AttrBold | AttrUnderline) {
		t.Fatal("expected both bits set")
	}
}

func TestBlankIsBlank(t *testing.T) {
	if !Blank.IsBlank() {
		t.Fatal("Blank should report IsBlank() == true")
	}
	c := Blank
	c.Attrs = AttrBold
	if c.IsBlank() {
		t.Fatal("cell with bold attr should not be blank")
	}
}
