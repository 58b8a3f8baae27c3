package kitty

import "testing"

func TestParseKeyValues(t *testing.T) {
	body := []byte("Ga=T,f=32,i=7,s=2,v=1,m=0;AAAA")
	cmd, err := Parse(body)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cmd.Action != ActionTransmitDisplay {
		t.Fatalf("Action = %q, want T", cmd.Action)
	}
	if cmd.Format != FormatRGBA {
		t.Fatalf("Format = %d, want 32", cmd.Format)
	}
	if cmd.ImageID != 7 || cmd.SrcW != 2 || cmd.SrcH != 1 {
		t.Fatalf("ImageID/SrcW/SrcH = %d/%d/%d, want 7/2/1", cmd.ImageID, cmd.SrcW, cmd.SrcH)
	}
	if cmd.More {
		t.Fatal("More = true, want false for m=0")
	}
}

func TestParseChunkedTransferMore(t *testing.T) {
	cmd, err := Parse([]byte("Ga=t,i=3,m=1;Zm9v"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !cmd.More {
		t.Fatal("More = false, want true for m=1")
	}
	if cmd.ImageID != 3 {
		t.Fatalf("ImageID = %d, want 3", cmd.ImageID)
	}
	raw, err := cmd.DecodePayload()
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if string(raw) != "foo" {
		t.Fatalf("DecodePayload = %q, want %q", raw, "foo")
	}
}

func TestToImageRGBA(t *testing.T) {
	// 1x1 RGBA pixel: opaque red.
	cmd := Command{Format: FormatRGBA, SrcW: 1, SrcH: 1}
	img, err := cmd.ToImage([]byte{0xFF, 0x00, 0x00, 0xFF})
	if err != nil {
		t.Fatalf("ToImage: %v", err)
	}
	r, g, b, a := img.At(0, 0).RGBA()
	if r>>8 != 0xFF || g != 0 || b != 0 || a>>8 != 0xFF {
		t.Fatalf("pixel = %d,%d,%d,%d want opaque red", r>>8, g>>8, b>>8, a>>8)
	}
}

func TestToImageMissingDimensions(t *testing.T) {
	cmd := Command{Format: FormatRGBA}
	if _, err := cmd.ToImage([]byte{1, 2, 3, 4}); err == nil {
		t.Fatal("expected error for missing s/v dimensions")
	}
}
