package vte

import (
	"encoding/base64"
	"testing"

	"scarabd/internal/term"
)

type recordingBlobStore struct {
	calls int
	sizes []int
}

func (r *recordingBlobStore) Store(rgba []byte, width, height int) (int64, int64, error) {
	r.calls++
	off := int64(r.calls) * 1000
	r.sizes = append(r.sizes, len(rgba))
	return off, int64(len(rgba)), nil
}

func newTestParser(store ImageBlobStore) (*Parser, *term.TerminalState) {
	ts := term.New(80, 24, 100)
	p := New(ts)
	if store != nil {
		p.SetImageBlobStore(store)
	}
	return p, ts
}

func TestDCSSixelPublishesPlacement(t *testing.T) {
	store := &recordingBlobStore{}
	p, ts := newTestParser(store)

	// ESC P 0;0;0 q <sixel body> ESC \
	seq := []byte{cESC, 'P'}
	seq = append(seq, []byte("0;0;0q#0;2;100;0;0~-~")...)
	seq = append(seq, cESC, '\\')
	p.Process(seq)

	if store.calls != 1 {
		t.Fatalf("blob store calls = %d, want 1", store.calls)
	}
	images := ts.Images()
	if len(images) != 1 {
		t.Fatalf("len(Images()) = %d, want 1", len(images))
	}
	if images[0].Format != term.ImagePNG {
		t.Fatalf("Format = %v, want ImagePNG (sixel is PNG-encoded before storage)", images[0].Format)
	}
}

func TestAPCKittyRGBAPublishesPlacement(t *testing.T) {
	store := &recordingBlobStore{}
	p, ts := newTestParser(store)

	raw := []byte{0xFF, 0, 0, 0xFF} // 1x1 opaque red
	b64 := base64.StdEncoding.EncodeToString(raw)

	seq := []byte{cESC, '_'}
	seq = append(seq, []byte("Ga=T,f=32,s=1,v=1;"+b64)...)
	seq = append(seq, cESC, '\\')
	p.Process(seq)

	if store.calls != 1 {
		t.Fatalf("blob store calls = %d, want 1", store.calls)
	}
	if len(ts.Images()) != 1 {
		t.Fatalf("len(Images()) = %d, want 1", len(ts.Images()))
	}
}

func TestAPCKittyChunkedTransferAssemblesBeforePublish(t *testing.T) {
	store := &recordingBlobStore{}
	p, _ := newTestParser(store)

	raw := []byte{0, 255, 0, 255, 0, 0, 255, 255} // 2x1 opaque green+blue
	half := len(raw) / 2
	chunk1 := base64.StdEncoding.EncodeToString(raw[:half])
	chunk2 := base64.StdEncoding.EncodeToString(raw[half:])

	seq := []byte{cESC, '_'}
	seq = append(seq, []byte("Ga=t,i=9,f=32,s=2,v=1,m=1;"+chunk1)...)
	seq = append(seq, cESC, '\\')
	p.Process(seq)

	if store.calls != 0 {
		t.Fatalf("blob store calls = %d after first chunk, want 0 (still pending)", store.calls)
	}

	seq2 := []byte{cESC, '_'}
	seq2 = append(seq2, []byte("Ga=t,i=9,f=32,s=2,v=1,m=0;"+chunk2)...)
	seq2 = append(seq2, cESC, '\\')
	p.Process(seq2)

	if store.calls != 1 {
		t.Fatalf("blob store calls = %d after final chunk, want 1", store.calls)
	}
	if store.sizes[0] == 0 {
		// 2x1 RGBA PNG-encoded size varies; just assert it ran without error
		// and produced a non-empty blob.
		t.Fatal("stored blob is empty, want a non-empty PNG")
	}
}

func TestNoBlobStoreConfiguredDropsImagesSilently(t *testing.T) {
	p, ts := newTestParser(nil)
	seq := []byte{cESC, 'P'}
	seq = append(seq, []byte("0;0;0q#0;2;100;0;0~")...)
	seq = append(seq, cESC, '\\')
	p.Process(seq)
	if len(ts.Images()) != 1 {
		t.Fatalf("len(Images()) = %d, want 1 (nop store still stores offset 0)", len(ts.Images()))
	}
}
