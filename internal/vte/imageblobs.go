package vte

import "image"

// nrgbaFromPix wraps a raw RGBA/NRGBA row-major pixel slice as a standard
// library image without copying, for PNG encoding.
func nrgbaFromPix(pix []byte, width, height int) *image.NRGBA {
	return &image.NRGBA{
		Pix:    pix,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
}

// ImageBlobStore persists a decoded RGBA pixel buffer out-of-band (the
// shared-memory image-blob region, internal/shm) and returns its
// addressing within that region. A Parser with no store configured drops
// decoded images after parsing, which is useful for tests that only
// care about terminal-state side effects.
type ImageBlobStore interface {
	Store(rgba []byte, width, height int) (offset, size int64, err error)
}

// nopBlobStore discards every image; used when a Parser is constructed
// without an explicit store.
type nopBlobStore struct{}

func (nopBlobStore) Store(rgba []byte, width, height int) (int64, int64, error) {
	return 0, 0, nil
}
