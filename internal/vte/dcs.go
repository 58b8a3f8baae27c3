package vte

import (
	"bytes"
	"image/png"

	"scarabd/internal/term"
	"scarabd/internal/vte/sixel"
)

// dispatchDCS handles one complete DCS string captured in p.body. The
// only DCS body this daemon understands is a Sixel image:
// "<P1>;<P2>;<P3> q <sixel data>" (§4.1.1). Anything else is dropped —
// the string has already been consumed to its terminator.
func (p *Parser) dispatchDCS() {
	q := bytes.IndexByte(p.body, 'q')
	if q < 0 {
		return
	}
	// p.body[:q] holds the P1;P2;P3 parameters, which are not used: the
	// decoder is always run with an opaque background.
	data := p.body[q+1:]

	img, err := sixel.Decode(data, false)
	if err != nil || img.Width == 0 || img.Height == 0 {
		return
	}
	p.publishImage(img.ToNRGBA().Pix, img.Width, img.Height, term.ImageRGBA)
}

// publishImage PNG-encodes an RGBA raster, hands it to the attached blob
// store, and registers an ImagePlacement sized in cells using the nominal
// cell pixel metrics.
func (p *Parser) publishImage(rgba []byte, width, height int, srcFormat term.ImageFormat) {
	var buf bytes.Buffer
	// NRGBA -> image.Image for png.Encode requires the concrete type;
	// callers already hand us a Pix slice shaped for NRGBA, so wrap it
	// back into one here rather than threading *image.NRGBA through.
	nrgba := nrgbaFromPix(rgba, width, height)
	if err := png.Encode(&buf, nrgba); err != nil {
		return
	}

	offset, size, err := p.blobs.Store(buf.Bytes(), width, height)
	if err != nil {
		return
	}

	cols := (width + term.NominalCellPixelWidth - 1) / term.NominalCellPixelWidth
	rows := (height + term.NominalCellPixelHeight - 1) / term.NominalCellPixelHeight
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	x, y := p.ts.Cursor()
	p.ts.AddImagePlacement(term.ImagePlacement{
		X: x, Y: y,
		Width: cols, Height: rows,
		BlobOffset: offset, BlobSize: size,
		Format: term.ImagePNG,
	})
}
