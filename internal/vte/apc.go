package vte

import (
	"bytes"
	"image"
	"image/png"

	"golang.org/x/image/draw"

	"scarabd/internal/term"
	"scarabd/internal/vte/kitty"
)

// nrgbaFromPng normalizes a decoded PNG (which may be paletted, gray,
// etc.) into a flat NRGBA pixel buffer ready for blob storage.
func nrgbaFromPng(img image.Image) []byte {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst.Pix
}

// dispatchAPC handles one complete APC string captured in p.body. The
// only APC payload this daemon understands is the Kitty graphics
// protocol, introduced with a leading 'G' (§4.1.2).
func (p *Parser) dispatchAPC() {
	if len(p.body) == 0 || p.body[0] != 'G' {
		return
	}
	cmd, err := kitty.Parse(p.body)
	if err != nil {
		return
	}

	switch cmd.Action {
	case kitty.ActionDelete:
		p.ts.RemoveImagePlacement(cmd.ImageID)
		return
	}

	raw, err := cmd.DecodePayload()
	if err != nil {
		return
	}

	key := cmd.ImageID
	if cmd.More {
		p.kittyChunks[key] = append(p.kittyChunks[key], raw...)
		return
	}
	if buffered, ok := p.kittyChunks[key]; ok {
		raw = append(buffered, raw...)
		delete(p.kittyChunks, key)
	}
	if len(raw) == 0 {
		return
	}

	switch cmd.Format {
	case kitty.FormatPNG:
		img, err := png.Decode(bytes.NewReader(raw))
		if err != nil {
			return
		}
		b := img.Bounds()
		nrgba := nrgbaFromPng(img)
		p.publishImage(nrgba, b.Dx(), b.Dy(), term.ImagePNG)
	default:
		img, err := cmd.ToImage(raw)
		if err != nil {
			return
		}
		p.publishImage(img.Pix, cmd.SrcW, cmd.SrcH, term.ImageRGBA)
	}
}
