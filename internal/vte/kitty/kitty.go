// Package kitty parses the Kitty terminal graphics protocol's APC
// payload: "G<key>=<value>,<key>=<value>,...;<base64 payload>", per
// spec.md §4.1.2.
package kitty

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"
)

// Action mirrors the Kitty "a" key.
type Action byte

const (
	ActionTransmit        Action = 't'
	ActionTransmitDisplay Action = 'T'
	ActionPut             Action = 'p'
	ActionDelete          Action = 'd'
)

// Format mirrors the Kitty "f" key: pixel encoding of the payload.
type Format int

const (
	FormatRGB  Format = 24
	FormatRGBA Format = 32
	FormatPNG  Format = 100
)

// Command is one parsed APC control-data block, before payload assembly.
type Command struct {
	Action Action
	Format Format
	ImageID      uint32
	PlacementID  uint32
	More         bool // "m=1": more chunks follow
	SrcW, SrcH   int  // "s","v": source pixel dimensions
	Cols, Rows   int  // "c","r": display cell dimensions
	X, Y         int  // "x","y": source pixel offset
	GridX, GridY int  // "X","Y": grid cell position
	Z            int  // "z": stacking order

	payloadB64 []byte
}

// Parse splits an APC body "G<kv-list>;<base64>" into a Command and its
// (still base64-encoded) payload chunk. Unknown keys are ignored, matching
// the lenient-by-default posture required of the whole parser.
func Parse(body []byte) (Command, error) {
	semi := indexByte(body, ';')
	kv := body
	var payload []byte
	if semi >= 0 {
		kv = body[:semi]
		payload = body[semi+1:]
	}
	if len(kv) > 0 && kv[0] == 'G' {
		kv = kv[1:]
	}

	cmd := Command{Action: ActionTransmit, Format: FormatRGBA, payloadB64: payload}
	for _, pair := range strings.Split(string(kv), ",") {
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		applyKey(&cmd, k, v)
	}
	return cmd, nil
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func applyKey(cmd *Command, k, v string) {
	atoi := func() int {
		n, _ := strconv.Atoi(v)
		return n
	}
	switch k {
	case "a":
		if len(v) == 1 {
			cmd.Action = Action(v[0])
		}
	case "f":
		cmd.Format = Format(atoi())
	case "t":
		// transmission medium: "d" (direct) is mandatory and is the only
		// one this daemon supports; others are accepted but produce no
		// payload bytes, matching §4.1.2's "MAY be stubbed".
		if v != "d" {
			cmd.payloadB64 = nil
		}
	case "m":
		cmd.More = v == "1"
	case "i":
		cmd.ImageID = uint32(atoi())
	case "p":
		cmd.PlacementID = uint32(atoi())
	case "s":
		cmd.SrcW = atoi()
	case "v":
		cmd.SrcH = atoi()
	case "c":
		cmd.Cols = atoi()
	case "r":
		cmd.Rows = atoi()
	case "x":
		cmd.X = atoi()
	case "y":
		cmd.Y = atoi()
	case "X":
		cmd.GridX = atoi()
	case "Y":
		cmd.GridY = atoi()
	case "z":
		cmd.Z = atoi()
	}
}

// DecodePayload base64-decodes this command's chunk.
func (c Command) DecodePayload() ([]byte, error) {
	if len(c.payloadB64) == 0 {
		return nil, nil
	}
	out := make([]byte, base64.StdEncoding.DecodedLen(len(c.payloadB64)))
	n, err := base64.StdEncoding.Decode(out, c.payloadB64)
	if err != nil {
		return nil, fmt.Errorf("decode kitty base64 payload: %w", err)
	}
	return out[:n], nil
}

// ToImage interprets raw pixel bytes as RGB/RGBA per cmd.Format and
// returns a standard library image ready for PNG encoding. PNG-format
// payloads are returned decoded by the caller instead (image/png), since
// they're already a complete image container.
func (c Command) ToImage(raw []byte) (*image.NRGBA, error) {
	if c.SrcW <= 0 || c.SrcH <= 0 {
		return nil, fmt.Errorf("kitty image missing source dimensions (s/v keys)")
	}
	img := image.NewNRGBA(image.Rect(0, 0, c.SrcW, c.SrcH))
	switch c.Format {
	case FormatRGBA:
		need := c.SrcW * c.SrcH * 4
		if len(raw) < need {
			return nil, fmt.Errorf("kitty RGBA payload too short: got %d want %d", len(raw), need)
		}
		copy(img.Pix, raw[:need])
	case FormatRGB:
		need := c.SrcW * c.SrcH * 3
		if len(raw) < need {
			return nil, fmt.Errorf("kitty RGB payload too short: got %d want %d", len(raw), need)
		}
		for i := 0; i < c.SrcW*c.SrcH; i++ {
			r, g, b := raw[i*3], raw[i*3+1], raw[i*3+2]
			col := color.NRGBA{R: r, G: g, B: b, A: 255}
			img.SetNRGBA(i%c.SrcW, i/c.SrcW, col)
		}
	default:
		return nil, fmt.Errorf("unsupported raw kitty format %d", c.Format)
	}
	return img, nil
}
