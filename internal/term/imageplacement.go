package term

// Nominal cell pixel metrics used to convert decoded image pixel
// dimensions into a grid cell footprint. Real glyph metrics are a
// client-side rendering concern and out of scope here; these values only
// need to produce a stable, reasonable cell span for the placement
// metadata carried over IPC.
const (
	NominalCellPixelWidth  = 10
	NominalCellPixelHeight = 20
)

// ImageFormat tags the pixel encoding of an image blob.
type ImageFormat int

const (
	ImagePNG ImageFormat = iota
	ImageJPEG
	ImageGIF
	ImageRGBA
)

// ImagePlacement anchors a decoded image (Sixel or Kitty graphics) to a
// grid position. The pixel data itself lives in the companion image-blob
// shared-memory region (internal/shm); this struct only carries the
// addressing metadata that goes in the ring embedded in SharedStateFrame.
type ImagePlacement struct {
	ID     uint32
	X, Y   int // grid cell position at placement time
	Width  int // width in cells
	Height int // height in cells

	BlobOffset int64
	BlobSize   int64
	Format     ImageFormat

	// AbsoluteLine anchors the placement to scrollback eviction: when the
	// scrollback line at this absolute index is evicted, the placement is
	// removed (spec.md §3, ImagePlacement lifecycle).
	AbsoluteLine int64
}
