package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"

	xdraw "golang.org/x/image/draw"
)

// DataURLPrefix starts every snapshot and patch on the wire.
const DataURLPrefix = "data:image/png;base64,"

var ErrInvalidDataURL = errors.New("invalid data url")

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL decodes a PNG data URL.
func DecodeDataURL(s string) (image.Image, error) {
	if !strings.HasPrefix(s, DataURLPrefix) {
		return nil, ErrInvalidDataURL
	}
	raw, err := base64.StdEncoding.DecodeString(s[len(DataURLPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return img, nil
}

// Snapshot encodes a full layer. A fully transparent layer is the empty string.
func Snapshot(l *image.NRGBA) (string, error) {
	if IsBlank(l) {
		return "", nil
	}
	return EncodeDataURL(l)
}

// Load replaces the contents of dst with the snapshot s, scaling it when the
// snapshot was taken at a different resolution. An empty s clears dst.
func Load(dst *image.NRGBA, s string) error {
	if s == "" {
		Clear(dst)
		return nil
	}
	img, err := DecodeDataURL(s)
	if err != nil {
		return err
	}
	Clear(dst)
	if img.Bounds().Size() == dst.Bounds().Size() {
		xdraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, xdraw.Src)
		return nil
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return nil
}

// Merge composites overlay onto base at the given size and returns the new
// snapshot. Empty strings stand for blank layers.
func Merge(base, overlay string, size int) (string, error) {
	if overlay == "" {
		return base, nil
	}
	out := NewLayer(size)
	if err := Load(out, base); err != nil {
		return "", fmt.Errorf("load base: %w", err)
	}
	top := NewLayer(size)
	if err := Load(top, overlay); err != nil {
		return "", fmt.Errorf("load overlay: %w", err)
	}
	Over(out, top)
	return Snapshot(out)
}
