package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/chai2010/webp"
	"golang.org/x/image/tiff"

	"hstin/polarmap/internal/db"
)

var ErrNoFrames = errors.New("no frames recorded for run")

// Animate stitches the recorded raster frames of a run into a looping GIF,
// one frame per day in day order. delay is in hundredths of a second.
func Animate(ctx context.Context, cat *db.Catalog, run, format, out string, delay int) error {
	frames, err := cat.Frames(ctx, run, format)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("%w: %s (%s)", ErrNoFrames, run, format)
	}

	anim := &gif.GIF{}
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := decodeFrame(f.Path, f.Format)
		if err != nil {
			return fmt.Errorf("day %d: %w", f.Day, err)
		}
		anim.Image = append(anim.Image, toPaletted(img))
		anim.Delay = append(anim.Delay, delay)
	}

	tmp := out + ".tmp"
	w, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(w, anim); err != nil {
		w.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := w.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, out)
}

func decodeFrame(path, format string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch format {
	case "webp":
		return webp.Decode(f)
	case "tif", "tiff":
		return tiff.Decode(f)
	case "png", "jpg", "jpeg":
		img, _, err := image.Decode(f)
		return img, err
	}
	return nil, fmt.Errorf("%w: cannot animate %q frames", ErrUnsupportedFormat, format)
}

func toPaletted(img image.Image) *image.Paletted {
	b := img.Bounds()
	p := image.NewPaletted(b, palette.WebSafe)
	draw.FloydSteinberg.Draw(p, b, img, b.Min)
	return p
}
