package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chai2010/webp"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgeps"
	"gonum.org/v1/plot/vg/vgimg"
	"gonum.org/v1/plot/vg/vgpdf"
	"gonum.org/v1/plot/vg/vgsvg"

	"hstin/polarmap/internal/config"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidDPI        = errors.New("invalid raster resolution")
)

// EncodeOptions are the per-run encoder settings.
type EncodeOptions struct {
	Format  string
	DPI     float64
	Quality int
}

// Encode draws a figure with the backend for opts.Format and writes the
// encoded bytes to w.
func Encode(w io.Writer, opts EncodeOptions, paint func(draw.Canvas) error) error {
	width := vg.Length(config.FigureWidth) * vg.Inch
	height := vg.Length(config.FigureHeight) * vg.Inch

	var wt io.WriterTo
	switch opts.Format {
	case "png", "jpg", "jpeg", "tif", "tiff", "webp":
		if !(opts.DPI >= 1 && opts.DPI <= config.MaxDPI) {
			return fmt.Errorf("%w: %g dpi", ErrInvalidDPI, opts.DPI)
		}
		c := vgimg.NewWith(vgimg.UseWH(width, height), vgimg.UseDPI(int(opts.DPI)))
		if err := paint(draw.New(c)); err != nil {
			return err
		}
		switch opts.Format {
		case "png":
			wt = vgimg.PngCanvas{Canvas: c}
		case "jpg", "jpeg":
			wt = vgimg.JpegCanvas{Canvas: c}
		case "tif", "tiff":
			wt = vgimg.TiffCanvas{Canvas: c}
		case "webp":
			return webp.Encode(w, c.Image(), &webp.Options{Lossless: false, Quality: float32(opts.Quality)})
		}
	case "svg":
		c := vgsvg.New(width, height)
		if err := paint(draw.New(c)); err != nil {
			return err
		}
		wt = c
	case "pdf":
		c := vgpdf.New(width, height)
		if err := paint(draw.New(c)); err != nil {
			return err
		}
		wt = c
	case "eps":
		c := vgeps.New(width, height)
		if err := paint(draw.New(c)); err != nil {
			return err
		}
		wt = c
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, opts.Format)
	}

	_, err := wt.WriteTo(w)
	return err
}

// WriteFile encodes a figure into path, replacing any existing file through
// a rename. It returns the number of bytes written.
func WriteFile(path string, opts EncodeOptions, paint func(draw.Canvas) error) (int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, opts, paint); err != nil {
		return 0, err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace %s: %w", path, err)
	}
	return int64(buf.Len()), nil
}
