package render

import (
	"bytes"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg/draw"

	"hstin/polarmap/internal/grid"
)

func testFigure(t *testing.T) *Figure {
	t.Helper()
	g, err := grid.New(testLats, testLons)
	require.NoError(t, err)
	lonMesh, latMesh := g.Mesh()
	return &Figure{
		Title:   "bias",
		Day:     7,
		Label:   "Sea Ice Concentration (frac)",
		Scale:   testScale(t),
		Image:   NewRaster(g, 32).Paint(constField(5.5), testScale(t)),
		LonMesh: lonMesh,
		LatMesh: latMesh,
	}
}

func TestEncode_Formats(t *testing.T) {
	fig := testFigure(t)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, EncodeOptions{Format: "png", DPI: 20}, fig.Draw))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.InDelta(t, 170, img.Bounds().Dx(), 1)
	assert.InDelta(t, 160, img.Bounds().Dy(), 1)

	buf.Reset()
	require.NoError(t, Encode(&buf, EncodeOptions{Format: "webp", DPI: 20, Quality: 80}, fig.Draw))
	_, err = webp.Decode(&buf)
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, Encode(&buf, EncodeOptions{Format: "svg", DPI: 20}, fig.Draw))
	assert.True(t, strings.Contains(buf.String(), "<svg"))
	assert.Contains(t, buf.String(), "bias Day 7")
}

func TestEncode_UnknownFormat(t *testing.T) {
	err := Encode(&bytes.Buffer{}, EncodeOptions{Format: "bmp"}, func(draw.Canvas) error { return nil })
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestEncode_InvalidDPI(t *testing.T) {
	for _, dpi := range []float64{0, 0.5, -20, math.NaN(), 1e6} {
		err := Encode(&bytes.Buffer{}, EncodeOptions{Format: "png", DPI: dpi}, func(draw.Canvas) error { return nil })
		assert.ErrorIs(t, err, ErrInvalidDPI, "dpi %g", dpi)
	}
	// vector backends have no pixel grid
	require.NoError(t, Encode(&bytes.Buffer{}, EncodeOptions{Format: "svg", DPI: 0.5}, func(draw.Canvas) error { return nil }))
}

func TestEncode_PaintError(t *testing.T) {
	boom := errors.New("boom")
	err := Encode(&bytes.Buffer{}, EncodeOptions{Format: "png", DPI: 20}, func(draw.Canvas) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day.png")
	fig := testFigure(t)

	n, err := WriteFile(path, EncodeOptions{Format: "png", DPI: 20}, fig.Draw)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, n, info.Size())

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	// a failed encode leaves the previous image in place
	_, err = WriteFile(path, EncodeOptions{Format: "bmp"}, fig.Draw)
	require.Error(t, err)
	info2, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), info2.Size())
}
