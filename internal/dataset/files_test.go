package dataset_test

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitishmital/head-network-distillation/internal/dataset"
	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

func writeIDX(t *testing.T, path string, header []uint32, payload []byte) {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, header))
	buf.Write(payload)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestLoadMNIST(t *testing.T) {
	dir := t.TempDir()
	pixels := make([]byte, 3*2*2)
	for i := range pixels {
		pixels[i] = byte(i * 20)
	}
	writeIDX(t, filepath.Join(dir, "t10k-images-idx3-ubyte"), []uint32{2051, 3, 2, 2}, pixels)
	writeIDX(t, filepath.Join(dir, "t10k-labels-idx1-ubyte"), []uint32{2049, 3}, []byte{7, 0, 3})

	ds, err := dataset.LoadMNIST(dir, false, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, tensor.Shape{1, 2, 2}, ds.Shape())
	assert.Equal(t, 10, ds.Classes())
	assert.Equal(t, 7, ds.Label(0))
	assert.InDelta(t, 20.0/255, ds.Sample(0)[1], 1e-6)

	limited, err := dataset.LoadMNIST(dir, false, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, limited.Len())

	_, err = dataset.LoadMNIST(dir, true, 0)
	assert.Error(t, err, "no train files")
}

func TestReadIDX_BadMagic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, []uint32{2049, 0, 0, 0}))
	_, _, _, err := dataset.ReadIDXImages(&buf)
	assert.ErrorContains(t, err, "invalid magic number")

	buf.Reset()
	require.NoError(t, binary.Write(&buf, binary.BigEndian, []uint32{2051, 0}))
	_, err = dataset.ReadIDXLabels(&buf)
	assert.ErrorContains(t, err, "invalid magic number")
}

func solid(w, h int, c color.Color) image.Image {
	return imaging.New(w, h, c)
}

func TestLoadImageFolder(t *testing.T) {
	dir := t.TempDir()
	for class, c := range map[string]color.Color{
		"dark":  color.NRGBA{R: 10, G: 10, B: 10, A: 255},
		"light": color.NRGBA{R: 240, G: 240, B: 240, A: 255},
	} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, class), 0o750))
		for _, name := range []string{"a.png", "b.png"} {
			require.NoError(t, imaging.Save(solid(16, 12, c), filepath.Join(dir, class, name)))
		}
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dark", "notes.txt"), []byte("skip"), 0o600))

	ds, classes, err := dataset.LoadImageFolder(dir, tensor.Shape{1, 8, 8})
	require.NoError(t, err)
	assert.Equal(t, []string{"dark", "light"}, classes)
	require.Equal(t, 4, ds.Len())
	assert.Equal(t, tensor.Shape{1, 8, 8}, ds.Shape())
	assert.Equal(t, 0, ds.Label(0))
	assert.Equal(t, 1, ds.Label(3))
	assert.InDelta(t, 10.0/255, ds.Sample(0)[0], 2.0/255)
	assert.InDelta(t, 240.0/255, ds.Sample(3)[10], 2.0/255)

	_, _, err = dataset.LoadImageFolder(t.TempDir(), tensor.Shape{1, 8, 8})
	assert.ErrorIs(t, err, dataset.ErrEmpty)
}

func TestImageRoundTrip(t *testing.T) {
	shape := tensor.Shape{3, 2, 2}
	sample := []float32{
		0, 1, 0.5, 0.25, // R
		1, 0, 0.5, 0.25, // G
		0, 0, 1, 1, // B
	}
	img, err := dataset.ToImage(sample, shape)
	require.NoError(t, err)

	back, err := dataset.FromImage(img, 3, 2, 2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, sample, back, 1.0/255)

	_, err = dataset.ToImage(sample, tensor.Shape{2, 2, 3})
	assert.Error(t, err)
}

func TestParseCompressor(t *testing.T) {
	tests := []struct {
		kind, size string
		want       string
		wantErr    bool
	}{
		{"", "", "none", false},
		{"jpeg", "50", "jpeg(q=50)", false},
		{"jpeg", "0", "", true},
		{"jpeg", "abc", "", true},
		{"resize", "0.5", "resize(x0.5)", false},
		{"resize", "1.5", "", true},
		{"png", "1", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind+"/"+tt.size, func(t *testing.T) {
			c, err := dataset.ParseCompressor(tt.kind, tt.size)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.String())
		})
	}
}

func TestCompressor_Apply(t *testing.T) {
	shape := tensor.Shape{1, 8, 8}
	data := make([]float32, 2*64)
	for i := range 64 {
		data[i] = 0.5
		data[64+i] = float32(i%8) / 7
	}
	ds, err := dataset.New(shape, data, []int{0, 1}, 2)
	require.NoError(t, err)

	for _, kind := range [][2]string{{"jpeg", "90"}, {"resize", "0.5"}} {
		t.Run(kind[0], func(t *testing.T) {
			c, err := dataset.ParseCompressor(kind[0], kind[1])
			require.NoError(t, err)
			out, err := c.Apply(ds)
			require.NoError(t, err)

			assert.Equal(t, ds.Len(), out.Len())
			assert.Equal(t, shape, out.Shape())
			assert.Equal(t, 1, out.Label(1))
			// A flat image survives lossy compression almost unchanged.
			for _, v := range out.Sample(0) {
				assert.InDelta(t, 0.5, v, 0.03)
			}
		})
	}

	var none *dataset.Compressor
	same, err := none.Apply(ds)
	require.NoError(t, err)
	assert.Same(t, ds, same)
}
