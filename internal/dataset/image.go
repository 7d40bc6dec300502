package dataset

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff"}

// ToImage converts one [channels, height, width] sample with values in [0, 1]
// to an image. One channel gives a grayscale image, three an RGB one.
func ToImage(sample []float32, shape tensor.Shape) (*image.NRGBA, error) {
	if len(shape) != 3 || (shape[0] != 1 && shape[0] != 3) {
		return nil, errors.Errorf("image sample shape must be [1|3, H, W], got %v", shape)
	}
	ch, h, w := shape[0], shape[1], shape[2]
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			var c [3]uint8
			for k := range 3 {
				src := min(k, ch-1)
				c[k] = toByte(sample[(src*h+y)*w+x])
			}
			img.SetNRGBA(x, y, color.NRGBA{R: c[0], G: c[1], B: c[2], A: 255})
		}
	}
	return img, nil
}

// FromImage converts img to a [channels, height, width] sample in [0, 1],
// resizing it to width x height first when the size differs. One channel
// means luminance.
func FromImage(img image.Image, channels, height, width int) ([]float32, error) {
	if channels != 1 && channels != 3 {
		return nil, errors.Errorf("unsupported channel count %d", channels)
	}
	if b := img.Bounds(); b.Dx() != width || b.Dy() != height {
		img = imaging.Resize(img, width, height, imaging.Linear)
	}
	var nrgba *image.NRGBA
	if channels == 1 {
		nrgba = imaging.Grayscale(img)
	} else {
		nrgba = imaging.Clone(img)
	}

	out := make([]float32, channels*height*width)
	for y := range height {
		for x := range width {
			px := nrgba.NRGBAAt(x, y)
			rgb := [3]uint8{px.R, px.G, px.B}
			for c := range channels {
				out[(c*height+y)*width+x] = float32(rgb[c]) / 255
			}
		}
	}
	return out, nil
}

func toByte(v float32) uint8 {
	return uint8(min(max(v*255+0.5, 0), 255))
}

// LoadImageFolder reads a class-per-directory image tree:
//
//	dir/
//	  airplanes/ img001.jpg ...
//	  faces/     img001.jpg ...
//
// Classes are the sorted sub-directory names. Every image is resized to
// shape [channels, height, width].
func LoadImageFolder(dir string, shape tensor.Shape) (*Dataset, []string, error) {
	if len(shape) != 3 {
		return nil, nil, errors.Errorf("image shape must be [C, H, W], got %v", shape)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read image folder %s", dir)
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	slices.Sort(classes)
	if len(classes) == 0 {
		return nil, nil, errors.Wrapf(ErrEmpty, "no class directories in %s", dir)
	}

	var data []float32
	var labels []int
	for label, class := range classes {
		files, err := os.ReadDir(filepath.Join(dir, class))
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to read class %s", class)
		}
		for _, f := range files {
			if f.IsDir() || !slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(f.Name()))) {
				continue
			}
			path := filepath.Join(dir, class, f.Name())
			img, err := imaging.Open(path)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "failed to decode %s", path)
			}
			sample, err := FromImage(img, shape[0], shape[1], shape[2])
			if err != nil {
				return nil, nil, errors.WithMessage(err, path)
			}
			data = append(data, sample...)
			labels = append(labels, label)
		}
	}
	ds, err := New(shape, data, labels, len(classes))
	if err != nil {
		return nil, nil, err
	}
	return ds, classes, nil
}
