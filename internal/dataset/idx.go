package dataset

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// IDX magic numbers.
const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
)

// ReadIDXImages reads an IDX image file.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes
//	number of cols: 4 bytes
//	pixel data: unsigned bytes (0-255)
func ReadIDXImages(r io.Reader) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, errors.Wrap(err, "failed to read IDX image header")
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, errors.Errorf("invalid magic number: got %d, want %d", header[0], idxImagesMagic)
	}

	rows, cols = int(header[2]), int(header[3])
	images = make([][]byte, header[1])
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, errors.Wrapf(err, "failed to read image %d", i)
		}
	}
	return images, rows, cols, nil
}

// ReadIDXLabels reads an IDX label file.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes
func ReadIDXLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, errors.Wrap(err, "failed to read IDX label header")
	}
	if header[0] != idxLabelsMagic {
		return nil, errors.Errorf("invalid magic number: got %d, want %d", header[0], idxLabelsMagic)
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, errors.Wrap(err, "failed to read labels")
	}
	return labels, nil
}

// LoadMNIST loads MNIST from the official IDX files in dir.
//
// Expected files in dir:
//   - train-images-idx3-ubyte / train-labels-idx1-ubyte (train)
//   - t10k-images-idx3-ubyte / t10k-labels-idx1-ubyte (test)
//
// Pixels are normalized to [0, 1]; samples have shape [1, rows, cols].
// maxSamples limits the number of samples loaded (0 = all).
func LoadMNIST(dir string, train bool, maxSamples int) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}

	images, rows, cols, err := readIDXFile(filepath.Join(dir, prefix+"-images-idx3-ubyte"), ReadIDXImages)
	if err != nil {
		return nil, err
	}
	labelBytes, _, _, err := readIDXFile(filepath.Join(dir, prefix+"-labels-idx1-ubyte"),
		func(r io.Reader) ([]byte, int, int, error) {
			labels, err := ReadIDXLabels(r)
			return labels, 0, 0, err
		})
	if err != nil {
		return nil, err
	}
	if len(images) != len(labelBytes) {
		return nil, errors.Errorf("image count (%d) != label count (%d)", len(images), len(labelBytes))
	}

	n := len(images)
	if maxSamples > 0 && n > maxSamples {
		n = maxSamples
	}
	data := make([]float32, 0, n*rows*cols)
	labels := make([]int, n)
	classes := 0
	for i := range n {
		for _, px := range images[i] {
			data = append(data, float32(px)/255)
		}
		labels[i] = int(labelBytes[i])
		classes = max(classes, labels[i]+1)
	}
	return New(tensor.Shape{1, rows, cols}, data, labels, max(classes, 10))
}

func readIDXFile[T any](path string, read func(io.Reader) (T, int, int, error)) (T, int, int, error) {
	var zero T
	//nolint:gosec // G304: path comes from the data directory flag
	f, err := os.Open(path)
	if err != nil {
		return zero, 0, 0, errors.Wrap(err, "failed to open IDX file")
	}
	defer f.Close()
	v, a, b, err := read(f)
	if err != nil {
		return zero, 0, 0, errors.WithMessagef(err, "read %s", path)
	}
	return v, a, b, nil
}
