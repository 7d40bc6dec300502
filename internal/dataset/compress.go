package dataset

import (
	"bytes"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Input compression types.
const (
	CompressJPEG   = "jpeg"
	CompressResize = "resize"
)

// Compressor degrades image samples before they reach the model, emulating a
// lossy channel between the sensor and the network.
type Compressor struct {
	kind    string
	quality int     // jpeg
	factor  float64 // resize
}

// ParseCompressor builds a compressor from a type and size pair:
//   - "jpeg": size is the JPEG quality in [1, 100]
//   - "resize": size is the downscale factor in (0, 1]; the image is shrunk
//     and scaled back to its original size
//
// An empty type returns nil, meaning no compression.
func ParseCompressor(kind, size string) (*Compressor, error) {
	switch kind {
	case "":
		return nil, nil
	case CompressJPEG:
		q, err := strconv.Atoi(size)
		if err != nil || q < 1 || q > 100 {
			return nil, errors.Errorf("jpeg quality %q not in [1, 100]", size)
		}
		return &Compressor{kind: kind, quality: q}, nil
	case CompressResize:
		f, err := strconv.ParseFloat(size, 64)
		if err != nil || f <= 0 || f > 1 {
			return nil, errors.Errorf("resize factor %q not in (0, 1]", size)
		}
		return &Compressor{kind: kind, factor: f}, nil
	default:
		return nil, errors.Errorf("unknown compression type %q", kind)
	}
}

// String describes the compressor, e.g. "jpeg(q=50)".
func (c *Compressor) String() string {
	if c == nil {
		return "none"
	}
	if c.kind == CompressJPEG {
		return "jpeg(q=" + strconv.Itoa(c.quality) + ")"
	}
	return "resize(x" + strconv.FormatFloat(c.factor, 'g', -1, 64) + ")"
}

// Apply returns a copy of ds with every sample compressed and decoded back.
// Samples must be [1|3, H, W] images.
func (c *Compressor) Apply(ds *Dataset) (*Dataset, error) {
	if c == nil {
		return ds, nil
	}
	shape := ds.Shape()
	data := make([]float32, 0, ds.Len()*shape.NumElements())
	for i := range ds.Len() {
		img, err := ToImage(ds.Sample(i), shape)
		if err != nil {
			return nil, err
		}

		var out = img
		switch c.kind {
		case CompressJPEG:
			var buf bytes.Buffer
			if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
				return nil, errors.Wrapf(err, "encode sample %d", i)
			}
			decoded, err := imaging.Decode(&buf)
			if err != nil {
				return nil, errors.Wrapf(err, "decode sample %d", i)
			}
			out = imaging.Clone(decoded)
		case CompressResize:
			w, h := shape[2], shape[1]
			small := imaging.Resize(img, max(1, int(float64(w)*c.factor)), max(1, int(float64(h)*c.factor)), imaging.Lanczos)
			out = imaging.Resize(small, w, h, imaging.Linear)
		}

		sample, err := FromImage(out, shape[0], shape[1], shape[2])
		if err != nil {
			return nil, err
		}
		data = append(data, sample...)
	}
	labels := make([]int, ds.Len())
	for i := range labels {
		labels[i] = ds.Label(i)
	}
	return New(shape, data, labels, ds.Classes())
}
