package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/nitishmital/head-network-distillation/internal/tensor"
)

// Read decodes a state dict from r, verifying magic, version, layout and checksum.
func Read(r io.Reader) (map[string]*tensor.Tensor, Header, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read fixed header")
	}
	if string(fixed[0:4]) != MagicBytes {
		return nil, Header{}, errors.Wrapf(ErrInvalidMagic, "got %q, expected %q", fixed[0:4], MagicBytes)
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, Header{}, errors.Wrapf(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	dataSize := binary.LittleEndian.Uint64(fixed[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, Header{}, errors.Wrapf(ErrHeaderTooLarge, "%d bytes", headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read header")
	}
	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to parse header JSON")
	}

	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	padding := dataOffset(int64(headerSize)) - int64(FixedHeaderSize) - int64(headerSize)
	if _, err := io.CopyN(io.Discard, r, padding); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read padding")
	}

	var data bytes.Buffer
	//nolint:gosec // G115: a corrupt size fails the read below
	if _, err := io.CopyN(&data, r, int64(dataSize)); err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to read tensor data")
	}
	if err := ValidateChecksum(ComputeChecksum(data.Bytes()), stored); err != nil {
		return nil, Header{}, err
	}
	if err := ValidateHeader(&header, int64(data.Len())); err != nil {
		return nil, Header{}, errors.Wrap(err, "validation failed")
	}

	stateDict := make(map[string]*tensor.Tensor, len(header.Tensors))
	raw := data.Bytes()
	for _, meta := range header.Tensors {
		dtype, err := tensor.ParseDataType(meta.DType)
		if err != nil {
			return nil, Header{}, errors.Wrapf(err, "tensor %s", meta.Name)
		}
		t, err := tensor.FromBytes(raw[meta.Offset:meta.Offset+meta.Size], tensor.Shape(meta.Shape), dtype)
		if err != nil {
			return nil, Header{}, errors.Wrapf(err, "tensor %s", meta.Name)
		}
		stateDict[meta.Name] = t
	}
	return stateDict, header, nil
}

// ReadFile reads a state dict from a .hnd file.
func ReadFile(path string) (map[string]*tensor.Tensor, Header, error) {
	//nolint:gosec // G304: path is chosen by the user
	f, err := os.Open(path)
	if err != nil {
		return nil, Header{}, errors.Wrap(err, "failed to open file")
	}
	defer f.Close()
	return Read(f)
}
