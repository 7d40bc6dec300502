package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes      = "HNDW"
	FormatVersion   = 1
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the .hnd format.
const (
	FlagHasOptimizer uint32 = 1 << 1 // bit 1: optimizer state included
	FlagHasMetadata  uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .hnd file.
type Header struct {
	FormatVersion  int               `json:"format_version"`
	ModelType      string            `json:"model_type"` // Model type tag (e.g., "cnn", "autoencoder")
	CreatedAt      time.Time         `json:"created_at"`
	Tensors        []TensorMeta      `json:"tensors"`
	Metadata       map[string]string `json:"metadata"`
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"`
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	IsCheckpoint    bool           `json:"is_checkpoint"`
	RunID           string         `json:"run_id"`
	Epoch           int            `json:"epoch"`
	Accuracy        float64        `json:"accuracy"`
	Loss            float64        `json:"loss"`
	OptimizerType   string         `json:"optimizer_type,omitempty"`
	OptimizerConfig map[string]any `json:"optimizer_config,omitempty"`
	TrainingMeta    map[string]any `json:"training_meta,omitempty"`
}

// TensorMeta describes a tensor in the .hnd file.
type TensorMeta struct {
	Name   string `json:"name"`   // e.g. "features.conv1.weight"
	DType  string `json:"dtype"`  // e.g. "float32"
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"` // bytes from start of tensor data
	Size   int64  `json:"size"`
}

// dataOffset returns where tensor data starts for a JSON header of headerSize bytes.
func dataOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-pos%HeaderAlignment)%HeaderAlignment
}
