// Package serialization implements the .hnd state-dict format used for model
// and checkpoint files.
//
//	Format Structure:
//	  0x00  [4 bytes: Magic "HNDW"]
//	  0x04  [4 bytes: Version (uint32 LE)]
//	  0x08  [4 bytes: Flags (uint32 LE)]
//	  0x0C  [4 bytes: Reserved]
//	  0x10  [8 bytes: Header size (uint64 LE)]
//	  0x18  [8 bytes: Data size (uint64 LE)]
//	  0x20  [32 bytes: SHA-256 of the data section]
//	  0x40  [Header: JSON metadata]
//	        [Tensor data: raw little-endian bytes, 64-byte aligned]
//
// Tensors are laid out in sorted name order so that the same state dict always
// produces the same bytes.
//
// Example usage:
//
//	err := serialization.WriteFile("model.hnd", stateDict, serialization.Header{ModelType: "cnn"})
//
//	stateDict, header, err := serialization.ReadFile("model.hnd")
package serialization
