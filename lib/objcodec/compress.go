// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcodec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the byte compressor applied after sealing.
// The value is written as the first byte of every stored blob, so the
// constants are part of the file format and must not be renumbered.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

// MaxDecodedSize bounds how far a stored blob may expand when
// decompressed. Object payloads are small JSON documents; anything
// claiming more than this is treated as corruption.
const MaxDecodedSize = 256 << 20

// String returns the configuration name of the compression.
func (c Compression) String() string {
	switch c {
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name. The empty string
// selects LZ4.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	case "none":
		return CompressionNone, nil
	default:
		return 0, fmt.Errorf("unknown compression %q (want lz4, zstd, or none)", name)
	}
}

// zstd encoders and decoders are safe for concurrent use through
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("objcodec: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxDecodedSize))
	if err != nil {
		panic("objcodec: zstd decoder initialization failed: " + err.Error())
	}
}

func compress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)+64)), nil
	case CompressionLZ4:
		var output bytes.Buffer
		writer := lz4.NewWriter(&output)
		if err := writer.Apply(lz4.SizeOption(uint64(len(data)))); err != nil {
			return nil, fmt.Errorf("configuring lz4 writer: %w", err)
		}
		if _, err := writer.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return output.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}

func decompress(data []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		decoded, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return decoded, nil
	case CompressionLZ4:
		reader := io.LimitReader(lz4.NewReader(bytes.NewReader(data)), MaxDecodedSize+1)
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if len(decoded) > MaxDecodedSize {
			return nil, fmt.Errorf("lz4 decompress: output exceeds %d bytes", MaxDecodedSize)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", compression)
	}
}
