package ws

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Encoder compresses downstream frames for clients on the zstd subprotocol.
type Encoder struct {
	zstdEncoder *zstd.Encoder
}

// NewEncoder creates a new Encoder with Zstd compression.
func NewEncoder() (*Encoder, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Encoder{zstdEncoder: enc}, nil
}

// Encode compresses one JSON frame. Safe for concurrent use.
func (e *Encoder) Encode(frame []byte) []byte {
	return e.zstdEncoder.EncodeAll(frame, nil)
}

// Close releases encoder resources.
func (e *Encoder) Close() {
	if e.zstdEncoder != nil {
		e.zstdEncoder.Close()
	}
}
