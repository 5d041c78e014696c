package ws

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/spacegame/netsync/transport"
)

const (
	flagCompressed byte = 1 << 0
	flagControl    byte = 1 << 1
)

const frameHeaderSize = 2

var errShortFrame = errors.New("frame too short")

// encodeFrame lays out a frame as [flags][channel][payload]. Payloads of at
// least threshold bytes are lz4 compressed. A threshold of 0 or less disables
// compression.
func encodeFrame(
	flags byte,
	ch transport.ChannelID,
	payload []byte,
	threshold int,
) ([]byte, error) {
	if threshold <= 0 || len(payload) < threshold {
		frame := make([]byte, 0, frameHeaderSize+len(payload))
		frame = append(frame, flags, byte(ch))
		frame = append(frame, payload...)

		return frame, nil
	}

	var buf bytes.Buffer
	buf.WriteByte(flags | flagCompressed)
	buf.WriteByte(byte(ch))

	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress frame: %w", err)
	}

	return buf.Bytes(), nil
}

// decodeFrame splits a frame and decompresses its payload. Decompressed
// payloads larger than maxSize are rejected.
func decodeFrame(
	frame []byte,
	maxSize int64,
) (flags byte, ch transport.ChannelID, payload []byte, err error) {
	if len(frame) < frameHeaderSize {
		return 0, 0, nil, errShortFrame
	}

	flags = frame[0]
	ch = transport.ChannelID(frame[1])
	payload = frame[frameHeaderSize:]

	if flags&flagCompressed == 0 {
		return flags, ch, payload, nil
	}

	zr := lz4.NewReader(bytes.NewReader(payload))

	payload, err = io.ReadAll(io.LimitReader(zr, maxSize+1))
	if err != nil {
		return 0, 0, nil, fmt.Errorf("decompress frame: %w", err)
	}

	if int64(len(payload)) > maxSize {
		return 0, 0, nil, fmt.Errorf("frame exceeds %d bytes", maxSize)
	}

	return flags, ch, payload, nil
}
