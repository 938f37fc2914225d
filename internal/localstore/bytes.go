package localstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// byteValues encodes audio as a JSON array of byte values (0-255) rather
// than base64. The stored payload must keep this shape.
type byteValues []byte

func (b byteValues) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, 2+len(b)*4)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

func (b *byteValues) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = nil
		return nil
	}

	var vals []int
	if err := json.Unmarshal(data, &vals); err != nil {
		return fmt.Errorf("audio data: %w", err)
	}
	out := make([]byte, len(vals))
	for i, v := range vals {
		if v < 0 || v > 255 {
			return fmt.Errorf("audio data: value %d at index %d out of byte range", v, i)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}
