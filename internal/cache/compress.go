package cache

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/s2"

	"github.com/kailas-cloud/toolvec/internal/domain"
)

// vectorToBytes encodes an embedding as little-endian float32 bytes.
func vectorToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToVector decodes little-endian float32 bytes back into an embedding.
func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: invalid embedding data: len=%d (not multiple of 4)", domain.ErrCache, len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// compress applies lossless s2 compression to encoded vector bytes.
func compress(data []byte) []byte {
	return s2.Encode(nil, data)
}

// decompress reverses compress. Failures surface as ErrCache so callers can
// treat the entry as a miss.
func decompress(data []byte) ([]byte, error) {
	out, err := s2.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("%w: s2 decode: %s", domain.ErrCache, err)
	}
	return out, nil
}
