package codec

import (
	"bytes"
	"fmt"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// ErrorSelector returns the 4-byte selector of a parameterless error
func ErrorSelector(name string) [4]byte {
	return Selector(name + "()")
}

// EncodeError returns the revert data of a protocol error
func EncodeError(err *domain.ProtocolError) []byte {
	sel := err.Selector()
	return sel[:]
}

// DecodeError maps revert data back to the protocol error it encodes
func DecodeError(data []byte) (*domain.ProtocolError, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: revert data is %d bytes", ErrCodecMalformed, len(data))
	}
	for _, pe := range domain.ProtocolErrors() {
		sel := pe.Selector()
		if bytes.Equal(sel[:], data[:4]) {
			return pe, nil
		}
	}
	return nil, fmt.Errorf("%w: 0x%x", ErrUnknownSelector, data[:4])
}
