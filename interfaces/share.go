package interfaces

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const shareFormatVersion = 1

// shareHeaderSize is version(1) + epoch(16) + threshold(1) + index(1).
const shareHeaderSize = 19

// Share is one fragment of a split secret. Shares are only meaningful
// relative to the split that produced them, identified by Epoch.
type Share struct {
	Epoch     uuid.UUID
	Index     int
	Threshold int
	// Data is the raw polynomial evaluation, including the x-coordinate tag.
	Data []byte
}

// MarshalBinary encodes the share with its epoch header.
func (s Share) MarshalBinary() ([]byte, error) {
	if s.Index < 1 || s.Index > 255 {
		return nil, fmt.Errorf("share index %d out of range", s.Index)
	}
	if s.Threshold < 1 || s.Threshold > 255 {
		return nil, fmt.Errorf("share threshold %d out of range", s.Threshold)
	}

	out := make([]byte, 0, shareHeaderSize+len(s.Data))
	out = append(out, shareFormatVersion)
	out = append(out, s.Epoch[:]...)
	out = append(out, byte(s.Threshold), byte(s.Index))
	out = append(out, s.Data...)
	return out, nil
}

// UnmarshalBinary decodes a share produced by MarshalBinary.
func (s *Share) UnmarshalBinary(b []byte) error {
	if len(b) <= shareHeaderSize {
		return errors.New("share too short")
	}
	if b[0] != shareFormatVersion {
		return fmt.Errorf("unsupported share version %d", b[0])
	}

	copy(s.Epoch[:], b[1:17])
	s.Threshold = int(b[17])
	s.Index = int(b[18])
	s.Data = append([]byte(nil), b[shareHeaderSize:]...)
	return nil
}

// Clone returns a deep copy so the holder can wipe its own buffer.
func (s Share) Clone() Share {
	s.Data = append([]byte(nil), s.Data...)
	return s
}

// Wipe zeroes the share data in place.
func (s *Share) Wipe() {
	for i := range s.Data {
		s.Data[i] = 0
	}
	s.Data = nil
}
