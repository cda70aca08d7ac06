// Package stream frames FIT messages into files: the file header, the
// local message type table, compressed timestamps and the CRCs.
package stream

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tormoder/fit/dyncrc16"
)

const (
	headerSizeNoCRC = 12
	headerSizeCRC   = 14
	crcSize         = 2
	dataType        = ".FIT"

	// ProtocolVersion is protocol 2.0.
	ProtocolVersion uint8 = 0x20
	// ProfileVersion is written into headers produced by Writer.
	ProfileVersion uint16 = 2132
)

var (
	ErrInvalidHeader     = errors.New("invalid fit header")
	ErrMissingDefinition = errors.New("missing definition")
	ErrCRC               = errors.New("crc mismatch")
)

// Header is the FIT file header.
type Header struct {
	Size            uint8  `json:"size"`
	ProtocolVersion uint8  `json:"protocol_version"`
	ProfileVersion  uint16 `json:"profile_version"`
	DataSize        uint32 `json:"data_size"`
	DataType        string `json:"data_type"`
	CRC             uint16 `json:"crc,omitempty"`
}

// CRCCheck records a stored checksum against the computed one.
type CRCCheck struct {
	Present  bool   `json:"present"`
	Stored   uint16 `json:"stored"`
	Computed uint16 `json:"computed"`
	Valid    bool   `json:"valid"`
}

func (c CRCCheck) String() string {
	if !c.Present {
		return "absent"
	}
	return fmt.Sprintf("stored=0x%04X computed=0x%04X valid=%t", c.Stored, c.Computed, c.Valid)
}

// ParseHeader decodes the header at the start of data. A 14-byte header's
// CRC is only checked when non-zero.
func ParseHeader(data []byte) (Header, CRCCheck, error) {
	if len(data) == 0 {
		return Header{}, CRCCheck{}, fmt.Errorf("%w: empty input", ErrInvalidHeader)
	}
	size := data[0]
	if size != headerSizeNoCRC && size != headerSizeCRC {
		return Header{}, CRCCheck{}, fmt.Errorf("%w: size %d", ErrInvalidHeader, size)
	}
	if len(data) < int(size) {
		return Header{}, CRCCheck{}, fmt.Errorf("%w: need %d bytes, have %d", ErrInvalidHeader, size, len(data))
	}

	h := Header{
		Size:            size,
		ProtocolVersion: data[1],
		ProfileVersion:  binary.LittleEndian.Uint16(data[2:4]),
		DataSize:        binary.LittleEndian.Uint32(data[4:8]),
		DataType:        string(data[8:12]),
	}
	if h.DataType != dataType {
		return Header{}, CRCCheck{}, fmt.Errorf("%w: data type %q", ErrInvalidHeader, h.DataType)
	}

	check := CRCCheck{Valid: true}
	if size == headerSizeCRC {
		h.CRC = binary.LittleEndian.Uint16(data[12:14])
		if h.CRC != 0 {
			check.Present = true
			check.Stored = h.CRC
			check.Computed = dyncrc16.Checksum(data[:headerSizeNoCRC])
			check.Valid = check.Stored == check.Computed
		}
	}
	return h, check, nil
}

// MarshalBinary renders a 14-byte header with a freshly computed CRC.
func (h Header) MarshalBinary() ([]byte, error) {
	out := make([]byte, headerSizeCRC)
	out[0] = headerSizeCRC
	out[1] = h.ProtocolVersion
	binary.LittleEndian.PutUint16(out[2:4], h.ProfileVersion)
	binary.LittleEndian.PutUint32(out[4:8], h.DataSize)
	copy(out[8:12], dataType)
	binary.LittleEndian.PutUint16(out[12:14], dyncrc16.Checksum(out[:headerSizeNoCRC]))
	return out, nil
}
