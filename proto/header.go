// Package proto holds the FIT record model: record headers, definition
// messages with their field definitions, and a cursor over record payloads.
package proto

const (
	compressedHeaderMask       = 0x80
	compressedLocalMesgNumMask = 0x60
	compressedTimeMask         = 0x1F
	mesgDefinitionMask         = 0x40
	devDataMask                = 0x20
	localMesgNumMask           = 0x0F

	// MaxLocalTypes is the number of local message type slots in a normal header.
	MaxLocalTypes = 16
)

// RecordHeader is the first byte of every record.
type RecordHeader byte

// NewRecordHeader builds a normal (non-compressed) header for a definition
// or data record of the given local message type.
func NewRecordHeader(localType uint8, isData bool) RecordHeader {
	h := RecordHeader(localType & localMesgNumMask)
	if !isData {
		h |= mesgDefinitionMask
	}
	return h
}

// Compressed reports a compressed-timestamp data header.
func (h RecordHeader) Compressed() bool {
	return byte(h)&compressedHeaderMask == compressedHeaderMask
}

// Definition reports a definition record. Compressed headers are always data.
func (h RecordHeader) Definition() bool {
	return !h.Compressed() && byte(h)&mesgDefinitionMask == mesgDefinitionMask
}

// DeveloperData reports that a definition record carries developer field
// definitions after the standard ones.
func (h RecordHeader) DeveloperData() bool {
	return h.Definition() && byte(h)&devDataMask == devDataMask
}

func (h RecordHeader) LocalType() uint8 {
	if h.Compressed() {
		return (byte(h) & compressedLocalMesgNumMask) >> 5
	}
	return byte(h) & localMesgNumMask
}

// TimeOffset is the 5-bit rolling seconds offset of a compressed header.
func (h RecordHeader) TimeOffset() uint8 {
	if !h.Compressed() {
		return 0
	}
	return byte(h) & compressedTimeMask
}

// WithDeveloperData sets the developer-data flag on a definition header.
func (h RecordHeader) WithDeveloperData() RecordHeader {
	if !h.Definition() {
		return h
	}
	return h | devDataMask
}

// CompressedTimestamp reconstructs an absolute timestamp from the last full
// timestamp seen in the stream and a compressed header's 5-bit offset.
func CompressedTimestamp(last uint32, offset uint8) uint32 {
	return last + ((uint32(offset) - last) & compressedTimeMask)
}
