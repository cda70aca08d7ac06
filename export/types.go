// Package export renders decoded FIT files as JSONL, CBOR and Parquet and
// writes export bundles to disk.
package export

import (
	"time"

	"github.com/lucasjlepore/fitcodec/stream"
)

const (
	// FormatVersion identifies the on-disk schema of export bundles.
	FormatVersion = "fitcodec_jsonl_v1"
)

// Options controls ExportFile.
type Options struct {
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool

	// CopySourceFile writes a byte-for-byte copy of the source FIT file to the output directory.
	CopySourceFile bool

	// Parquet also writes record messages to records.parquet.
	Parquet bool

	// Reader decodes the input. Nil uses a Reader with default options.
	Reader *stream.Reader
}

// Result describes generated files.
type Result struct {
	OutputDir       string `json:"output_dir"`
	ManifestPath    string `json:"manifest_path"`
	MessagesPath    string `json:"messages_path"`
	ParquetPath     string `json:"parquet_path,omitempty"`
	SourceCopyPath  string `json:"source_copy_path,omitempty"`
	MessageCount    int    `json:"message_count"`
	SkippedCount    int    `json:"skipped_count"`
	DefinitionCount int    `json:"definition_count"`
	DataCount       int    `json:"data_count"`
	SampleCount     int    `json:"sample_count,omitempty"`
	SourceSHA256    string `json:"source_sha256"`
	SourceSizeBytes int64  `json:"source_size_bytes"`
	FileCRCValid    bool   `json:"file_crc_valid"`
	HeaderCRCValid  bool   `json:"header_crc_valid"`
	LeftoverBytes   int    `json:"leftover_bytes"`
}

// Manifest captures export metadata and pointers to exported files.
type Manifest struct {
	FormatVersion   string          `json:"format_version"`
	GeneratedAt     time.Time       `json:"generated_at"`
	SourceFile      string          `json:"source_file"`
	SourceFileName  string          `json:"source_file_name"`
	SourceSHA256    string          `json:"source_sha256"`
	SourceSizeBytes int64           `json:"source_size_bytes"`
	Header          stream.Header   `json:"header"`
	HeaderCRC       stream.CRCCheck `json:"header_crc"`
	FileCRC         stream.CRCCheck `json:"file_crc"`
	MessagesPath    string          `json:"messages_path"`
	ParquetPath     string          `json:"parquet_path,omitempty"`
	MessageCount    int             `json:"message_count"`
	SkippedCount    int             `json:"skipped_count"`
	DefinitionCount int             `json:"definition_count"`
	DataCount       int             `json:"data_count"`
	LeftoverBytes   int             `json:"leftover_bytes"`
	FileID          *FileIDInfo     `json:"file_id,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// FileIDInfo is a convenience projection from the file_id message.
type FileIDInfo struct {
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Product      uint64 `json:"product,omitempty"`
	TimeCreated  string `json:"time_created,omitempty"`
	SerialNumber uint64 `json:"serial_number,omitempty"`
}

// Envelope is one line of messages.jsonl. Lines follow file order; data
// records that could not be decoded appear with Skipped set.
type Envelope struct {
	FormatVersion   string           `json:"format_version"`
	RecordIndex     int              `json:"record_index"`
	FileOffset      int              `json:"file_offset"`
	LocalType       uint8            `json:"local_message_type"`
	Compressed      bool             `json:"compressed,omitempty"`
	GlobalNum       uint16           `json:"global_message_num"`
	Message         string           `json:"message"`
	Fields          []FieldEntry     `json:"fields,omitempty"`
	DeveloperFields []DeveloperEntry `json:"developer_fields,omitempty"`
	Skipped         string           `json:"skipped,omitempty"`
}

// FieldEntry is one decoded field. Value is nil for invalid fields; Raw then
// carries the sentinel bit pattern.
type FieldEntry struct {
	Num   uint8   `json:"num"`
	Name  string  `json:"name"`
	Type  string  `json:"type"`
	Value any     `json:"value"`
	Units string  `json:"units,omitempty"`
	Enum  string  `json:"enum,omitempty"`
	Valid bool    `json:"valid"`
	Raw   *uint64 `json:"raw,omitempty"`
}

// DeveloperEntry is one resolved developer field.
type DeveloperEntry struct {
	DeveloperDataIndex uint8  `json:"developer_data_index"`
	Num                uint8  `json:"num"`
	Name               string `json:"name"`
	Type               string `json:"type"`
	Value              any    `json:"value"`
	Units              string `json:"units,omitempty"`
	Valid              bool   `json:"valid"`
}
