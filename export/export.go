package export

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lucasjlepore/fitcodec/stream"
)

// ExportFile decodes a FIT file and writes an export bundle.
// Output files:
//   - manifest.json
//   - messages.jsonl
//   - records.parquet (optional)
//   - source.fit (optional)
func ExportFile(inputPath, outputDir string, opts Options) (*Result, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read fit file: %w", err)
	}
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	r := opts.Reader
	if r == nil {
		r = stream.NewReader(stream.Options{})
	}
	f, err := r.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode fit file: %w", err)
	}

	if err := ensureOutputDir(outputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	messagesPath := filepath.Join(outputDir, "messages.jsonl")
	if err := writeMessages(messagesPath, f); err != nil {
		return nil, fmt.Errorf("write messages.jsonl: %w", err)
	}

	res := &Result{
		OutputDir:       outputDir,
		MessagesPath:    messagesPath,
		MessageCount:    len(f.Messages),
		SkippedCount:    f.DataCount() - len(f.Messages),
		DefinitionCount: f.DefinitionCount(),
		DataCount:       f.DataCount(),
		SourceSHA256:    sha,
		SourceSizeBytes: int64(len(data)),
		FileCRCValid:    f.FileCRC.Valid,
		HeaderCRCValid:  f.HeaderCRC.Valid,
		LeftoverBytes:   f.Leftover,
	}

	if opts.Parquet {
		res.ParquetPath = filepath.Join(outputDir, "records.parquet")
		if res.SampleCount, err = WriteRecordsParquetFile(res.ParquetPath, f); err != nil {
			return nil, fmt.Errorf("write records.parquet: %w", err)
		}
	}

	manifest := Manifest{
		FormatVersion:   FormatVersion,
		GeneratedAt:     time.Now().UTC(),
		SourceFile:      inputPath,
		SourceFileName:  filepath.Base(inputPath),
		SourceSHA256:    sha,
		SourceSizeBytes: int64(len(data)),
		Header:          f.Header,
		HeaderCRC:       f.HeaderCRC,
		FileCRC:         f.FileCRC,
		MessagesPath:    filepath.Base(messagesPath),
		MessageCount:    res.MessageCount,
		SkippedCount:    res.SkippedCount,
		DefinitionCount: res.DefinitionCount,
		DataCount:       res.DataCount,
		LeftoverBytes:   f.Leftover,
		FileID:          ProjectFileID(f),
		Warnings:        f.Warnings,
	}
	if res.ParquetPath != "" {
		manifest.ParquetPath = filepath.Base(res.ParquetPath)
	}

	res.ManifestPath = filepath.Join(outputDir, "manifest.json")
	if err := writeJSON(res.ManifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	if opts.CopySourceFile {
		res.SourceCopyPath = filepath.Join(outputDir, "source.fit")
		if err := copyFile(inputPath, res.SourceCopyPath); err != nil {
			return nil, fmt.Errorf("copy source fit file: %w", err)
		}
	}
	return res, nil
}

// ProjectFileID summarises the first file_id message, nil when absent.
func ProjectFileID(f *stream.File) *FileIDInfo {
	m, ok := f.First("file_id")
	if !ok {
		return nil
	}
	info := &FileIDInfo{}
	info.Type, _ = m.Enum("type")
	info.Manufacturer, _ = m.Enum("manufacturer")
	info.Product, _ = m.Uint("product")
	info.SerialNumber, _ = m.Uint("serial_number")
	if ts, ok := m.Time("time_created"); ok {
		info.TimeCreated = ts.UTC().Format(time.RFC3339)
	}
	return info
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMessages(path string, file *stream.File) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return WriteJSONL(f, file)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
