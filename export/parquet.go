//go:build !js

package export

import (
	"math"
	"time"

	parquetbuffer "github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/lucasjlepore/fitcodec/mesg"
	"github.com/lucasjlepore/fitcodec/stream"
)

// RecordRow is one record message in the columnar sample table. Missing
// values are NaN.
type RecordRow struct {
	TSUTCISO     string  `parquet:"name=ts_utc_iso, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	ElapsedS     float64 `parquet:"name=elapsed_s, type=DOUBLE"`
	PowerW       float64 `parquet:"name=power_w, type=DOUBLE"`
	HRBPM        float64 `parquet:"name=hr_bpm, type=DOUBLE"`
	CadenceRPM   float64 `parquet:"name=cadence_rpm, type=DOUBLE"`
	SpeedMPS     float64 `parquet:"name=speed_mps, type=DOUBLE"`
	DistanceM    float64 `parquet:"name=distance_m, type=DOUBLE"`
	AltitudeM    float64 `parquet:"name=altitude_m, type=DOUBLE"`
	TemperatureC float64 `parquet:"name=temperature_c, type=DOUBLE"`
	GradePct     float64 `parquet:"name=grade_pct, type=DOUBLE"`
	ValidPower   bool    `parquet:"name=valid_power, type=BOOLEAN"`
	ValidHR      bool    `parquet:"name=valid_hr, type=BOOLEAN"`
	ValidCadence bool    `parquet:"name=valid_cadence, type=BOOLEAN"`
	FileOffset   int64   `parquet:"name=file_offset, type=INT64"`
	RecordIndex  int64   `parquet:"name=record_index, type=INT64"`
}

// RecordRows projects the record messages of f. Speed and altitude take the
// message's preferred field; elapsed time counts from the first timestamp.
func RecordRows(f *stream.File) []RecordRow {
	var rows []RecordRow
	var first time.Time
	for _, rec := range f.Records {
		m := rec.Message
		if m == nil || m.Name() != "record" {
			continue
		}
		row := RecordRow{
			ElapsedS:     math.NaN(),
			PowerW:       floatOrNaN(m.Float("power")),
			HRBPM:        floatOrNaN(m.Float("heart_rate")),
			CadenceRPM:   floatOrNaN(m.Float("cadence")),
			SpeedMPS:     preferredOrNaN(m, "speed"),
			DistanceM:    floatOrNaN(m.Float("distance")),
			AltitudeM:    preferredOrNaN(m, "altitude"),
			TemperatureC: floatOrNaN(m.Float("temperature")),
			GradePct:     floatOrNaN(m.Float("grade")),
			FileOffset:   int64(rec.Offset),
			RecordIndex:  int64(rec.Index),
		}
		row.ValidPower = !math.IsNaN(row.PowerW)
		row.ValidHR = !math.IsNaN(row.HRBPM)
		row.ValidCadence = !math.IsNaN(row.CadenceRPM)
		if ts, ok := m.Timestamp(); ok {
			if first.IsZero() {
				first = ts
			}
			row.TSUTCISO = ts.UTC().Format(time.RFC3339)
			row.ElapsedS = ts.Sub(first).Seconds()
		}
		rows = append(rows, row)
	}
	return rows
}

// MarshalRecordsParquet renders RecordRows(f) as a SNAPPY-compressed
// Parquet file in memory.
func MarshalRecordsParquet(f *stream.File) ([]byte, error) {
	fw := parquetbuffer.NewBufferFile()
	if err := writeRows(fw, RecordRows(f)); err != nil {
		return nil, err
	}
	return append([]byte(nil), fw.Bytes()...), nil
}

// WriteRecordsParquetFile writes RecordRows(f) to path and returns the
// number of rows.
func WriteRecordsParquetFile(path string, f *stream.File) (int, error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return 0, err
	}
	rows := RecordRows(f)
	return len(rows), writeRows(fw, rows)
}

func writeRows(fw source.ParquetFile, rows []RecordRow) error {
	pw, err := writer.NewParquetWriter(fw, new(RecordRow), 4)
	if err != nil {
		_ = fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			_ = pw.WriteStop()
			_ = fw.Close()
			return err
		}
	}
	if err := pw.WriteStop(); err != nil {
		_ = fw.Close()
		return err
	}
	return fw.Close()
}

func floatOrNaN(v float64, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}

func preferredOrNaN(m *mesg.Message, name string) float64 {
	v, ok := m.Preferred(name)
	if !ok || !v.Valid || v.Kind != mesg.KindNumber {
		return math.NaN()
	}
	return v.Num
}
