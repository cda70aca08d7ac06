//go:build js

package export

import (
	"errors"

	"github.com/lucasjlepore/fitcodec/stream"
)

var errNoParquet = errors.New("parquet export is not available on js")

func MarshalRecordsParquet(*stream.File) ([]byte, error) { return nil, errNoParquet }

func WriteRecordsParquetFile(string, *stream.File) (int, error) { return 0, errNoParquet }
