package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"ecoindex/internal/core"
	"ecoindex/internal/filter"
)

// renderCSV writes the schema's export columns as the header followed by one
// line per row. Columns the row lacks are left empty.
func renderCSV(schema *filter.Schema, rows []core.Row) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(schema.Columns); err != nil {
		return nil, err
	}
	record := make([]string, len(schema.Columns))
	for _, row := range rows {
		for i, column := range schema.Columns {
			record[i] = formatValue(row[column], schema.IsDateColumn(column))
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatValue(value any, date bool) string {
	switch v := value.(type) {
	case nil:
		return ""
	case time.Time:
		if date {
			return v.Format(filter.DateLayout)
		}
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
