package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"llmquery/models"
)

// ExportFileName names a CSV download.
func ExportFileName(now time.Time) string {
	return fmt.Sprintf("query_results_%s.csv", now.Format("20060102_150405"))
}

// WriteCSV writes the result as CSV with a header row. NULL becomes an empty
// field.
func WriteCSV(w io.Writer, result *models.QueryResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(result.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range result.Rows {
		record := make([]string, len(result.Columns))
		for i := range result.Columns {
			if i < len(row.Values) {
				record[i] = formatCell(row.Values[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

func formatCell(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprintf("%v", v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}
