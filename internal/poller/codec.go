package poller

import (
	"fmt"
	"strconv"
	"strings"
)

// DecodeRow converts one fetched record into a mapping keyed by lower-cased
// column name. The mapping is freshly allocated per row and owned by the
// caller.
func DecodeRow(columns []string, values []any) map[string]any {
	row := make(map[string]any, len(columns))
	for i, name := range columns {
		if i >= len(values) {
			break
		}
		row[strings.ToLower(name)] = values[i]
	}
	return row
}

// WatermarkAt extracts the watermark column's integer value from a record.
// Column name matching is case-insensitive.
func WatermarkAt(columns []string, values []any, column string) (int64, error) {
	for i, name := range columns {
		if strings.EqualFold(name, column) {
			if i >= len(values) {
				break
			}
			return watermarkValue(values[i])
		}
	}
	return 0, fmt.Errorf("watermark column %q not present in result set", column)
}

func watermarkValue(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case []byte:
		return parseWatermark(string(x))
	case string:
		return parseWatermark(x)
	default:
		return 0, fmt.Errorf("watermark value %v (%T) is not an integer", v, v)
	}
}

func parseWatermark(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("watermark value %q is not an integer", s)
	}
	return n, nil
}
