package exporter

import (
	"fmt"
	"time"
)

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatCell renders one table cell as CSV text. Times are written as RFC 3339
// in UTC.
func formatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return formatInt(x)
	case float64:
		return formatFloat(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

// formatRow renders a table row as CSV fields
func formatRow(row []interface{}) []string {
	out := make([]string, len(row))
	for i, v := range row {
		out[i] = formatCell(v)
	}
	return out
}
