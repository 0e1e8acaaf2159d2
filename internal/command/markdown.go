// internal/command/markdown.go - Human-readable output rendering
package command

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// timeLayout is the ISO-8601 form used for every timestamp surfaced to the
// host.
const timeLayout = "2006-01-02T15:04:05.000Z"

// timestampToDateString converts epoch seconds to the canonical ISO-8601
// string.
func timestampToDateString(seconds int64) string {
	return time.Unix(seconds, 0).UTC().Format(timeLayout)
}

// TableToMarkdown renders records as a markdown table under a title.
// Column order is the sorted union of the record keys, so output is stable
// regardless of map iteration order. Empty input renders a note instead of
// an empty table.
func TableToMarkdown(title string, records []map[string]interface{}) string {
	var b strings.Builder
	b.WriteString("### ")
	b.WriteString(title)
	b.WriteString("\n")

	if len(records) == 0 {
		b.WriteString("**No entries.**\n")
		return b.String()
	}

	headerSet := make(map[string]bool)
	for _, record := range records {
		for key := range record {
			headerSet[key] = true
		}
	}
	headers := make([]string, 0, len(headerSet))
	for key := range headerSet {
		headers = append(headers, key)
	}
	sort.Strings(headers)

	b.WriteString("|")
	for _, h := range headers {
		b.WriteString(h)
		b.WriteString("|")
	}
	b.WriteString("\n|")
	for range headers {
		b.WriteString("---|")
	}
	b.WriteString("\n")

	for _, record := range records {
		b.WriteString("|")
		for _, h := range headers {
			b.WriteString(formatCell(record[h]))
			b.WriteString("|")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ObjectToMarkdown renders a single record as a one-row table.
func ObjectToMarkdown(title string, record map[string]interface{}) string {
	return TableToMarkdown(title, []map[string]interface{}{record})
}

// formatCell flattens a value into a single markdown table cell.
func formatCell(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return escapeCell(v)
	case []string:
		return escapeCell(strings.Join(v, ", "))
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, formatCell(item))
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return escapeCell(fmt.Sprintf("%v", v))
		}
		return escapeCell(string(data))
	case float64:
		// JSON numbers decode as float64; keep integral values clean
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return escapeCell(fmt.Sprintf("%v", v))
	}
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}
