package render

import "time"

// DateFormatter formats a parsed publish date for display.
type DateFormatter func(time.Time) string

// LongDate formats dates as a long US English date, e.g. "March 4, 2024".
func LongDate(t time.Time) string {
	return t.Format("January 2, 2006")
}

// dateLayouts are the layouts the posts endpoint is known to use. The
// "date" field carries no zone; "date_gmt" style values may carry one.
var dateLayouts = []string{
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// FormatDate applies one of two policies. With a formatter, a parsable date
// is formatted by it. Without a formatter, or when the date does not parse,
// the raw value is returned unchanged.
func FormatDate(raw string, format DateFormatter) string {
	if format == nil {
		return raw
	}
	t, ok := parseDate(raw)
	if !ok {
		return raw
	}
	return format(t)
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
