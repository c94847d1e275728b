package tools

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

func isUUID(s string) bool { return uuidPattern.MatchString(s) }

func argString(args map[string]any, key string) string {
	switch v := args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return ""
	}
}

// argInt tolerates the numeric shapes JSON decoding and the model both
// produce (float64, json.Number, stringified ints).
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func argBool(args map[string]any, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func argStrings(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// istLocation is the bot's reference timezone for day-window tools. Day
// boundaries follow Asia/Kolkata regardless of where the process runs.
var istLocation = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	return time.FixedZone("IST", 5*3600+30*60)
}()

// istDayWindow maps (daysOffset, daysSpan) to UTC instants bounding whole
// IST days. daysOffset 0 means today, -1 yesterday, and so on.
func istDayWindow(daysOffset, daysSpan int) (time.Time, time.Time) {
	if daysSpan < 1 {
		daysSpan = 1
	}
	now := time.Now().In(istLocation)
	d0 := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, istLocation).
		AddDate(0, 0, daysOffset)
	d1 := d0.AddDate(0, 0, daysSpan)
	return d0.UTC(), d1.UTC()
}
