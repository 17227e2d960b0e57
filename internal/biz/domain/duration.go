package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

var (
	durationSegmentRegex = regexp.MustCompile(`(?i)(\d+)([dhms])`)
	durationFullRegex    = regexp.MustCompile(`(?i)^\s*(\d+[dhms]\s*)+$`)
	durationTokenRegex   = regexp.MustCompile(`(?i)^(\d+[dhms])+$`)
)

// IsDurationToken reports whether a command token looks like a duration ("10s", "1h30m").
// Unlike ParseDuration it does not accept whitespace.
func IsDurationToken(token string) bool {
	return durationTokenRegex.MatchString(token)
}

// ParseDuration parses a human time span such as "1d6h" or "1h30m".
// Segments may be separated by whitespace so that FormatDuration output parses back.
// Returns false for empty input, foreign characters, overflow or a zero total.
func ParseDuration(text string) (time.Duration, bool) {
	if !durationFullRegex.MatchString(text) {
		return 0, false
	}

	var total time.Duration
	for _, match := range durationSegmentRegex.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseInt(match[1], 10, 64)
		if err != nil {
			return 0, false
		}

		var unit time.Duration
		switch strings.ToLower(match[2]) {
		case "d":
			unit = day
		case "h":
			unit = time.Hour
		case "m":
			unit = time.Minute
		case "s":
			unit = time.Second
		default:
			return 0, false
		}

		if value > int64(math.MaxInt64/unit) {
			return 0, false
		}
		segment := time.Duration(value) * unit
		if total > math.MaxInt64-segment {
			return 0, false
		}
		total += segment
	}

	if total <= 0 {
		return 0, false
	}
	return total, true
}

// FormatDuration renders d as "1d 6h 30m 5s", omitting zero components.
// Durations under a second render as "<n>ms".
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	hours %= 24
	minutes %= 60
	seconds %= 60

	var parts []string
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"d")
	}
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"m")
	}
	if seconds > 0 {
		parts = append(parts, strconv.FormatInt(seconds, 10)+"s")
	}
	return strings.Join(parts, " ")
}
