// Package stream holds the per-sensor rolling windows and the status/banner
// derivations computed from them.
package stream

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"cellar_monitor/internal/models"
)

// Normalize converts broker records into samples. Values that do not parse
// become NaN and are kept, so a bad reading still occupies its timestamp.
func Normalize(records []models.RawRecord) []models.Sample {
	out := make([]models.Sample, 0, len(records))
	for _, r := range records {
		out = append(out, models.Sample{
			Timestamp: r.RecvTime,
			Value:     parseValue(r.AttrValue),
		})
	}
	return out
}

// parseValue reads the longest leading decimal literal of s, after leading
// whitespace, in the manner of JavaScript's parseFloat: "23.5C" is 23.5,
// "Infinity" is +Inf, and hex or "inf" spellings are NaN.
func parseValue(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	n := 0
	if n < len(s) && (s[n] == '+' || s[n] == '-') {
		n++
	}
	if strings.HasPrefix(s[n:], infinity) {
		if s[0] == '-' {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}

	intDigits := scanDigits(s, n)
	n += intDigits
	fracDigits := 0
	if n < len(s) && s[n] == '.' {
		fracDigits = scanDigits(s, n+1)
		if intDigits > 0 || fracDigits > 0 {
			n += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return math.NaN()
	}
	if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
		m := n + 1
		if m < len(s) && (s[m] == '+' || s[m] == '-') {
			m++
		}
		if d := scanDigits(s, m); d > 0 {
			n = m + d
		}
	}

	v, err := strconv.ParseFloat(s[:n], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return math.NaN()
	}
	return v
}

const infinity = "Infinity"

// scanDigits counts ASCII digits in s starting at i.
func scanDigits(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] >= '0' && s[i+n] <= '9' {
		n++
	}
	return n
}
