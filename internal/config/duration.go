package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var durationToken = regexp.MustCompile(`(\d+(?:\.\d+)?)([a-zµμ]+)`)

var longUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// parseDuration accepts time.ParseDuration syntax plus d (24h) and w (7d)
// units, e.g. "2m", "1d", "1w2d3h".
func parseDuration(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		negative = s[0] == '-'
		s = s[1:]
	}
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}

	var (
		total    time.Duration
		consumed int
	)
	for _, m := range durationToken.FindAllStringSubmatchIndex(s, -1) {
		if m[0] != consumed {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		consumed = m[1]

		token, number, unit := s[m[0]:m[1]], s[m[2]:m[3]], s[m[4]:m[5]]
		if scale, ok := longUnits[unit]; ok {
			n, err := strconv.ParseFloat(number, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q", raw)
			}
			total += time.Duration(n * float64(scale))
			continue
		}
		d, err := time.ParseDuration(token)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		total += d
	}
	if consumed != len(s) {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if negative {
		total = -total
	}
	return total, nil
}
