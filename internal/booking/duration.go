package booking

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Duration is a parsed booking length. Ambiguous marks a bare number whose
// unit the user never stated; the flow asks instead of guessing.
type Duration struct {
	Hours     float64
	Ambiguous bool
}

// Minutes returns the length in whole minutes.
func (d Duration) Minutes() int {
	return int(math.Round(d.Hours * 60))
}

var hourUnits = map[string]bool{
	"hour": true, "hours": true, "hr": true, "hrs": true, "h": true,
}

var minuteUnits = map[string]bool{
	"minute": true, "minutes": true, "min": true, "mins": true,
}

var fillerWords = map[string]bool{
	"and": true, "for": true, "of": true, "about": true, "around": true,
}

var wordNumbers = map[string]float64{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// ParseDuration scans a free-form duration phrase in a single pass, summing
// hour and minute units. Unit patterns are additive ("1 hour 30 mins" is
// 1.5h). A bare number below 3 could be hours or minutes and is flagged
// Ambiguous; from 3 to 120 only minutes makes sense, so it resolves
// silently. Returns nil when the phrase is not entirely a duration.
func ParseDuration(text string) *Duration {
	cleaned := strings.ToLower(strings.TrimSpace(text))
	cleaned = strings.NewReplacer(",", " ", "-", " ").Replace(cleaned)
	if cleaned == "" {
		return nil
	}

	var (
		hours, minutes float64
		pending        *float64
		article        bool
		sawUnit        bool
	)
	take := func() float64 {
		v := *pending
		pending = nil
		return v
	}

	for _, token := range strings.Fields(cleaned) {
		token = strings.Trim(token, ".!?")
		if token == "" {
			continue
		}
		switch {
		case token == "a" || token == "an":
			article = true
			continue
		case fillerWords[token]:
			continue
		case token == "half":
			if pending == nil {
				half := 0.5
				pending = &half
			} else {
				*pending += 0.5
			}
		case hourUnits[token]:
			if pending == nil {
				if !article {
					return nil
				}
				one := 1.0
				pending = &one
			}
			hours += take()
			sawUnit = true
		case minuteUnits[token]:
			if pending == nil {
				if !article {
					return nil
				}
				one := 1.0
				pending = &one
			}
			minutes += take()
			sawUnit = true
		default:
			n, ok := wordNumbers[token]
			if !ok {
				var err error
				n, err = strconv.ParseFloat(token, 64)
				if err != nil {
					return nil
				}
			}
			if pending != nil {
				return nil
			}
			pending = &n
		}
		article = false
	}

	if pending != nil {
		// A trailing unit-less number only stands alone; mixed with units
		// the phrase was not fully consumed.
		if sawUnit {
			return nil
		}
		n := take()
		switch {
		case n <= 0:
			return nil
		case n < 3:
			// Both readings are plausible ("2" could be hours or minutes).
			return &Duration{Hours: n, Ambiguous: true}
		case n <= 120:
			// Nobody books 90 hours; read it as minutes.
			return &Duration{Hours: n / 60}
		default:
			return nil
		}
	}

	if !sawUnit {
		return nil
	}
	total := hours + minutes/60
	if total <= 0 {
		return nil
	}
	return &Duration{Hours: total}
}

// FormatDuration renders hours as a phrase the parser maps back to the same
// value, e.g. 1.5 -> "1 hour 30 minutes", 0.5 -> "30 minutes".
func FormatDuration(hours float64) string {
	total := int(math.Round(hours * 60))
	if total <= 0 {
		return "0 minutes"
	}
	h, m := total/60, total%60
	var parts []string
	if h == 1 {
		parts = append(parts, "1 hour")
	} else if h > 1 {
		parts = append(parts, fmt.Sprintf("%d hours", h))
	}
	if m == 1 {
		parts = append(parts, "1 minute")
	} else if m > 1 {
		parts = append(parts, fmt.Sprintf("%d minutes", m))
	}
	return strings.Join(parts, " ")
}
