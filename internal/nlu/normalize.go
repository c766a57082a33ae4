package nlu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRE   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	clock24RE   = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
	clockAmPmRE = regexp.MustCompile(`(?i)^(\d{1,2})(?::([0-5]\d))?\s*(am|pm|a\.m\.|p\.m\.)$`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

var dayparts = map[string]string{
	"morning":   "09:00",
	"noon":      "12:00",
	"midday":    "12:00",
	"afternoon": "14:00",
	"evening":   "18:00",
	"night":     "20:00",
}

// NormalizeDate resolves a date mention to YYYY-MM-DD against now in the
// vendor's timezone. Relative words resolve forward: a weekday name means the
// next occurrence, counting today. Returns false when the mention is not a
// recognizable date.
func NormalizeDate(raw string, now time.Time) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}
	if isoDateRE.MatchString(s) {
		if _, err := time.Parse("2006-01-02", s); err == nil {
			return s, true
		}
		return "", false
	}

	switch s {
	case "today", "tonight":
		return now.Format("2006-01-02"), true
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format("2006-01-02"), true
	case "day after tomorrow":
		return now.AddDate(0, 0, 2).Format("2006-01-02"), true
	}

	name := strings.TrimPrefix(s, "next ")
	if wd, ok := weekdays[name]; ok {
		offset := (int(wd) - int(now.Weekday()) + 7) % 7
		if strings.HasPrefix(s, "next ") && offset == 0 {
			offset = 7
		}
		return now.AddDate(0, 0, offset).Format("2006-01-02"), true
	}

	return "", false
}

// NormalizeTime resolves a time mention to 24h HH:MM. Dayparts map to fixed
// anchors (morning 09:00, evening 18:00); clock times accept am/pm suffixes.
func NormalizeTime(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	if anchor, ok := dayparts[s]; ok {
		return anchor, true
	}

	if m := clock24RE.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", hour, m[2]), true
	}

	if m := clockAmPmRE.FindStringSubmatch(s); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour < 1 || hour > 12 {
			return "", false
		}
		minute := "00"
		if m[2] != "" {
			minute = m[2]
		}
		meridiem := strings.ReplaceAll(strings.ToLower(m[3]), ".", "")
		if meridiem == "pm" && hour != 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
		return fmt.Sprintf("%02d:%s", hour, minute), true
	}

	return "", false
}

// NormalizeEntities applies deterministic date/time resolution on top of
// whatever the model produced, so relative mentions never depend on the
// model's notion of "now". Unresolvable values are dropped.
func NormalizeEntities(e Entities, now time.Time) Entities {
	if e.Date != "" {
		if normalized, ok := NormalizeDate(e.Date, now); ok {
			e.Date = normalized
		} else {
			e.Date = ""
		}
	}
	if e.Time != "" {
		if normalized, ok := NormalizeTime(e.Time); ok {
			e.Time = normalized
		} else {
			e.Time = ""
		}
	}
	return e
}
