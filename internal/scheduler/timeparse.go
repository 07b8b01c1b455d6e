package scheduler

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const defaultHour = 9

var (
	clockPattern    = regexp.MustCompile(`\b(\d{1,2})(?::([0-5]\d))?\s*(a\.?m\.?|p\.?m\.?)(?:\s|$|[,.!?])`)
	twentyFourClock = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	namedTime       = regexp.MustCompile(`\b(noon|midday|morning|afternoon|evening)\b`)
	fillerWords     = regexp.MustCompile(`\b(at|on|for|around|about|please|the|in|this|coming)\b`)
	ordinalSuffix   = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)\b`)
)

var namedHours = map[string]int{
	"noon":      12,
	"midday":    12,
	"morning":   9,
	"afternoon": 14,
	"evening":   17,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseTimeExpression resolves a free-text time such as "tomorrow at 3pm",
// "next friday 10:30 am", "noon" or "2026-11-03 14:00" against now in loc.
// A bare day resolves to 9:00 ("tonight" to the evening hour); a bare time
// resolves to its next occurrence. A date without a year resolves to its next
// occurrence on or after now.
func ParseTimeExpression(text string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return time.Time{}, ErrUnrecognizedTime
	}

	hour, minute, rest, hasClock := extractClock(s)
	rest = strings.Join(strings.Fields(fillerWords.ReplaceAllString(rest, " ")), " ")
	rest = strings.Trim(rest, " ,.!?")

	if rest == "" {
		if !hasClock {
			return time.Time{}, ErrUnrecognizedTime
		}
		t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, loc)
		if !t.After(now) {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	}

	if day, ok := relativeDay(rest, now); ok {
		if !hasClock {
			hour, minute = defaultHour, 0
			if rest == "tonight" {
				hour = namedHours["evening"]
			}
		}
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), nil
	}

	parsed, err := dateparse.ParseIn(ordinalSuffix.ReplaceAllString(rest, "$1"), loc)
	if err != nil {
		return time.Time{}, ErrUnrecognizedTime
	}
	if !hasClock {
		hour, minute = parsed.Hour(), parsed.Minute()
		if hour == 0 && minute == 0 {
			hour = defaultHour
		}
	}
	// dateparse leaves the year at zero for "nov 3" or "12/1".
	if parsed.Year() == 0 {
		t := time.Date(now.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, loc)
		if t.Before(now) {
			t = t.AddDate(1, 0, 0)
		}
		return t, nil
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), hour, minute, 0, 0, loc), nil
}

// extractClock finds a time of day and returns the text with it removed.
func extractClock(s string) (hour, minute int, rest string, ok bool) {
	if m := clockPattern.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		if m[4] >= 0 {
			minute, _ = strconv.Atoi(s[m[4]:m[5]])
		}
		if h < 1 || h > 12 {
			return 0, 0, s, false
		}
		meridiem := strings.ReplaceAll(s[m[6]:m[7]], ".", "")
		switch {
		case meridiem == "pm" && h != 12:
			h += 12
		case meridiem == "am" && h == 12:
			h = 0
		}
		return h, minute, s[:m[0]] + " " + s[m[1]:], true
	}
	if m := twentyFourClock.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		minute, _ = strconv.Atoi(s[m[4]:m[5]])
		return h, minute, s[:m[0]] + " " + s[m[1]:], true
	}
	if m := namedTime.FindStringSubmatchIndex(s); m != nil {
		return namedHours[s[m[2]:m[3]]], 0, s[:m[0]] + " " + s[m[1]:], true
	}
	return 0, 0, s, false
}

func relativeDay(rest string, now time.Time) (time.Time, bool) {
	switch rest {
	case "today", "tonight":
		return now, true
	case "tomorrow":
		return now.AddDate(0, 0, 1), true
	case "day after tomorrow":
		return now.AddDate(0, 0, 2), true
	}

	rest = strings.TrimPrefix(rest, "next ")
	wd, ok := weekdays[rest]
	if !ok {
		return time.Time{}, false
	}
	delta := (int(wd) - int(now.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return now.AddDate(0, 0, delta), true
}
