// Package temporal turns free-form temporal phrases ("tomorrow at 3pm",
// "next friday", "Jan 20th") into a calendar date and a 24-hour clock time
// resolved against a caller-supplied reference instant.
package temporal

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// ErrUnresolved is returned when text is present but no date or time could
// be recognised in it.
var ErrUnresolved = errors.New("temporal expression could not be resolved")

// Result holds the normalized fields. Empty strings mean "absent".
type Result struct {
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`
}

func (r Result) IsZero() bool { return r.Date == "" && r.Time == "" }

var (
	isoStampRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[t ]\d{2}:\d{2}`)

	relClockRe = regexp.MustCompile(`\bin (\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten|twelve|half an?) (hours?|hrs?|minutes?|mins?)\b`)

	ampmRe     = regexp.MustCompile(`\b(\d{1,2})(?::([0-5]\d))?\s*(am|pm)\b`)
	noonRe     = regexp.MustCompile(`\b(noon|midday)\b`)
	midnightRe = regexp.MustCompile(`\bmidnight\b`)
	clock24Re  = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	atHourRe   = regexp.MustCompile(`\bat (\d{1,2})\b`)
	dayPartRe  = regexp.MustCompile(`\b(morning|afternoon|evening|tonight)\b`)

	isoDateRe  = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})[-/](\d{1,2})\b`)
	dayAfterRe = regexp.MustCompile(`\bday after tomorrow\b`)
	relWordRe  = regexp.MustCompile(`\b(today|tonight|tomorrow|tmrw|yesterday)\b`)
	relDayRe   = regexp.MustCompile(`\bin (\d+|an?|one|two|three|four|five|six|seven|eight|nine|ten|twelve) (days?|weeks?|months?|years?)\b`)
	nextUnitRe = regexp.MustCompile(`\bnext (week|month|year)\b`)
	weekdayRe  = regexp.MustCompile(`\b(?:(next|this|on|coming)\s+)?(monday|tuesday|wednesday|thursday|friday|saturday|sunday|mon|tues|tue|wed|thurs|thur|thu|fri|sat|sun)\b`)
	monthDayRe = regexp.MustCompile(`\b(` + monthAlt + `)\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthRe = regexp.MustCompile(`\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?(` + monthAlt + `)\.?(?:,?\s+(\d{4}))?\b`)

	whitespaceRe = regexp.MustCompile(`\s+`)
)

const monthAlt = `january|february|march|april|may|june|july|august|september|october|november|december|sept|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec`

var months = map[string]time.Month{
	"january": time.January, "jan": time.January,
	"february": time.February, "feb": time.February,
	"march": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"may": time.May,
	"june": time.June, "jun": time.June,
	"july": time.July, "jul": time.July,
	"august": time.August, "aug": time.August,
	"september": time.September, "sept": time.September, "sep": time.September,
	"october": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"december": time.December, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "twelve": 12,
}

// Default clock times for vague parts of the day, used only when no
// explicit time is given.
var dayParts = map[string]string{
	"morning":   "09:00",
	"afternoon": "15:00",
	"evening":   "18:00",
	"tonight":   "20:00",
}

// Normalize resolves raw against ref. Relative expressions are computed in
// ref's location. Empty input yields an empty Result and no error; input
// with no recognisable date or time yields ErrUnresolved.
func Normalize(raw string, ref time.Time) (Result, error) {
	s := clean(raw)
	if s == "" {
		return Result{}, nil
	}

	if t, ok := parseStamp(s, ref.Location()); ok {
		return Result{Date: t.Format(DateLayout), Time: t.Format(TimeLayout)}, nil
	}
	if m := relClockRe.FindStringSubmatch(s); m != nil {
		t := ref.Add(relClockDuration(m[1], m[2]))
		return Result{Date: t.Format(DateLayout), Time: t.Format(TimeLayout)}, nil
	}

	clock, rest, hasClock := extractClock(s)
	day, hasDay, err := extractDay(rest, ref)
	if err != nil {
		return Result{}, err
	}
	if !hasClock && !hasDay {
		return Result{}, ErrUnresolved
	}
	if !hasDay {
		day = ref
	}
	res := Result{Date: day.Format(DateLayout)}
	if hasClock {
		res.Time = clock
	}
	return res, nil
}

func clean(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("a.m.", "am", "p.m.", "pm").Replace(s)
	return whitespaceRe.ReplaceAllString(s, " ")
}

func parseStamp(s string, loc *time.Location) (time.Time, bool) {
	if !isoStampRe.MatchString(s) {
		return time.Time{}, false
	}
	up := strings.ToUpper(s)
	if t, err := time.Parse(time.RFC3339, up); err == nil {
		return t.In(loc), true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, up, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func relClockDuration(amount, unit string) time.Duration {
	if strings.HasPrefix(amount, "half") {
		return 30 * time.Minute
	}
	n := time.Duration(amountOf(amount))
	if strings.HasPrefix(unit, "h") {
		return n * time.Hour
	}
	return n * time.Minute
}

func amountOf(s string) int {
	if n, ok := numberWords[s]; ok {
		return n
	}
	n, _ := strconv.Atoi(s)
	return n
}

// extractClock finds an explicit time of day and returns it together with
// the input minus the matched span.
func extractClock(s string) (string, string, bool) {
	if m := ampmRe.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		mins := 0
		if m[4] >= 0 {
			mins, _ = strconv.Atoi(s[m[4]:m[5]])
		}
		if h >= 1 && h <= 12 {
			if s[m[6]:m[7]] == "pm" && h != 12 {
				h += 12
			}
			if s[m[6]:m[7]] == "am" && h == 12 {
				h = 0
			}
			return formatClock(h, mins), cut(s, m[0], m[1]), true
		}
	}
	if m := noonRe.FindStringIndex(s); m != nil {
		return "12:00", cut(s, m[0], m[1]), true
	}
	if m := midnightRe.FindStringIndex(s); m != nil {
		return "00:00", cut(s, m[0], m[1]), true
	}
	if m := clock24Re.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		mins, _ := strconv.Atoi(s[m[4]:m[5]])
		return formatClock(h, mins), cut(s, m[0], m[1]), true
	}
	if m := atHourRe.FindStringSubmatchIndex(s); m != nil {
		h, _ := strconv.Atoi(s[m[2]:m[3]])
		if h >= 1 && h < 12 && afterNoon(s) {
			h += 12
		}
		if h <= 23 {
			return formatClock(h, 0), cut(s, m[0], m[1]), true
		}
	}
	if m := dayPartRe.FindStringSubmatch(s); m != nil {
		// "tonight" stays in the text so the day extractor still sees it.
		return dayParts[m[1]], s, true
	}
	return "", s, false
}

// afterNoon reports whether s names a day part that puts a bare hour in the
// second half of the day ("tonight at 9", "evening at 7").
func afterNoon(s string) bool {
	m := dayPartRe.FindStringSubmatch(s)
	return m != nil && m[1] != "morning"
}

func extractDay(s string, ref time.Time) (time.Time, bool, error) {
	today := midnight(ref)

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		t, ok := calendarDate(y, time.Month(mo), d, ref.Location())
		if !ok {
			return time.Time{}, false, ErrUnresolved
		}
		return t, true, nil
	}
	if dayAfterRe.MatchString(s) {
		return today.AddDate(0, 0, 2), true, nil
	}
	if m := relWordRe.FindStringSubmatch(s); m != nil {
		switch m[1] {
		case "tomorrow", "tmrw":
			return today.AddDate(0, 0, 1), true, nil
		case "yesterday":
			return today.AddDate(0, 0, -1), true, nil
		default:
			return today, true, nil
		}
	}
	if m := relDayRe.FindStringSubmatch(s); m != nil {
		n := amountOf(m[1])
		switch {
		case strings.HasPrefix(m[2], "day"):
			return today.AddDate(0, 0, n), true, nil
		case strings.HasPrefix(m[2], "week"):
			return today.AddDate(0, 0, 7*n), true, nil
		case strings.HasPrefix(m[2], "month"):
			return today.AddDate(0, n, 0), true, nil
		default:
			return today.AddDate(n, 0, 0), true, nil
		}
	}
	if m := nextUnitRe.FindStringSubmatch(s); m != nil {
		switch m[1] {
		case "week":
			return today.AddDate(0, 0, 7), true, nil
		case "month":
			return today.AddDate(0, 1, 0), true, nil
		default:
			return today.AddDate(1, 0, 0), true, nil
		}
	}
	if m := monthDayRe.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[2])
		return resolveMonthDay(months[m[1]], d, m[3], ref)
	}
	if m := dayMonthRe.FindStringSubmatch(s); m != nil {
		d, _ := strconv.Atoi(m[1])
		return resolveMonthDay(months[m[2]], d, m[3], ref)
	}
	if m := weekdayRe.FindStringSubmatch(s); m != nil {
		target := weekdays[m[2]]
		days := (int(target) - int(today.Weekday()) + 7) % 7
		if m[1] == "next" && days == 0 {
			days = 7
		}
		return today.AddDate(0, 0, days), true, nil
	}
	return time.Time{}, false, nil
}

// resolveMonthDay picks the explicit year, or the next occurrence of the
// month/day on or after the reference date.
func resolveMonthDay(month time.Month, day int, year string, ref time.Time) (time.Time, bool, error) {
	if year != "" {
		y, _ := strconv.Atoi(year)
		t, ok := calendarDate(y, month, day, ref.Location())
		if !ok {
			return time.Time{}, false, ErrUnresolved
		}
		return t, true, nil
	}
	t, ok := calendarDate(ref.Year(), month, day, ref.Location())
	if !ok {
		// Feb 29 outside a leap year: try the following year before giving up.
		t, ok = calendarDate(ref.Year()+1, month, day, ref.Location())
		if !ok {
			return time.Time{}, false, ErrUnresolved
		}
		return t, true, nil
	}
	if t.Before(midnight(ref)) {
		if next, ok := calendarDate(ref.Year()+1, month, day, ref.Location()); ok {
			return next, true, nil
		}
	}
	return t, true, nil
}

func calendarDate(y int, m time.Month, d int, loc *time.Location) (time.Time, bool) {
	if m < time.January || m > time.December || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if t.Month() != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func formatClock(h, m int) string {
	return time.Date(2000, 1, 1, h, m, 0, 0, time.UTC).Format(TimeLayout)
}

func cut(s string, from, to int) string {
	return strings.TrimSpace(s[:from] + " " + s[to:])
}
