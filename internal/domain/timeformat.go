package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
)

// timeLayout is a compiled date format. Formats containing '%' use strptime
// directives; anything else is handed to time.Parse as a Go layout.
//
// timefmt reads every numeric field at its full width, so "2023615" never
// matches "%Y%m%d". A pattern built from the directives splits the value
// first, trying the longest field that still lets the rest of the value
// match. The fields are then normalized and parsed with timefmt.
type timeLayout struct {
	raw        string
	goLayout   string
	pattern    *regexp.Regexp
	directives []byte
}

// normalizedFormat is the timefmt format of the string built from the
// split fields.
const normalizedFormat = "%Y-%m-%dT%H:%M:%S.%f%z"

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// directivePatterns lists the accepted text per directive. Alternatives are
// ordered longest first.
var directivePatterns = map[byte]string{
	'Y': `\d\d\d\d`,
	'y': `\d\d`,
	'm': `1[0-2]|0[1-9]|[1-9]`,
	'd': `3[01]|[12]\d|0[1-9]|[1-9]| [1-9]`,
	'j': `36[0-6]|3[0-5]\d|[12]\d\d|0[1-9]\d|00[1-9]|[1-9]\d|0[1-9]|[1-9]`,
	'H': `2[0-3]|[01]\d|\d`,
	'I': `1[0-2]|0[1-9]|[1-9]`,
	'M': `[0-5]\d|\d`,
	'S': `6[01]|[0-5]\d|\d`,
	'f': `\d{1,6}`,
	'p': `(?i:am|pm)`,
	'b': `(?i:` + abbreviations(monthNames) + `)`,
	'B': `(?i:` + strings.Join(monthNames, "|") + `)`,
	'a': `(?i:` + abbreviations(weekdayNames) + `)`,
	'A': `(?i:` + strings.Join(weekdayNames, "|") + `)`,
	'z': `[+-]\d\d:?[0-5]\d|Z`,
	'Z': `(?i:utc|gmt|z)`,
}

func abbreviations(names []string) string {
	short := make([]string, len(names))
	for i, name := range names {
		short[i] = name[:3]
	}
	return strings.Join(short, "|")
}

// compileTimeFormat validates format and prepares it for parsing.
func compileTimeFormat(format string) (timeLayout, error) {
	if format == "" {
		return timeLayout{}, errors.New("format is empty")
	}
	if !strings.Contains(format, "%") {
		if err := checkGoLayout(format); err != nil {
			return timeLayout{}, err
		}
		return timeLayout{raw: format, goLayout: format}, nil
	}

	l := timeLayout{raw: format}
	var expr, lit strings.Builder
	flush := func() {
		expr.WriteString(regexp.QuoteMeta(lit.String()))
		lit.Reset()
	}

	expr.WriteString("^")
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			lit.WriteByte(format[i])
			continue
		}
		if i+1 >= len(format) {
			return timeLayout{}, fmt.Errorf("format %q ends with a bare '%%'", format)
		}
		i++
		d := format[i]
		if d == '%' {
			lit.WriteByte('%')
			continue
		}
		p, ok := directivePatterns[d]
		if !ok {
			return timeLayout{}, fmt.Errorf("unsupported directive %%%c in format %q", d, format)
		}
		flush()
		expr.WriteString("(" + p + ")")
		l.directives = append(l.directives, d)
	}
	flush()
	expr.WriteString("$")

	pattern, err := regexp.Compile(expr.String())
	if err != nil {
		return timeLayout{}, fmt.Errorf("compiling format %q: %w", format, err)
	}
	l.pattern = pattern

	return l, nil
}

// checkGoLayout rejects layouts without any reference element, such as
// "YYYYMMDD", which would fail on every key.
func checkGoLayout(layout string) error {
	sample := time.Date(2009, time.November, 10, 23, 17, 42, 0, time.UTC).Format(layout)
	if sample == layout {
		return fmt.Errorf("layout %q contains no date or time elements", layout)
	}
	if _, err := time.Parse(layout, sample); err != nil {
		return fmt.Errorf("layout %q cannot parse its own output: %w", layout, err)
	}
	return nil
}

// parse parses value with the compiled layout. Times without an explicit
// zone are UTC.
func (l timeLayout) parse(value string) (time.Time, error) {
	if l.goLayout != "" {
		return time.Parse(l.goLayout, value)
	}

	m := l.pattern.FindStringSubmatch(value)
	if m == nil {
		return time.Time{}, fmt.Errorf("%q does not match format %q", value, l.raw)
	}

	f, err := splitFields(l.directives, m[1:])
	if err != nil {
		return time.Time{}, err
	}

	t, err := timefmt.Parse(f.normalized(), normalizedFormat)
	if err != nil {
		return time.Time{}, err
	}
	if t.Year() != f.year || int(t.Month()) != f.month || t.Day() != f.day {
		return time.Time{}, fmt.Errorf("day %d out of range for %04d-%02d", f.day, f.year, f.month)
	}

	return t.UTC(), nil
}

// timeFields holds the values matched by a strptime pattern. Missing fields
// default to 1900-01-01T00:00:00 UTC.
type timeFields struct {
	year, month, day     int
	hour, minute, second int
	micro                int
	zone                 string
}

func splitFields(directives []byte, values []string) (timeFields, error) {
	f := timeFields{year: 1900, month: 1, day: 1, zone: "+0000"}
	yday := 0
	hour12, pm, hasPM, twelve := 0, false, false, false

	for i, d := range directives {
		v := values[i]
		n, _ := strconv.Atoi(strings.TrimSpace(v))

		switch d {
		case 'Y':
			f.year = n
		case 'y':
			if n < 69 {
				f.year = 2000 + n
			} else {
				f.year = 1900 + n
			}
		case 'm':
			f.month = n
		case 'd':
			f.day = n
		case 'j':
			yday = n
		case 'H':
			f.hour = n
		case 'I':
			hour12, twelve = n, true
		case 'M':
			f.minute = n
		case 'S':
			if n > 59 {
				return timeFields{}, errors.New("second must be in 0..59")
			}
			f.second = n
		case 'f':
			f.micro, _ = strconv.Atoi(v + strings.Repeat("0", 6-len(v)))
		case 'p':
			hasPM, pm = true, strings.EqualFold(v, "pm")
		case 'b', 'B':
			f.month = monthIndex(v)
		case 'z':
			if v != "Z" {
				f.zone = strings.ReplaceAll(v, ":", "")
			}
		}
	}

	if twelve {
		f.hour = hour12 % 12
		if hasPM && pm {
			f.hour += 12
		}
	}

	if yday > 0 {
		t := time.Date(f.year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, yday-1)
		if t.Year() != f.year {
			return timeFields{}, fmt.Errorf("day of year %d out of range for %d", yday, f.year)
		}
		f.month, f.day = int(t.Month()), t.Day()
	}

	return f, nil
}

func (f timeFields) normalized() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.%06d%s",
		f.year, f.month, f.day, f.hour, f.minute, f.second, f.micro, f.zone)
}

func monthIndex(name string) int {
	lower := strings.ToLower(name)
	for i, month := range monthNames {
		if lower == month || lower == month[:3] {
			return i + 1
		}
	}
	return 0
}
