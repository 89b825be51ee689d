// Package calendar converts gateway timestamps written in the Jalali (Solar
// Hijri) calendar to time.Time.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidJalaliDate = errors.New("invalid jalali date")

// Jalali years at which the 33-year leap cycle shifts.
var breaks = [...]int{-61, 9, 38, 199, 426, 686, 756, 818, 1111, 1181, 1210,
	1635, 2060, 2097, 2192, 2262, 2324, 2394, 2456, 3178}

// TehranFallback is used when the zone database has no Asia/Tehran entry.
var TehranFallback = time.FixedZone("IRST", 3*3600+30*60)

// LoadLocation resolves the gateway time zone, falling back to a fixed
// +03:30 offset for Asia/Tehran.
func LoadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc, nil
	}
	if name == "Asia/Tehran" {
		return TehranFallback, nil
	}
	return nil, fmt.Errorf("failed to load time zone %q: %w", name, err)
}

// NormalizeDigits maps Persian (۰-۹) and Arabic-Indic (٠-٩) digits to ASCII
// and drops bidi and zero-width marks.
func NormalizeDigits(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '۰' && r <= '۹':
			return '0' + (r - '۰')
		case r >= '٠' && r <= '٩':
			return '0' + (r - '٠')
		case r == '\u200c', r == '\u200e', r == '\u200f', r == '\u061c':
			return -1
		}
		return r
	}, s)
}

// JalaliToGregorian parses "yyyy/mm/dd[ HH:MM[:SS]]" in loc. Digits may be
// ASCII, Persian or Arabic-Indic and "-" is accepted as the date separator.
// A missing time means midnight.
func JalaliToGregorian(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	fields := strings.Fields(NormalizeDigits(s))
	if len(fields) == 0 || len(fields) > 2 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidJalaliDate, s)
	}

	dateParts := strings.Split(strings.ReplaceAll(fields[0], "-", "/"), "/")
	if len(dateParts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidJalaliDate, s)
	}
	jy, okY := atoi(dateParts[0])
	jm, okM := atoi(dateParts[1])
	jd, okD := atoi(dateParts[2])
	if !okY || !okM || !okD {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidJalaliDate, s)
	}

	hour, minute, second := 0, 0, 0
	if len(fields) == 2 {
		timeParts := strings.Split(fields[1], ":")
		if len(timeParts) < 2 || len(timeParts) > 3 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidJalaliDate, s)
		}
		var okH, okMin, okS bool
		hour, okH = atoi(timeParts[0])
		minute, okMin = atoi(timeParts[1])
		okS = true
		if len(timeParts) == 3 {
			second, okS = atoi(timeParts[2])
		}
		if !okH || !okMin || !okS || hour > 23 || minute > 59 || second > 59 {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidJalaliDate, s)
		}
	}

	if jy < 1 || jy >= breaks[len(breaks)-1] || jm < 1 || jm > 12 || jd < 1 || jd > MonthLength(jy, jm) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidJalaliDate, s)
	}

	gy, march, _ := jalCal(jy)
	dayOfYear := (jm-1)*31 - (jm/7)*(jm-7) + jd - 1

	// time.Date normalizes the day overflow past March.
	return time.Date(gy, time.March, march+dayOfYear, hour, minute, second, 0, loc), nil
}

// IsLeapYear reports whether the Jalali year jy has 366 days.
func IsLeapYear(jy int) bool {
	_, _, leap := jalCal(jy)
	return leap == 0
}

// MonthLength is the number of days in Jalali month jm of year jy.
func MonthLength(jy, jm int) int {
	switch {
	case jm <= 6:
		return 31
	case jm <= 11:
		return 30
	case IsLeapYear(jy):
		return 30
	default:
		return 29
	}
}

// jalCal returns the Gregorian year in which jy starts, the March day of
// 1 Farvardin and the number of years since the last leap year (0 for leap).
// jy must lie inside the breaks table.
func jalCal(jy int) (gy, march, leap int) {
	gy = jy + 621
	leapJ := -14
	jp := breaks[0]

	var jump int
	for i := 1; i < len(breaks); i++ {
		jm := breaks[i]
		jump = jm - jp
		if jy < jm {
			break
		}
		leapJ += jump/33*8 + jump%33/4
		jp = jm
	}
	n := jy - jp

	leapJ += n/33*8 + (n%33+3)/4
	if jump%33 == 4 && jump-n == 4 {
		leapJ++
	}

	leapG := gy/4 - (gy/100+1)*3/4 - 150
	march = 20 + leapJ - leapG

	if jump-n < 6 {
		n = n - jump + (jump+4)/33*33
	}
	leap = ((n+1)%33 - 1) % 4
	if leap == -1 {
		leap = 4
	}
	return gy, march, leap
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
