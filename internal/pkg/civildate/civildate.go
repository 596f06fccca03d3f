// Package civildate bridges civil (calendar) dates and the UTC-midnight
// timestamps the database stores them as.
package civildate

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

const Layout = "2006-01-02"

// ToTime returns midnight UTC of d.
func ToTime(d civil.Date) time.Time {
	return d.In(time.UTC)
}

// FromTime takes the calendar date of t in UTC.
func FromTime(t time.Time) civil.Date {
	return civil.DateOf(t.UTC())
}

func Parse(s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return d, nil
}

// Range lists every date in [from, to]. Empty when from is after to.
func Range(from, to civil.Date) []civil.Date {
	if to.Before(from) {
		return nil
	}
	n := to.DaysSince(from) + 1
	out := make([]civil.Date, 0, n)
	for d := from; !d.After(to); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}

// Today is the current UTC calendar date.
func Today() civil.Date {
	return civil.DateOf(time.Now().UTC())
}

// Weekday is Monday=0 .. Sunday=6.
func Weekday(d civil.Date) int {
	return (int(ToTime(d).Weekday()) + 6) % 7
}

// Quarter is 1..4.
func Quarter(d civil.Date) int {
	return (int(d.Month)-1)/3 + 1
}
