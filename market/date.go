package market

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// DateFormat is the ISO-8601 day layout used for every textual date.
const DateFormat = "2006-01-02"

// permissive read layout, accepts 2025-7-1
const readDateFormat = "2006-1-2"

// Date is a trading day with no time of day. It is comparable and can be
// used as a map key.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date (2024-02-30 becomes 2024-03-01).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	y, m, d := t.Date()
	return Date{y, m, d}
}

// DateOf returns the calendar day of t in its own location.
func DateOf(t time.Time) Date { return NewDate(t.Date()) }

// ParseDate parses "2006-01-02" (single digit month/day accepted).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(readDateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q want format %q: %w", s, DateFormat, err)
	}
	return DateOf(t), nil
}

// MustParseDate is like ParseDate but panics on error.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err.Error())
	}
	return d
}

func (d Date) Time() time.Time       { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }
func (d Date) Year() int             { return d.y }
func (d Date) Month() time.Month     { return d.m }
func (d Date) Day() int              { return d.d }
func (d Date) IsZero() bool          { return d == Date{} }
func (d Date) Before(x Date) bool    { return d.Time().Before(x.Time()) }
func (d Date) After(x Date) bool     { return d.Time().After(x.Time()) }
func (d Date) AddDays(n int) Date    { return NewDate(d.y, d.m, d.d+n) }
func (d Date) Weekday() time.Weekday { return d.Time().Weekday() }

// String formats d as 2006-01-02; the zero Date is "".
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateFormat)
}

// DaysUntil returns the number of calendar days from d to x.
func (d Date) DaysUntil(x Date) int {
	return int(x.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

func (d Date) MarshalYAML() (any, error) { return d.String(), nil }

func (d *Date) UnmarshalYAML(n *yaml.Node) error {
	if n.Value == "" {
		*d = Date{}
		return nil
	}
	v, err := ParseDate(n.Value)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Range is an inclusive span of days.
type Range struct {
	From Date `json:"from" yaml:"from"`
	To   Date `json:"to" yaml:"to"`
}

// Contains reports whether d lies within the range, boundaries included.
func (r Range) Contains(d Date) bool { return !d.Before(r.From) && !d.After(r.To) }

// Validate rejects empty or inverted ranges.
func (r Range) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return fmt.Errorf("range needs both from and to dates")
	}
	if r.To.Before(r.From) {
		return fmt.Errorf("range end %s is before start %s", r.To, r.From)
	}
	return nil
}

func (r Range) String() string { return r.From.String() + ".." + r.To.String() }
