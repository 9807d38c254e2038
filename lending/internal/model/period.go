package model

import (
	"strings"
	"time"
)

// Period is a borrow window, inclusive on both ends.
type Period struct {
	From time.Time
	To   time.Time
}

func (p Period) Valid() bool {
	return !p.From.IsZero() && !p.To.IsZero() && !p.To.Before(p.From)
}

// Overlaps reports whether [p.From, p.To] and [o.From, o.To] intersect.
// Touching boundaries count as overlap.
func (p Period) Overlaps(o Period) bool {
	return !p.From.After(o.To) && !o.From.After(p.To)
}

// Date accepts both "2006-01-02" and RFC 3339 in JSON.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return err
		}
	}
	d.Time = t.UTC()
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return d.Time.MarshalJSON()
}
