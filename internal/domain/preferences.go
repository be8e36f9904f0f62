package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency controls how often a recipient wants to be notified
type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
)

// QuietHours is a daily window ("22:00" to "08:00") in the recipient timezone
type QuietHours struct {
	Start string `json:"start" bson:"start" yaml:"start"`
	End   string `json:"end" bson:"end" yaml:"end"`
}

// Bounds returns the window as minutes since midnight
func (q QuietHours) Bounds() (start, end int, err error) {
	if start, err = parseClock(q.Start); err != nil {
		return 0, 0, err
	}
	if end, err = parseClock(q.End); err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Contains reports whether t (already in the recipient timezone) falls
// inside the window. Windows with start > end wrap past midnight.
func (q QuietHours) Contains(t time.Time) bool {
	start, end, err := q.Bounds()
	if err != nil || start == end {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if start < end {
		return m >= start && m < end
	}
	return m >= start || m < end
}

func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// Preferences represents recipient delivery preferences
type Preferences struct {
	RecipientID string      `json:"recipient_id,omitempty" bson:"_id" yaml:"-"`
	Channels    []string    `json:"channels" bson:"channels" yaml:"channels"`
	QuietHours  *QuietHours `json:"quiet_hours,omitempty" bson:"quiet_hours,omitempty" yaml:"quiet_hours"`
	Timezone    string      `json:"timezone,omitempty" bson:"timezone,omitempty" yaml:"timezone"`
	Frequency   Frequency   `json:"frequency,omitempty" bson:"frequency,omitempty" yaml:"frequency"`
	Locales     []string    `json:"locales,omitempty" bson:"locales,omitempty" yaml:"locales"`
	UpdatedAt   time.Time   `json:"updated_at" bson:"updated_at" yaml:"-"`
}

// Locale returns the first preferred locale or fallback
func (p Preferences) Locale(fallback string) string {
	for _, l := range p.Locales {
		if l != "" {
			return l
		}
	}
	return fallback
}

// Location resolves the preferred timezone, defaulting to UTC
func (p Preferences) Location() *time.Location {
	return LoadLocation(p.Timezone)
}

// Clone returns a deep copy of the preferences
func (p Preferences) Clone() Preferences {
	out := p
	out.Channels = append([]string(nil), p.Channels...)
	out.Locales = append([]string(nil), p.Locales...)
	if p.QuietHours != nil {
		q := *p.QuietHours
		out.QuietHours = &q
	}
	return out
}

// Recipient is an addressable person in the directory
type Recipient struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Type        RecipientType          `json:"type" yaml:"type"`
	Roles       []string               `json:"roles,omitempty" yaml:"roles"`
	Department  string                 `json:"department,omitempty" yaml:"department"`
	Preferences Preferences            `json:"preferences" yaml:"preferences"`
	Contact     map[ChannelKind]string `json:"contact" yaml:"contact"`
}

// HasRole reports whether the recipient holds role
func (r *Recipient) HasRole(role string) bool {
	for _, have := range r.Roles {
		if have == role {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the recipient
func (r *Recipient) Clone() *Recipient {
	if r == nil {
		return nil
	}
	out := *r
	out.Roles = append([]string(nil), r.Roles...)
	out.Preferences = r.Preferences.Clone()
	if r.Contact != nil {
		out.Contact = make(map[ChannelKind]string, len(r.Contact))
		for k, v := range r.Contact {
			out.Contact[k] = v
		}
	}
	return &out
}

// LoadLocation resolves an IANA timezone name, falling back to UTC
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
