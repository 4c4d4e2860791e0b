package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Day is a teaching day of the week. The teaching week runs Saturday to Thursday.
type Day int

const (
	DaySaturday Day = iota + 1
	DaySunday
	DayMonday
	DayTuesday
	DayWednesday
	DayThursday
)

// DaysPerWeek is the number of teaching days.
const DaysPerWeek = 6

// Slot bounds within a teaching day.
const (
	MinSlot = 1
	MaxSlot = 4
)

var dayTokens = map[Day]string{
	DaySaturday:  "SAT",
	DaySunday:    "SUN",
	DayMonday:    "MON",
	DayTuesday:   "TUE",
	DayWednesday: "WED",
	DayThursday:  "THU",
}

var dayNames = map[Day]string{
	DaySaturday:  "Saturday",
	DaySunday:    "Sunday",
	DayMonday:    "Monday",
	DayTuesday:   "Tuesday",
	DayWednesday: "Wednesday",
	DayThursday:  "Thursday",
}

var dayLookup = func() map[string]Day {
	lookup := make(map[string]Day, len(dayTokens)*2)
	for day, token := range dayTokens {
		lookup[token] = day
		lookup[strings.ToUpper(dayNames[day])] = day
	}
	return lookup
}()

// AllDays lists teaching days in week order.
func AllDays() []Day {
	return []Day{DaySaturday, DaySunday, DayMonday, DayTuesday, DayWednesday, DayThursday}
}

// ParseDay resolves a day token (SAT..THU) or full day name, case-insensitively.
func ParseDay(raw string) (Day, bool) {
	day, ok := dayLookup[strings.ToUpper(strings.TrimSpace(raw))]
	return day, ok
}

// Valid reports whether d is a teaching day.
func (d Day) Valid() bool {
	return d >= DaySaturday && d <= DayThursday
}

// String returns the short token, e.g. SAT.
func (d Day) String() string {
	if token, ok := dayTokens[d]; ok {
		return token
	}
	return fmt.Sprintf("Day(%d)", int(d))
}

// Name returns the English day name.
func (d Day) Name() string {
	return dayNames[d]
}

// Weekday maps the teaching day onto time.Weekday.
func (d Day) Weekday() time.Weekday {
	switch d {
	case DaySaturday:
		return time.Saturday
	case DaySunday:
		return time.Sunday
	case DayMonday:
		return time.Monday
	case DayTuesday:
		return time.Tuesday
	case DayWednesday:
		return time.Wednesday
	default:
		return time.Thursday
	}
}

// MarshalJSON encodes the day as its token.
func (d Day) MarshalJSON() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes a day token or name.
func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	day, ok := ParseDay(raw)
	if !ok {
		return fmt.Errorf("invalid day %q", raw)
	}
	*d = day
	return nil
}

// Scan implements sql.Scanner for day columns stored as tokens.
func (d *Day) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		*d = 0
		return nil
	default:
		return fmt.Errorf("unsupported day column type %T", src)
	}
	day, ok := ParseDay(raw)
	if !ok {
		// keep unknown values detectable downstream instead of failing the whole scan
		*d = 0
		return nil
	}
	*d = day
	return nil
}

// Value implements driver.Valuer.
func (d Day) Value() (driver.Value, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid day %d", int(d))
	}
	return d.String(), nil
}
