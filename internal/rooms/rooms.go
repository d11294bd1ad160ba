// Package rooms holds the static catalog of bookable rooms and class periods.
package rooms

import (
	"fmt"
	"strings"
)

// Room is a bookable computer room.
type Room struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
}

// Period is a class-time slot label. Periods have an order but no clock times.
type Period struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

var catalog = []Room{
	{Name: "Library: Ground Floor", Capacity: 6},
	{Name: "Library: First Floor", Capacity: 3},
	{Name: "Social Area: First Floor", Capacity: 12},
	{Name: "F16", Capacity: 9},
	{Name: "F19", Capacity: 12},
	{Name: "F22", Capacity: 12},
	{Name: "F23", Capacity: 12},
	{Name: "F30", Capacity: 8},
	{Name: "F59", Capacity: 18},
	{Name: "F62", Capacity: 16},
	{Name: "F76", Capacity: 4},
}

var periods = []Period{
	{Code: "P1", Label: "Period 1"},
	{Code: "P2", Label: "Period 2"},
	{Code: "P3", Label: "Period 3"},
	{Code: "P4", Label: "Period 4"},
	{Code: "P5", Label: "Period 5"},
}

var byName = func() map[string]Room {
	m := make(map[string]Room, len(catalog))
	for _, r := range catalog {
		m[r.Name] = r
	}
	return m
}()

// All returns the rooms in display order. The slice is a copy.
func All() []Room {
	out := make([]Room, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the room with the exact given name.
func Lookup(name string) (Room, bool) {
	r, ok := byName[name]
	return r, ok
}

// Capacity returns the number of computers in the named room, or 0 for an unknown room.
func Capacity(name string) int {
	return byName[name].Capacity
}

// Periods returns the class periods in order. The slice is a copy.
func Periods() []Period {
	out := make([]Period, len(periods))
	copy(out, periods)
	return out
}

// ParsePeriod returns the period for a code such as "P3".
func ParsePeriod(code string) (Period, error) {
	for _, p := range periods {
		if p.Code == code {
			return p, nil
		}
	}
	return Period{}, fmt.Errorf("unknown period %q", code)
}

// Place renders the room the way it reads in a sentence: named areas take
// "the", numbered rooms do not.
func (r Room) Place() string {
	if strings.Contains(r.Name, ":") {
		return "the " + r.Name
	}
	return r.Name
}

// ConfirmationText is the body of the booking confirmation sent to a user.
func ConfirmationText(room, period, date string) string {
	place := room
	if r, ok := Lookup(room); ok {
		place = r.Place()
	}
	return fmt.Sprintf("You have successfully booked a computer in %s, for %s, %s.", place, period, date)
}
