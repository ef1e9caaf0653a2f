package clinic

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Window is one weekday's opening window. Closing time is exclusive: a
// window ending at 20:00 offers no slot at 20:00.
type Window struct {
	OpenHour    int `json:"open_hour"`
	OpenMinute  int `json:"open_minute"`
	CloseHour   int `json:"close_hour"`
	CloseMinute int `json:"close_minute"`
}

func (w Window) openMinutes() int  { return w.OpenHour*60 + w.OpenMinute }
func (w Window) closeMinutes() int { return w.CloseHour*60 + w.CloseMinute }

func (w Window) Valid() bool {
	return w.openMinutes() < w.closeMinutes()
}

func (w Window) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.OpenHour, w.OpenMinute, w.CloseHour, w.CloseMinute)
}

// Contains reports whether the hour-of-day instant falls inside the window.
func (w Window) Contains(hour, minute int) bool {
	m := hour*60 + minute
	return m >= w.openMinutes() && m < w.closeMinutes()
}

// OnHourGrid reports whether the instant is one of the hour-aligned slot
// starts of the window: open, open+1h, open+2h, ... strictly before close.
func (w Window) OnHourGrid(hour, minute int) bool {
	if !w.Contains(hour, minute) {
		return false
	}
	return (hour*60+minute-w.openMinutes())%60 == 0
}

// WorkingHours maps every weekday to its opening window. It is a total
// mapping; Window never fails for any of the seven weekdays.
type WorkingHours map[time.Weekday]Window

// DefaultWorkingHours is the reference deployment: weekdays 07:30-20:00,
// Saturday 08:00-17:00, Sunday 08:00-15:00.
func DefaultWorkingHours() WorkingHours {
	weekday := Window{7, 30, 20, 0}
	hours := WorkingHours{
		time.Saturday: {8, 0, 17, 0},
		time.Sunday:   {8, 0, 15, 0},
	}
	for d := time.Monday; d <= time.Friday; d++ {
		hours[d] = weekday
	}
	return hours
}

var envNames = map[time.Weekday]string{
	time.Monday:    "CLINIC_HOURS_MON",
	time.Tuesday:   "CLINIC_HOURS_TUE",
	time.Wednesday: "CLINIC_HOURS_WED",
	time.Thursday:  "CLINIC_HOURS_THU",
	time.Friday:    "CLINIC_HOURS_FRI",
	time.Saturday:  "CLINIC_HOURS_SAT",
	time.Sunday:    "CLINIC_HOURS_SUN",
}

// LoadWorkingHours returns the defaults overridden by any CLINIC_HOURS_*
// environment variables ("HH:MM-HH:MM"). A malformed or inverted override
// is an error rather than a silently skipped day.
func LoadWorkingHours() (WorkingHours, error) {
	hours := DefaultWorkingHours()
	for day, name := range envNames {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		window, err := ParseWindow(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		hours[day] = window
	}
	return hours, nil
}

// ParseWindow parses "07:30-20:00" into a Window.
func ParseWindow(s string) (Window, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 {
		return Window{}, fmt.Errorf("invalid window %q, want HH:MM-HH:MM", s)
	}
	openHour, openMinute, err := parseClock(parts[0])
	if err != nil {
		return Window{}, err
	}
	closeHour, closeMinute, err := parseClock(parts[1])
	if err != nil {
		return Window{}, err
	}
	window := Window{openHour, openMinute, closeHour, closeMinute}
	if !window.Valid() {
		return Window{}, fmt.Errorf("window %q closes before it opens", s)
	}
	return window, nil
}

func parseClock(s string) (int, int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}
