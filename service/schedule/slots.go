package schedule

import (
	"time"

	"github.com/razumed/clinic-server/service/clinic"
)

// Generator derives offerable slots from a doctor's working weekdays, the
// clinic windows and the already-booked instants. Slots are never stored;
// they are recomputed from appointment state on every call, so a slot
// offered to a caller can be gone by the time they book it. The unique
// index behind the booking transaction is what resolves that race.
type Generator struct {
	store Store
	hours clinic.WorkingHours
	now   func() time.Time
}

func NewGenerator(store Store, hours clinic.WorkingHours) *Generator {
	return &Generator{
		store: store,
		hours: hours,
		now:   time.Now,
	}
}

// AvailableDates walks horizonDays calendar days starting today and keeps
// the dates whose weekday the doctor works, in chronological order.
func (g *Generator) AvailableDates(doctorID uint, horizonDays int) []time.Time {
	weekdays := g.store.WorkingWeekdays(doctorID)
	if len(weekdays) == 0 {
		return nil
	}

	worked := make(map[time.Weekday]bool, len(weekdays))
	for _, d := range weekdays {
		worked[d] = true
	}

	now := g.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var dates []time.Time
	for day := 0; day < horizonDays; day++ {
		date := today.AddDate(0, 0, day)
		if worked[date.Weekday()] {
			dates = append(dates, date)
		}
	}
	return dates
}

// AvailableTimes enumerates the hour-aligned instants of the date's
// window, stepping one hour from the opening time and stopping strictly
// before closing, minus the instants already booked. A window ending on a
// partial hour truncates; the trailing fraction is never offered.
func (g *Generator) AvailableTimes(doctorID uint, date time.Time) []time.Time {
	window, ok := g.hours[date.Weekday()]
	if !ok {
		return nil
	}

	booked := g.store.BookedTimes(doctorID, date)

	start := time.Date(date.Year(), date.Month(), date.Day(),
		window.OpenHour, window.OpenMinute, 0, 0, date.Location())
	end := time.Date(date.Year(), date.Month(), date.Day(),
		window.CloseHour, window.CloseMinute, 0, 0, date.Location())

	var times []time.Time
	for t := start; t.Before(end); t = t.Add(time.Hour) {
		if booked[t.Format("15:04")] {
			continue
		}
		times = append(times, t)
	}
	return times
}
