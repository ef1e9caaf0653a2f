package schedule

import (
	"log"
	"time"

	"github.com/razumed/clinic-server/cmd/models"
	"gorm.io/gorm"
)

// Store exposes the two reads the slot generator needs. Both fail soft:
// on a storage fault implementations log and return an empty result, so
// an outage advertises no slots rather than wrong slots.
type Store interface {
	// WorkingWeekdays returns the distinct weekdays the doctor is
	// scheduled to work. Empty for an unknown doctor or one with no
	// schedule rows.
	WorkingWeekdays(doctorID uint) []time.Weekday

	// BookedTimes returns the "15:04" time-of-day of every scheduled
	// appointment for the doctor on the given calendar date. Cancelled
	// and completed rows do not block a slot.
	BookedTimes(doctorID uint, date time.Time) map[string]bool
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) WorkingWeekdays(doctorID uint) []time.Weekday {
	var raw []int
	err := s.db.Model(&models.DoctorSchedule{}).
		Where("doctor_id = ?", doctorID).
		Distinct().
		Order("weekday").
		Pluck("weekday", &raw).Error
	if err != nil {
		log.Printf("Error loading schedule for doctor %d: %v", doctorID, err)
		return nil
	}

	weekdays := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		weekdays = append(weekdays, time.Weekday(d))
	}
	return weekdays
}

func (s *gormStore) BookedTimes(doctorID uint, date time.Time) map[string]bool {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	var appointments []models.Appointment
	err := s.db.
		Where("doctor_id = ? AND status = ? AND appointment_date >= ? AND appointment_date < ?",
			doctorID, models.AppointmentScheduled, dayStart, dayEnd).
		Find(&appointments).Error
	if err != nil {
		log.Printf("Error loading appointments for doctor %d on %s: %v",
			doctorID, dayStart.Format("2006-01-02"), err)
		return map[string]bool{}
	}

	booked := make(map[string]bool, len(appointments))
	for _, appointment := range appointments {
		booked[appointment.AppointmentDate.Format("15:04")] = true
	}
	return booked
}
