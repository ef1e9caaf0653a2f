package appointment

import (
	"errors"
	"strings"
	"time"

	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/service/clinic"
	"github.com/razumed/clinic-server/service/schedule"
	"gorm.io/gorm"
)

// Typed booking outcomes. Reads in this package fail soft; Book fails
// hard with one of these so a lost race is never silently swallowed.
var (
	ErrUnknownPatient     = errors.New("unknown patient")
	ErrSlotTaken          = errors.New("slot already taken")
	ErrInvalidSelection   = errors.New("invalid selection")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// BookingService commits bookings. Listing slots and booking one are two
// separate operations with no atomicity between them; the partial unique
// index on (doctor_id, appointment_date) over scheduled rows is the only
// mutual-exclusion mechanism, and the loser of a race gets ErrSlotTaken.
type BookingService struct {
	db    *gorm.DB
	store schedule.Store
	hours clinic.WorkingHours
}

func NewBookingService(db *gorm.DB, hours clinic.WorkingHours) *BookingService {
	return &BookingService{
		db:    db,
		store: schedule.NewStore(db),
		hours: hours,
	}
}

// Book resolves the caller's chat handle to a patient and commits the
// (doctor, date, time) selection as a scheduled appointment.
func (s *BookingService) Book(externalID string, doctorID uint, dateStr, timeStr string) (*models.Appointment, error) {
	var patient models.Patient
	if err := s.db.Where("external_id = ?", externalID).First(&patient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownPatient
		}
		return nil, ErrStorageUnavailable
	}
	return s.BookForPatient(patient.ID, doctorID, dateStr, timeStr)
}

// BookForPatient is the entry point for callers that already hold an
// authenticated patient ID (the HTTP API).
func (s *BookingService) BookForPatient(patientID, doctorID uint, dateStr, timeStr string) (*models.Appointment, error) {
	instant, err := s.resolveSlot(doctorID, dateStr, timeStr)
	if err != nil {
		return nil, err
	}

	appointment := models.Appointment{
		PatientID:       patientID,
		DoctorID:        doctorID,
		AppointmentDate: instant,
		Status:          models.AppointmentScheduled,
	}

	// Single atomic insert. The unique index rejects a second scheduled
	// row for the same doctor+instant; either the row is fully created
	// or nothing is.
	if err := s.db.Create(&appointment).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return nil, ErrSlotTaken
		}
		return nil, ErrStorageUnavailable
	}
	return &appointment, nil
}

// resolveSlot combines date and time into one instant and rejects
// selections that no computable slot could ever produce: malformed
// input, a weekday the doctor does not work, or an instant off the
// weekday's hour grid.
func (s *BookingService) resolveSlot(doctorID uint, dateStr, timeStr string) (time.Time, error) {
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidSelection
	}
	clock, err := time.Parse("15:04", timeStr)
	if err != nil {
		return time.Time{}, ErrInvalidSelection
	}

	worked := false
	for _, d := range s.store.WorkingWeekdays(doctorID) {
		if d == date.Weekday() {
			worked = true
			break
		}
	}
	if !worked {
		return time.Time{}, ErrInvalidSelection
	}

	window, ok := s.hours[date.Weekday()]
	if !ok || !window.OnHourGrid(clock.Hour(), clock.Minute()) {
		return time.Time{}, ErrInvalidSelection
	}

	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.Local), nil
}
