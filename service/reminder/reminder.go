package reminder

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/razumed/clinic-server/cmd/models"
	"gorm.io/gorm"
)

// Notifier delivers one reminder to all of a patient's devices.
// Satisfied by the notification handler.
type Notifier interface {
	SendToPatient(patientID uint, title, body string, data map[string]interface{}) error
}

// Reminder runs the daily loop that pings every patient with a visit
// scheduled for tomorrow.
type Reminder struct {
	db       *gorm.DB
	notifier Notifier
	interval time.Duration
	now      func() time.Time
}

func New(db *gorm.DB, notifier Notifier) *Reminder {
	return &Reminder{
		db:       db,
		notifier: notifier,
		interval: 24 * time.Hour,
		now:      time.Now,
	}
}

// Run blocks until the context is cancelled. One pass fires immediately
// so a restarted server does not skip a day.
func (r *Reminder) Run(ctx context.Context) {
	r.RemindTomorrow()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reminder loop stopped")
			return
		case <-ticker.C:
			r.RemindTomorrow()
		}
	}
}

// RemindTomorrow notifies every patient with a scheduled appointment
// falling on the next calendar day. Delivery failures are logged per
// patient; one bad token never stops the rest of the batch.
func (r *Reminder) RemindTomorrow() {
	now := r.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var appointments []models.Appointment
	err := r.db.Where("appointment_date >= ? AND appointment_date < ? AND status = ?",
		dayStart, dayEnd, models.AppointmentScheduled).
		Preload("Patient").
		Preload("Doctor").
		Preload("Doctor.Specialization").
		Find(&appointments).Error
	if err != nil {
		log.Printf("Reminder query failed: %v", err)
		return
	}

	for _, appointment := range appointments {
		if appointment.Patient == nil || appointment.Doctor == nil {
			continue
		}

		body := fmt.Sprintf("%s, напоминаем: завтра в %s у вас приём у врача %s %s",
			appointment.Patient.FirstName,
			appointment.AppointmentDate.Format("15:04"),
			appointment.Doctor.LastName,
			appointment.Doctor.FirstName)
		if appointment.Doctor.Specialization != nil {
			body += fmt.Sprintf(" (%s)", appointment.Doctor.Specialization.Name)
		}

		data := map[string]interface{}{
			"appointment_id": appointment.ID,
			"date":           appointment.AppointmentDate.Format("2006-01-02"),
			"time":           appointment.AppointmentDate.Format("15:04"),
		}

		if err := r.notifier.SendToPatient(appointment.PatientID, "Напоминание о приёме", body, data); err != nil {
			log.Printf("Reminder delivery failed for patient %d: %v", appointment.PatientID, err)
		}
	}

	log.Printf("Reminder pass complete: %d appointments for %s", len(appointments), dayStart.Format("2006-01-02"))
}
