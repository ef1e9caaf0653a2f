package dashboard

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/cmd/utils"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	db *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{db: db}
}

type DashboardStats struct {
	TotalPatients     int64 `json:"total_patients"`
	TotalDoctors      int64 `json:"total_doctors"`
	TotalAppointments int64 `json:"total_appointments"`
	AppointmentsToday int64 `json:"appointments_today"`
	ScheduledAhead    int64 `json:"scheduled_ahead"`
}

// RegisterRoutes registers dashboard-related routes with Gorilla Mux
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	dashboardRouter := router.PathPrefix("/dashboard").Subrouter()
	dashboardRouter.Handle("/stats", utils.Protect(h.GetDashboardStats)).Methods("GET")
}

func (h *DashboardHandler) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	var stats DashboardStats

	h.db.Model(&models.Patient{}).Count(&stats.TotalPatients)
	h.db.Model(&models.Doctor{}).Count(&stats.TotalDoctors)
	h.db.Model(&models.Appointment{}).Count(&stats.TotalAppointments)

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	h.db.Model(&models.Appointment{}).
		Where("appointment_date >= ? AND appointment_date < ?", dayStart, dayEnd).
		Count(&stats.AppointmentsToday)

	h.db.Model(&models.Appointment{}).
		Where("appointment_date >= ? AND status = ?", now, models.AppointmentScheduled).
		Count(&stats.ScheduledAhead)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
