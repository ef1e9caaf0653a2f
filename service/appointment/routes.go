package appointment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/cmd/utils"
	"github.com/razumed/clinic-server/service/clinic"
	"gorm.io/gorm"
)

type AppointmentHandler struct {
    db      *gorm.DB
    booking *BookingService
}

func NewAppointmentHandler(db *gorm.DB, hours clinic.WorkingHours) *AppointmentHandler {
    return &AppointmentHandler{
        db:      db,
        booking: NewBookingService(db, hours),
    }
}

// Booking exposes the booking service for in-process callers (chat gateway).
func (h *AppointmentHandler) Booking() *BookingService {
    return h.booking
}


func (h *AppointmentHandler) RegisterRoutes(router *mux.Router) {
    router.Handle("/appointments/book", utils.Protect(h.BookAppointment)).Methods("POST")
    router.HandleFunc("/appointments", h.GetAllAppointments).Methods("GET")
    router.HandleFunc("/appointments/{id:[0-9]+}", h.GetAppointment).Methods("GET")
    router.HandleFunc("/appointments/doctor/{doctorId}", h.GetDoctorAppointments).Methods("GET")
    router.Handle("/appointments/me", utils.Protect(h.GetMyAppointments)).Methods("GET")
}




func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    var bookingRequest struct {
        DoctorID uint   `json:"doctor_id"`
        Date     string `json:"date"`
        Time     string `json:"time"`
    }

    if err := json.NewDecoder(r.Body).Decode(&bookingRequest); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }

    appointment, err := h.booking.BookForPatient(patientID, bookingRequest.DoctorID, bookingRequest.Date, bookingRequest.Time)
    if err != nil {
        writeBookingError(w, err)
        return
    }

    h.db.Preload("Doctor").Preload("Doctor.Specialization").First(appointment, appointment.ID)

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(appointment)
}

// writeBookingError maps each typed booking failure to a status code and
// a concrete next action, so the caller never hits a dead end.
func writeBookingError(w http.ResponseWriter, err error) {
    w.Header().Set("Content-Type", "application/json")
    switch {
    case errors.Is(err, ErrInvalidSelection):
        w.WriteHeader(http.StatusBadRequest)
        json.NewEncoder(w).Encode(map[string]string{
            "error": "invalid_selection",
            "next":  "Pick a date and time from the offered slots and try again",
        })
    case errors.Is(err, ErrUnknownPatient):
        w.WriteHeader(http.StatusNotFound)
        json.NewEncoder(w).Encode(map[string]string{
            "error": "unknown_patient",
            "next":  "Register before booking an appointment",
        })
    case errors.Is(err, ErrSlotTaken):
        w.WriteHeader(http.StatusConflict)
        json.NewEncoder(w).Encode(map[string]string{
            "error": "slot_already_taken",
            "next":  "That time was just booked; re-query available times and pick another slot",
        })
    default:
        w.WriteHeader(http.StatusServiceUnavailable)
        json.NewEncoder(w).Encode(map[string]string{
            "error": "storage_unavailable",
            "next":  "Please try again in a few minutes or contact support",
        })
    }
}


func (h *AppointmentHandler) GetAllAppointments(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 100

    query := h.db.Model(&models.Appointment{}).Preload("Patient").Preload("Doctor")

    // Apply filters
    if status := r.URL.Query().Get("status"); status != "" {
        query = query.Where("status = ?", status)
    }
    if date := r.URL.Query().Get("date"); date != "" {
        query = query.Where("DATE(appointment_date) = ?", date)
    }

    var total int64
    query.Count(&total)

    var appointments []models.Appointment
    if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
        Order("appointment_date DESC").Find(&appointments).Error; err != nil {
        http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "appointments": appointments,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}

// GetAppointment retrieves a specific appointment by ID
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    appointmentID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid appointment ID", http.StatusBadRequest)
        return
    }

    var appointment models.Appointment
    if err := h.db.Preload("Patient").Preload("Doctor").Preload("Doctor.Specialization").
        First(&appointment, appointmentID).Error; err != nil {
        http.Error(w, "Appointment not found", http.StatusNotFound)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(appointment)
}

// GetMyAppointments retrieves the authenticated patient's appointments
func (h *AppointmentHandler) GetMyAppointments(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 100

    query := h.db.Model(&models.Appointment{}).Where("patient_id = ?", patientID).
        Preload("Doctor").Preload("Doctor.Specialization")

    var total int64
    query.Count(&total)

    var appointments []models.Appointment
    if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
        Order("appointment_date DESC").Find(&appointments).Error; err != nil {
        http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "appointments": appointments,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}

// GetDoctorAppointments retrieves all appointments for a specific doctor
func (h *AppointmentHandler) GetDoctorAppointments(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["doctorId"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 100

    query := h.db.Model(&models.Appointment{}).Where("doctor_id = ?", doctorID).
        Preload("Patient")

    var total int64
    query.Count(&total)

    var appointments []models.Appointment
    if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
        Order("appointment_date DESC").Find(&appointments).Error; err != nil {
        http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "appointments": appointments,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}
