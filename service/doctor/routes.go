package doctor

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/cmd/utils"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/doctors", h.GetDoctors).Methods("GET")
	router.HandleFunc("/doctors/{id:[0-9]+}", h.GetDoctor).Methods("GET")
	router.HandleFunc("/doctors/specialization/{specialization}", h.GetDoctorsBySpecialization).Methods("GET")
	router.HandleFunc("/doctors/{id:[0-9]+}/schedule", h.GetSchedule).Methods("GET")
	router.HandleFunc("/doctors/{id:[0-9]+}/schedule", h.SetSchedule).Methods("PUT")
	router.HandleFunc("/doctors/{id:[0-9]+}/reviews", h.GetReviews).Methods("GET")
	router.Handle("/doctors/{id:[0-9]+}/reviews", utils.Protect(h.CreateReview)).Methods("POST")
	router.HandleFunc("/specializations", h.GetSpecializations).Methods("GET")
}

func (h *Handler) GetDoctors(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 100

    query := h.db.Model(&models.Doctor{}).Preload("Specialization")

    if specialization := r.URL.Query().Get("specialization"); specialization != "" {
        query = query.Joins("JOIN specializations ON specializations.id = doctors.specialization_id").
            Where("specializations.name ILIKE ?", "%"+specialization+"%")
    }

    var total int64
    query.Count(&total)

    var doctors []models.Doctor
    if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
        Order("last_name, first_name").Find(&doctors).Error; err != nil {
        http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "doctors":     doctors,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    var doctor models.Doctor
    result := h.db.Preload("Specialization").Preload("Schedule").First(&doctor, doctorID)
    if result.Error != nil {
        if errors.Is(result.Error, gorm.ErrRecordNotFound) {
            http.Error(w, "Doctor not found", http.StatusNotFound)
        } else {
            http.Error(w, "Error retrieving doctor", http.StatusInternalServerError)
        }
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(doctor)
}

// GetDoctorsBySpecialization lists doctors whose specialization matches
// the path segment, partial and case-insensitive.
func (h *Handler) GetDoctorsBySpecialization(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    specialization := vars["specialization"]

    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 100

    query := h.db.Model(&models.Doctor{}).
        Joins("JOIN specializations ON specializations.id = doctors.specialization_id").
        Where("specializations.name ILIKE ?", "%"+specialization+"%").
        Preload("Specialization")

    var total int64
    query.Count(&total)

    var doctors []models.Doctor
    result := query.Offset((page - 1) * pageSize).Limit(pageSize).Find(&doctors)
    if result.Error != nil {
        http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "doctors":     doctors,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}

func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    var schedule []models.DoctorSchedule
    if err := h.db.Where("doctor_id = ?", doctorID).Order("weekday").Find(&schedule).Error; err != nil {
        http.Error(w, "Error retrieving schedule", http.StatusInternalServerError)
        return
    }

    weekdays := make([]time.Weekday, 0, len(schedule))
    for _, entry := range schedule {
        weekdays = append(weekdays, entry.Weekday)
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "doctor_id": doctorID,
        "weekdays":  weekdays,
    })
}

// SetSchedule replaces the doctor's working weekdays wholesale.
func (h *Handler) SetSchedule(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    var scheduleRequest struct {
        Weekdays []int `json:"weekdays"`
    }
    if err := json.NewDecoder(r.Body).Decode(&scheduleRequest); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }
    for _, day := range scheduleRequest.Weekdays {
        if day < 0 || day > 6 {
            http.Error(w, "Weekdays must be between 0 (Sunday) and 6 (Saturday)", http.StatusBadRequest)
            return
        }
    }

    var doctor models.Doctor
    if err := h.db.First(&doctor, doctorID).Error; err != nil {
        http.Error(w, "Doctor not found", http.StatusNotFound)
        return
    }

    tx := h.db.Begin()

    if err := tx.Where("doctor_id = ?", doctorID).Delete(&models.DoctorSchedule{}).Error; err != nil {
        tx.Rollback()
        http.Error(w, "Error updating schedule", http.StatusInternalServerError)
        return
    }

    for _, day := range scheduleRequest.Weekdays {
        entry := models.DoctorSchedule{
            DoctorID: uint(doctorID),
            Weekday:  time.Weekday(day),
        }
        if err := tx.Create(&entry).Error; err != nil {
            tx.Rollback()
            http.Error(w, "Error updating schedule", http.StatusInternalServerError)
            return
        }
    }

    if err := tx.Commit().Error; err != nil {
        http.Error(w, "Error committing schedule", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "message":   "Schedule updated",
        "doctor_id": doctorID,
        "weekdays":  scheduleRequest.Weekdays,
    })
}

func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 20

    query := h.db.Model(&models.Review{}).Where("doctor_id = ?", doctorID).Preload("Patient")

    var total int64
    query.Count(&total)

    var reviews []models.Review
    if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
        Order("created_at DESC").Find(&reviews).Error; err != nil {
        http.Error(w, "Error retrieving reviews", http.StatusInternalServerError)
        return
    }

    var average float64
    h.db.Model(&models.Review{}).Where("doctor_id = ?", doctorID).
        Select("COALESCE(AVG(rating), 0)").Scan(&average)

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "reviews":     reviews,
        "average":     average,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    var reviewRequest struct {
        Rating  float64 `json:"rating"`
        Comment string  `json:"comment"`
    }
    if err := json.NewDecoder(r.Body).Decode(&reviewRequest); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }
    if reviewRequest.Rating < 1 || reviewRequest.Rating > 5 {
        http.Error(w, "Rating must be between 1 and 5", http.StatusBadRequest)
        return
    }

    var doctor models.Doctor
    if err := h.db.First(&doctor, doctorID).Error; err != nil {
        http.Error(w, "Doctor not found", http.StatusNotFound)
        return
    }

    review := models.Review{
        PatientID: patientID,
        DoctorID:  uint(doctorID),
        Rating:    reviewRequest.Rating,
        Comment:   reviewRequest.Comment,
    }
    if err := h.db.Create(&review).Error; err != nil {
        http.Error(w, "Error creating review", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    w.WriteHeader(http.StatusCreated)
    json.NewEncoder(w).Encode(review)
}

func (h *Handler) GetSpecializations(w http.ResponseWriter, r *http.Request) {
    var specializations []models.Specialization
    if err := h.db.Order("name").Find(&specializations).Error; err != nil {
        http.Error(w, "Error retrieving specializations", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(specializations)
}
