package patient

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/cmd/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db        *gorm.DB
	directory *Directory
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, directory: NewDirectory(db)}
}

// Directory exposes the patient lookup layer for in-process callers.
func (h *Handler) Directory() *Directory {
	return h.directory
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/register", h.HandleRegister).Methods("POST")
	router.HandleFunc("/login", h.handleLogin).Methods("POST")
	router.HandleFunc("/patient/verify", h.verifyPatient).Methods("POST")
	router.HandleFunc("/refresh", h.handleRefreshToken).Methods("POST")
	router.HandleFunc("/patients", h.GetPatients).Methods("GET")
	router.HandleFunc("/patients/{id:[0-9]+}", h.GetPatient).Methods("GET")
	router.Handle("/patients/me", utils.Protect(h.GetProfile)).Methods("GET")
	router.Handle("/patients/me", utils.Protect(h.UpdateProfile)).Methods("PUT")
	router.Handle("/patients/me/appointments", utils.Protect(h.GetRecentAppointments)).Methods("GET")
	router.Handle("/patients/me/diagnoses", utils.Protect(h.GetDiagnoses)).Methods("GET")
	router.Handle("/patients/me/diagnoses/last", utils.Protect(h.GetLastDiagnosis)).Methods("GET")
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
    var registerRequest struct {
        ExternalID string `json:"external_id"`
        FirstName  string `json:"first_name"`
        LastName   string `json:"last_name"`
        Gender     string `json:"gender"`
        BirthDate  string `json:"birth_date"`
        Phone      string `json:"phone"`
        Email      string `json:"email"`
        Password   string `json:"password"`
    }
    if err := json.NewDecoder(r.Body).Decode(&registerRequest); err != nil {
        http.Error(w, "Invalid JSON input", http.StatusBadRequest)
        return
    }
    if registerRequest.FirstName == "" || registerRequest.LastName == "" ||
        registerRequest.Phone == "" || registerRequest.Email == "" || registerRequest.Password == "" {
        http.Error(w, "Missing required fields", http.StatusBadRequest)
        return
    }

    var birthDate *time.Time
    if registerRequest.BirthDate != "" {
        parsed, err := time.Parse("2006-01-02", registerRequest.BirthDate)
        if err != nil {
            http.Error(w, "Invalid birth date, expected YYYY-MM-DD", http.StatusBadRequest)
            return
        }
        birthDate = &parsed
    }

    var existing models.Patient
    if result := h.db.Where("email = ? OR phone = ?", registerRequest.Email, registerRequest.Phone).First(&existing); !errors.Is(result.Error, gorm.ErrRecordNotFound) {
        if result.Error != nil {
            http.Error(w, "Database error", http.StatusInternalServerError)
            return
        }
        var errorMessage string
        if existing.Email == registerRequest.Email {
            errorMessage = "Email is already in use"
        } else {
            errorMessage = "Phone number is already in use"
        }
        log.Printf("Registration attempt with duplicate %s", errorMessage)
        http.Error(w, errorMessage, http.StatusConflict)
        return
    }

    passwordHash, err := bcrypt.GenerateFromPassword([]byte(registerRequest.Password), bcrypt.DefaultCost)
    if err != nil {
        http.Error(w, "Error hashing password", http.StatusInternalServerError)
        return
    }

    verificationCode := fmt.Sprintf("%06d", rand.Intn(1000000))
    verificationExpiry := time.Now().Add(15 * time.Minute)

    // ExternalID links an existing chat enrollment to the web account.
    // Patients who never used the chat get a synthetic handle.
    externalID := registerRequest.ExternalID
    if externalID == "" {
        externalID = fmt.Sprintf("web-%d-%d", time.Now().UnixNano(), rand.Intn(1000))
    }

    patient := models.Patient{
        ExternalID:            externalID,
        FirstName:             registerRequest.FirstName,
        LastName:              registerRequest.LastName,
        Gender:                registerRequest.Gender,
        BirthDate:             birthDate,
        Phone:                 registerRequest.Phone,
        Email:                 registerRequest.Email,
        PasswordHash:          string(passwordHash),
        EmailVerificationCode: verificationCode,
        VerificationExpiry:    verificationExpiry,
    }

    if err := h.db.Create(&patient).Error; err != nil {
        if strings.Contains(err.Error(), "duplicate key") {
            log.Printf("Unique constraint violation during registration: %v", err)
            http.Error(w, "Email, phone or handle is already in use", http.StatusConflict)
            return
        }
        http.Error(w, "Error registering patient", http.StatusInternalServerError)
        return
    }

    go func() {
        if err := sendVerificationEmail(patient.Email, verificationCode); err != nil {
            log.Printf("Error sending verification email: %v", err)
        }
    }()

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "message":    "Patient registered successfully. Please check your email for verification code.",
        "patient_id": patient.ID,
    })
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
    var loginRequest struct {
        Email    string `json:"email"`
        Password string `json:"password"`
    }

    if err := json.NewDecoder(r.Body).Decode(&loginRequest); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }

    var patient models.Patient
    result := h.db.Where("email = ?", loginRequest.Email).First(&patient)
    if result.Error != nil {
        http.Error(w, "Patient not found", http.StatusUnauthorized)
        return
    }

    if err := bcrypt.CompareHashAndPassword([]byte(patient.PasswordHash), []byte(loginRequest.Password)); err != nil {
        http.Error(w, "Invalid credentials", http.StatusUnauthorized)
        return
    }

    accessToken, err := generateJWT(patient.ID, 7500)
    if err != nil {
        http.Error(w, "Error generating access token", http.StatusInternalServerError)
        return
    }

    refreshToken, err := generateRefreshToken(patient.ID)
    if err != nil {
        http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
        return
    }

    if err := saveRefreshToken(h.db, patient.ID, refreshToken); err != nil {
        http.Error(w, "Error saving refresh token", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "message":       "Login successful",
        "access_token":  accessToken,
        "refresh_token": refreshToken,
        "patient_id":    patient.ID,
    })
}

func (h *Handler) verifyPatient(w http.ResponseWriter, r *http.Request) {
    var request struct {
        Email string `json:"email"`
        Code  string `json:"code"`
    }

    if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }

    var patient models.Patient
    if err := h.db.Where("email = ?", request.Email).First(&patient).Error; err != nil {
        http.Error(w, "Patient not found", http.StatusNotFound)
        return
    }

    if patient.EmailVerificationCode != request.Code || time.Now().After(patient.VerificationExpiry) {
        http.Error(w, "Invalid or expired verification code", http.StatusUnauthorized)
        return
    }

    patient.EmailVerified = true
    patient.EmailVerificationCode = ""
    patient.VerificationExpiry = time.Time{}

    if err := h.db.Save(&patient).Error; err != nil {
        http.Error(w, "Error updating patient", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{
        "message": "Email verified successfully",
    })
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
    var refreshRequest struct {
        RefreshToken string `json:"refresh_token"`
    }

    if err := json.NewDecoder(r.Body).Decode(&refreshRequest); err != nil {
        http.Error(w, "Invalid request", http.StatusBadRequest)
        return
    }

    tx := h.db.Begin()

    var patient models.Patient
    if err := tx.Where("refresh_token = ?", refreshRequest.RefreshToken).First(&patient).Error; err != nil {
        tx.Rollback()
        http.Error(w, "Invalid refresh token", http.StatusUnauthorized)
        return
    }

    if patient.RefreshTokenExpiredAt.Before(time.Now()) {
        tx.Rollback()
        log.Printf("Expired refresh token for patient ID: %d", patient.ID)
        http.Error(w, "Refresh token expired", http.StatusUnauthorized)
        return
    }

    newAccessToken, err := generateJWT(patient.ID, 15)
    if err != nil {
        tx.Rollback()
        http.Error(w, "Error generating new token", http.StatusInternalServerError)
        return
    }

    // Rotate the refresh token
    newRefreshToken, err := generateRefreshToken(patient.ID)
    if err != nil {
        tx.Rollback()
        http.Error(w, "Error generating refresh token", http.StatusInternalServerError)
        return
    }

    updateResult := tx.Model(&patient).Updates(models.Patient{
        Refresh:               newRefreshToken,
        RefreshTokenExpiredAt: time.Now().Add(30 * 24 * time.Hour),
    })
    if updateResult.Error != nil {
        tx.Rollback()
        http.Error(w, "Error updating refresh token", http.StatusInternalServerError)
        return
    }

    if err := tx.Commit().Error; err != nil {
        http.Error(w, "Internal server error", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]string{
        "access_token":  newAccessToken,
        "refresh_token": newRefreshToken,
    })
}

func (h *Handler) GetPatients(w http.ResponseWriter, r *http.Request) {
    page, _ := strconv.Atoi(r.URL.Query().Get("page"))
    if page < 1 {
        page = 1
    }
    pageSize := 100

    query := h.db.Model(&models.Patient{})

    var total int64
    query.Count(&total)

    var patients []models.Patient
    if err := query.Offset((page - 1) * pageSize).Limit(pageSize).
        Order("last_name, first_name").Find(&patients).Error; err != nil {
        http.Error(w, "Error retrieving patients", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "patients":    patients,
        "total":       total,
        "page":        page,
        "page_size":   pageSize,
        "total_pages": (total + int64(pageSize) - 1) / int64(pageSize),
    })
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    patientID, err := strconv.ParseUint(vars["id"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid patient ID", http.StatusBadRequest)
        return
    }

    var patient models.Patient
    if err := h.db.First(&patient, patientID).Error; err != nil {
        http.Error(w, "Patient not found", http.StatusNotFound)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(patient)
}

// GetProfile returns the record card header for the authenticated patient.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    patient, err := h.directory.ByID(patientID)
    if err != nil {
        http.Error(w, "Patient not found", http.StatusNotFound)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(patient)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    var updateData struct {
        FirstName string `json:"first_name"`
        LastName  string `json:"last_name"`
        Phone     string `json:"phone"`
    }
    if err := json.NewDecoder(r.Body).Decode(&updateData); err != nil {
        http.Error(w, "Invalid JSON input", http.StatusBadRequest)
        return
    }

    var patient models.Patient
    if err := h.db.First(&patient, patientID).Error; err != nil {
        http.Error(w, "Patient not found", http.StatusNotFound)
        return
    }

    if updateData.FirstName != "" {
        patient.FirstName = updateData.FirstName
    }
    if updateData.LastName != "" {
        patient.LastName = updateData.LastName
    }
    if updateData.Phone != "" {
        patient.Phone = updateData.Phone
    }

    if err := h.db.Save(&patient).Error; err != nil {
        http.Error(w, "Error updating patient", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(patient)
}

func (h *Handler) GetRecentAppointments(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
    if limit < 1 || limit > 50 {
        limit = 5
    }

    appointments, err := h.directory.RecentAppointments(patientID, limit)
    if err != nil {
        http.Error(w, "Error retrieving appointments", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "appointments": appointments,
        "limit":        limit,
    })
}

func (h *Handler) GetDiagnoses(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    diagnoses, err := h.directory.Diagnoses(patientID)
    if err != nil {
        http.Error(w, "Error retrieving diagnoses", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "diagnoses": diagnoses,
    })
}

func (h *Handler) GetLastDiagnosis(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    diagnosis, err := h.directory.LastDiagnosis(patientID)
    if err != nil {
        http.Error(w, "Error retrieving diagnosis", http.StatusInternalServerError)
        return
    }
    if diagnosis == nil {
        http.Error(w, "No diagnoses on record", http.StatusNotFound)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(diagnosis)
}
