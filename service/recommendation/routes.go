package recommendation

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/cmd/models"
	"gorm.io/gorm"
)

type Handler struct {
	db         *gorm.DB
	classifier *Classifier
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db, classifier: NewClassifier()}
}

// Classifier exposes the classification client for in-process callers.
func (h *Handler) Classifier() *Classifier {
	return h.classifier
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/recommendations/specialist", h.RecommendSpecialist).Methods("POST")
}

// RecommendSpecialist maps a symptom description to a specialization
// and returns the doctors currently accepting appointments for it.
func (h *Handler) RecommendSpecialist(w http.ResponseWriter, r *http.Request) {
    var request struct {
        Symptoms string `json:"symptoms"`
    }
    if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }
    if strings.TrimSpace(request.Symptoms) == "" {
        http.Error(w, "Symptoms description is required", http.StatusBadRequest)
        return
    }

    specialization, confidence := h.classifier.ClassifySymptoms(request.Symptoms)

    var doctors []models.Doctor
    if err := h.db.Model(&models.Doctor{}).
        Joins("JOIN specializations ON specializations.id = doctors.specialization_id").
        Where("specializations.name ILIKE ?", "%"+specialization+"%").
        Preload("Specialization").
        Find(&doctors).Error; err != nil {
        http.Error(w, "Error retrieving doctors", http.StatusInternalServerError)
        return
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "specialization": specialization,
        "confidence":     confidence,
        "doctors":        doctors,
    })
}
