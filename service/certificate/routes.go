package certificate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/cmd/utils"
	"github.com/razumed/clinic-server/service/patient"
	"gorm.io/gorm"
)

type Handler struct {
	service  *Service
	renderer *Renderer
}

func NewHandler(db *gorm.DB, clinicName string) *Handler {
	return &Handler{
		service:  NewService(patient.NewDirectory(db), clinicName),
		renderer: NewRenderer(),
	}
}

// Service exposes the certificate composer for in-process callers.
func (h *Handler) Service() *Service {
	return h.service
}

func (h *Handler) Renderer() *Renderer {
	return h.renderer
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.Handle("/certificates", utils.Protect(h.IssueCertificate)).Methods("POST")
}

// IssueCertificate composes a sick-leave certificate for the requested
// period and streams it back as a PDF attachment.
func (h *Handler) IssueCertificate(w http.ResponseWriter, r *http.Request) {
    patientID, err := utils.GetPatientIDFromContext(r)
    if err != nil {
        http.Error(w, "Unauthorized", http.StatusUnauthorized)
        return
    }

    var request struct {
        PeriodStart string `json:"period_start"`
        PeriodEnd   string `json:"period_end"`
    }
    if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
        http.Error(w, "Invalid request body", http.StatusBadRequest)
        return
    }

    record, err := h.service.Compose(patientID, request.PeriodStart, request.PeriodEnd)
    if err != nil {
        writeCertificateError(w, err)
        return
    }

    pdf, err := h.renderer.Render(record)
    if err != nil {
        http.Error(w, "Error rendering certificate", http.StatusServiceUnavailable)
        return
    }

    w.Header().Set("Content-Type", "application/pdf")
    w.Header().Set("Content-Disposition",
        fmt.Sprintf(`attachment; filename="certificate-%s.pdf"`, record.Reference))
    w.Write(pdf)
}

func writeCertificateError(w http.ResponseWriter, err error) {
    switch {
    case errors.Is(err, ErrBadDateFormat),
        errors.Is(err, ErrWrongYear),
        errors.Is(err, ErrReversedPeriod):
        http.Error(w, err.Error(), http.StatusBadRequest)
    case errors.Is(err, ErrUnknownPatient):
        http.Error(w, "Patient not found", http.StatusNotFound)
    default:
        http.Error(w, "Error composing certificate", http.StatusInternalServerError)
    }
}
