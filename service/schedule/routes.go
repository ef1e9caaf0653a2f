package schedule

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/service/clinic"
	"gorm.io/gorm"
)

// DefaultHorizonDays is how far ahead available dates are offered.
const DefaultHorizonDays = 30

type ScheduleHandler struct {
    generator *Generator
}

func NewScheduleHandler(db *gorm.DB, hours clinic.WorkingHours) *ScheduleHandler {
    return &ScheduleHandler{generator: NewGenerator(NewStore(db), hours)}
}

// Generator exposes the slot generator for in-process callers (chat gateway).
func (h *ScheduleHandler) Generator() *Generator {
    return h.generator
}

func (h *ScheduleHandler) RegisterRoutes(router *mux.Router) {
    router.HandleFunc("/doctors/{doctorId}/available-dates", h.GetAvailableDates).Methods("GET")
    router.HandleFunc("/doctors/{doctorId}/available-times/{date}", h.GetAvailableTimes).Methods("GET")
}


func (h *ScheduleHandler) GetAvailableDates(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["doctorId"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    horizon := DefaultHorizonDays
    if daysParam := r.URL.Query().Get("days"); daysParam != "" {
        if parsed, err := strconv.Atoi(daysParam); err == nil && parsed > 0 {
            horizon = parsed
        }
    }

    dates := h.generator.AvailableDates(uint(doctorID), horizon)

    formatted := make([]string, 0, len(dates))
    for _, date := range dates {
        formatted = append(formatted, date.Format("2006-01-02"))
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "doctor_id": doctorID,
        "days":      horizon,
        "dates":     formatted,
    })
}

func (h *ScheduleHandler) GetAvailableTimes(w http.ResponseWriter, r *http.Request) {
    vars := mux.Vars(r)
    doctorID, err := strconv.ParseUint(vars["doctorId"], 10, 64)
    if err != nil {
        http.Error(w, "Invalid doctor ID", http.StatusBadRequest)
        return
    }

    // Bookings are persisted as local instants; the day window must be
    // built in the same location or late slots fall outside it.
    date, err := time.ParseInLocation("2006-01-02", vars["date"], time.Local)
    if err != nil {
        http.Error(w, "Invalid date format. Use YYYY-MM-DD", http.StatusBadRequest)
        return
    }

    times := h.generator.AvailableTimes(uint(doctorID), date)

    formatted := make([]string, 0, len(times))
    for _, t := range times {
        formatted = append(formatted, t.Format("15:04"))
    }

    w.Header().Set("Content-Type", "application/json")
    json.NewEncoder(w).Encode(map[string]interface{}{
        "doctor_id": doctorID,
        "date":      date.Format("2006-01-02"),
        "times":     formatted,
    })
}
