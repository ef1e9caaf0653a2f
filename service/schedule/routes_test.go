package schedule

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/service/clinic"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*mux.Router, sqlmock.Sqlmock) {
	t.Helper()
	gdb, mock := newMockDB(t)
	handler := NewScheduleHandler(gdb, clinic.DefaultWorkingHours())
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router, mock
}

// The route must query bookings over the local calendar day, the same
// location bookings are stored in. A UTC window would miss evening
// bookings in zones west of UTC and re-offer taken slots.
func TestGetAvailableTimesUsesLocalDayWindow(t *testing.T) {
	router, mock := newTestRouter(t)

	dayStart := time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local)
	dayEnd := dayStart.AddDate(0, 0, 1)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "appointment_date", "status"}).
		AddRow(1, 2, 7, time.Date(2025, 6, 16, 19, 30, 0, 0, time.Local), "scheduled")

	mock.ExpectQuery(`SELECT \* FROM "appointments"`).
		WithArgs(uint(7), "scheduled", dayStart, dayEnd).
		WillReturnRows(rows)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors/7/available-times/2025-06-16", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Times []string `json:"times"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp.Times, "07:30")
	require.NotContains(t, resp.Times, "19:30")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAvailableTimesRejectsMalformedDate(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/doctors/7/available-times/16.06.2025", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
