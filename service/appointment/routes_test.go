package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/razumed/clinic-server/cmd/utils"
	"github.com/razumed/clinic-server/service/clinic"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newTestHandler(t *testing.T) (*AppointmentHandler, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewAppointmentHandler(gdb, clinic.DefaultWorkingHours()), mock
}

func bookRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/appointments/book", strings.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), utils.PatientIDKey, uint(5)))
}

func TestWriteBookingErrorStatusAndNext(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"invalid selection", ErrInvalidSelection, http.StatusBadRequest, "invalid_selection"},
		{"unknown patient", ErrUnknownPatient, http.StatusNotFound, "unknown_patient"},
		{"slot taken", ErrSlotTaken, http.StatusConflict, "slot_already_taken"},
		{"storage fault", ErrStorageUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeBookingError(rec, fmt.Errorf("booking: %w", tt.err))

			require.Equal(t, tt.status, rec.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			require.Equal(t, tt.code, body["error"])
			require.NotEmpty(t, body["next"], "the caller must always get a next action")
		})
	}
}

func TestBookAppointmentLostRaceReturnsConflict(t *testing.T) {
	handler, mock := newTestHandler(t)

	expectWeekdays(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "appointments"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_appointments_doctor_slot" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, bookRequest(`{"doctor_id":7,"date":"2025-06-16","time":"09:30"}`))

	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "slot_already_taken", body["error"])
	require.NotEmpty(t, body["next"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookAppointmentOffGridTimeReturnsBadRequest(t *testing.T) {
	handler, mock := newTestHandler(t)

	expectWeekdays(mock, 1)

	rec := httptest.NewRecorder()
	handler.BookAppointment(rec, bookRequest(`{"doctor_id":7,"date":"2025-06-16","time":"09:45"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "invalid_selection", body["error"])
	require.NotEmpty(t, body["next"])
}
