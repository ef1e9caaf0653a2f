package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/razumed/clinic-server/service/clinic"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newBookingService(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return NewBookingService(gdb, clinic.DefaultWorkingHours()), mock
}

func expectWeekdays(mock sqlmock.Sqlmock, weekdays ...int) {
	rows := sqlmock.NewRows([]string{"weekday"})
	for _, d := range weekdays {
		rows.AddRow(d)
	}
	mock.ExpectQuery(`SELECT DISTINCT "weekday" FROM "doctor_schedules"`).WillReturnRows(rows)
}

// 2025-06-16 is a Monday; 09:30 is on the Monday 07:30-20:00 hour grid.

func TestBookForPatientCreatesScheduledRow(t *testing.T) {
	service, mock := newBookingService(t)

	expectWeekdays(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "appointments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectCommit()

	appointment, err := service.BookForPatient(5, 7, "2025-06-16", "09:30")
	require.NoError(t, err)
	require.Equal(t, uint(42), appointment.ID)
	require.Equal(t, "scheduled", appointment.Status)
	require.Equal(t, uint(5), appointment.PatientID)
	require.Equal(t, uint(7), appointment.DoctorID)

	want := time.Date(2025, 6, 16, 9, 30, 0, 0, time.Local)
	require.True(t, appointment.AppointmentDate.Equal(want))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookForPatientLosesRace(t *testing.T) {
	service, mock := newBookingService(t)

	expectWeekdays(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "appointments"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_appointments_doctor_slot" (SQLSTATE 23505)`))
	mock.ExpectRollback()

	_, err := service.BookForPatient(5, 7, "2025-06-16", "09:30")
	require.ErrorIs(t, err, ErrSlotTaken)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookForPatientStorageFault(t *testing.T) {
	service, mock := newBookingService(t)

	expectWeekdays(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "appointments"`).
		WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := service.BookForPatient(5, 7, "2025-06-16", "09:30")
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestBookForPatientInvalidSelections(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		timeStr  string
		weekdays []int
	}{
		{"malformed date", "16.06.2025", "09:30", nil},
		{"malformed time", "2025-06-16", "half past nine", nil},
		{"weekday not worked", "2025-06-16", "09:30", []int{2, 3}},
		{"off the hour grid", "2025-06-16", "09:45", []int{1}},
		{"at closing time", "2025-06-16", "20:00", []int{1}},
		{"before opening", "2025-06-16", "07:00", []int{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, mock := newBookingService(t)
			if tt.weekdays != nil {
				expectWeekdays(mock, tt.weekdays...)
			} else if tt.date == "2025-06-16" && tt.timeStr != "half past nine" {
				expectWeekdays(mock)
			}

			_, err := service.BookForPatient(5, 7, tt.date, tt.timeStr)
			require.ErrorIs(t, err, ErrInvalidSelection)
		})
	}
}

func TestBookUnknownPatientCreatesNoRow(t *testing.T) {
	service, mock := newBookingService(t)

	mock.ExpectQuery(`SELECT \* FROM "patients"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id"}))

	_, err := service.Book("tg-nobody", 7, "2025-06-16", "09:30")
	require.ErrorIs(t, err, ErrUnknownPatient)
	// no insert was ever attempted
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBookResolvesExternalHandle(t *testing.T) {
	service, mock := newBookingService(t)

	mock.ExpectQuery(`SELECT \* FROM "patients"`).
		WithArgs("tg-1001", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id"}).AddRow(5, "tg-1001"))
	expectWeekdays(mock, 1)
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "appointments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(43))
	mock.ExpectCommit()

	appointment, err := service.Book("tg-1001", 7, "2025-06-16", "09:30")
	require.NoError(t, err)
	require.Equal(t, uint(5), appointment.PatientID)
}
