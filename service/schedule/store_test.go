package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)
	return gdb, mock
}

func TestWorkingWeekdaysDistinctRows(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewStore(gdb)

	rows := sqlmock.NewRows([]string{"weekday"}).AddRow(1).AddRow(3).AddRow(5)
	mock.ExpectQuery(`SELECT DISTINCT "weekday" FROM "doctor_schedules"`).
		WithArgs(uint(7)).
		WillReturnRows(rows)

	got := store.WorkingWeekdays(7)
	require.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkingWeekdaysFailsSoftOnStorageFault(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewStore(gdb)

	mock.ExpectQuery(`SELECT DISTINCT "weekday" FROM "doctor_schedules"`).
		WillReturnError(errors.New("connection refused"))

	got := store.WorkingWeekdays(7)
	require.Empty(t, got)
}

func TestBookedTimesOnlyScheduled(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewStore(gdb)

	date := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "appointment_date", "status"}).
		AddRow(1, 2, 7, time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC), "scheduled").
		AddRow(2, 3, 7, time.Date(2025, 6, 16, 14, 30, 0, 0, time.UTC), "scheduled")

	mock.ExpectQuery(`SELECT \* FROM "appointments"`).
		WillReturnRows(rows)

	got := store.BookedTimes(7, date)
	require.True(t, got["09:30"])
	require.True(t, got["14:30"])
	require.Len(t, got, 2)
}

func TestBookedTimesFailsSoftOnStorageFault(t *testing.T) {
	gdb, mock := newMockDB(t)
	store := NewStore(gdb)

	mock.ExpectQuery(`SELECT \* FROM "appointments"`).
		WillReturnError(errors.New("server closed the connection"))

	got := store.BookedTimes(7, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC))
	require.Empty(t, got)
}
