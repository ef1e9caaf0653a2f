package certificate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var june = time.Date(2025, 6, 11, 12, 0, 0, 0, time.Local)

func TestParsePeriodDate(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr error
	}{
		{"valid", "16.06.2025", nil},
		{"iso format rejected", "2025-06-16", ErrBadDateFormat},
		{"garbage", "tomorrow", ErrBadDateFormat},
		{"previous year", "16.06.2024", ErrWrongYear},
		{"next year", "16.06.2026", ErrWrongYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := ParsePeriodDate(tt.value, june)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.value, parsed.Format("02.01.2006"))
		})
	}
}

func TestComposeRejectsReversedPeriod(t *testing.T) {
	s := &Service{now: func() time.Time { return june }}
	_, err := s.Compose(1, "20.06.2025", "16.06.2025")
	require.ErrorIs(t, err, ErrReversedPeriod)
}

func TestComposeSingleDayPeriod(t *testing.T) {
	// Same start and end is a one-day certificate, not a reversed period.
	start, err := ParsePeriodDate("16.06.2025", june)
	require.NoError(t, err)
	end, err := ParsePeriodDate("16.06.2025", june)
	require.NoError(t, err)
	require.False(t, start.After(end))
}
