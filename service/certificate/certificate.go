package certificate

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/razumed/clinic-server/service/patient"
)

const dateLayout = "02.01.2006"

var (
	ErrBadDateFormat  = errors.New("date must be in DD.MM.YYYY format")
	ErrWrongYear      = errors.New("date must fall in the current year")
	ErrReversedPeriod = errors.New("period start is after its end")
	ErrUnknownPatient = errors.New("patient not found")
)

// ParsePeriodDate validates one endpoint of a sick-leave period. Only
// dates within the current calendar year are accepted.
func ParsePeriodDate(value string, now time.Time) (time.Time, error) {
	parsed, err := time.ParseInLocation(dateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, ErrBadDateFormat
	}
	if parsed.Year() != now.Year() {
		return time.Time{}, ErrWrongYear
	}
	return parsed, nil
}

// Record carries everything the renderer needs to lay out a certificate.
type Record struct {
	Reference      string `json:"reference"`
	ClinicName     string `json:"clinic_name"`
	PatientName    string `json:"patient_name"`
	BirthDate      string `json:"birth_date,omitempty"`
	Diagnosis      string `json:"diagnosis,omitempty"`
	DoctorName     string `json:"doctor_name,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	PeriodStart    string `json:"period_start"`
	PeriodEnd      string `json:"period_end"`
	IssuedAt       string `json:"issued_at"`
}

// Service assembles certificate records from the patient's record card.
type Service struct {
	directory  *patient.Directory
	clinicName string
	now        func() time.Time
}

func NewService(directory *patient.Directory, clinicName string) *Service {
	if clinicName == "" {
		clinicName = "Клиника «РазуМед»"
	}
	return &Service{
		directory:  directory,
		clinicName: clinicName,
		now:        time.Now,
	}
}

// Compose validates the period and gathers the certificate fields:
// the patient's identity, the latest diagnosis and the doctor of the
// most recent visit. Missing card entries leave their fields blank
// rather than failing the whole certificate.
func (s *Service) Compose(patientID uint, startStr, endStr string) (*Record, error) {
	now := s.now()

	start, err := ParsePeriodDate(startStr, now)
	if err != nil {
		return nil, err
	}
	end, err := ParsePeriodDate(endStr, now)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, ErrReversedPeriod
	}

	p, err := s.directory.ByID(patientID)
	if err != nil {
		if errors.Is(err, patient.ErrNotRegistered) {
			return nil, ErrUnknownPatient
		}
		return nil, err
	}

	record := &Record{
		Reference:   uuid.New().String(),
		ClinicName:  s.clinicName,
		PatientName: fmt.Sprintf("%s %s", p.LastName, p.FirstName),
		PeriodStart: start.Format(dateLayout),
		PeriodEnd:   end.Format(dateLayout),
		IssuedAt:    now.Format(dateLayout),
	}
	if p.BirthDate != nil {
		record.BirthDate = p.BirthDate.Format(dateLayout)
	}

	if diagnosis, err := s.directory.LastDiagnosis(patientID); err == nil && diagnosis != nil {
		record.Diagnosis = diagnosis.Name
	}
	if doctor, err := s.directory.LastVisitedDoctor(patientID); err == nil && doctor != nil {
		record.DoctorName = fmt.Sprintf("%s %s", doctor.LastName, doctor.FirstName)
		if doctor.Specialization != nil {
			record.Specialization = doctor.Specialization.Name
		}
	}

	return record, nil
}
