package chat

import (
	"testing"
	"time"

	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/service/appointment"
	"github.com/razumed/clinic-server/service/certificate"
	"github.com/razumed/clinic-server/service/clinic"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	patients map[string]*models.Patient
	enrolled []string
}

func (f *fakeDirectory) ByExternalID(externalID string) (*models.Patient, error) {
	if p, ok := f.patients[externalID]; ok {
		return p, nil
	}
	return nil, appointment.ErrUnknownPatient
}

func (f *fakeDirectory) Enroll(externalID, firstName, lastName, gender string, birthDate time.Time, phone string) (*models.Patient, error) {
	p := &models.Patient{ExternalID: externalID, FirstName: firstName, LastName: lastName, Gender: gender, Phone: phone}
	p.ID = uint(len(f.patients) + 1)
	if f.patients == nil {
		f.patients = map[string]*models.Patient{}
	}
	f.patients[externalID] = p
	f.enrolled = append(f.enrolled, externalID)
	return p, nil
}

func (f *fakeDirectory) RecentAppointments(patientID uint, limit int) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeDirectory) Diagnoses(patientID uint) ([]models.Diagnosis, error) {
	return nil, nil
}

type fakeBooker struct {
	err    error
	booked *models.Appointment
	calls  int
}

func (f *fakeBooker) Book(externalID string, doctorID uint, dateStr, timeStr string) (*models.Appointment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.booked, nil
}

type fakeSlots struct {
	dates []time.Time
	times []time.Time
}

func (f *fakeSlots) AvailableDates(doctorID uint, horizonDays int) []time.Time { return f.dates }
func (f *fakeSlots) AvailableTimes(doctorID uint, date time.Time) []time.Time  { return f.times }

type fakeClassifier struct {
	specialization string
	intent         string
}

func (f *fakeClassifier) ClassifySymptoms(text string) (string, float64) {
	return f.specialization, 0.9
}
func (f *fakeClassifier) ClassifyIntent(text string) string { return f.intent }

type fakeComposer struct {
	record *certificate.Record
	err    error
}

func (f *fakeComposer) Compose(patientID uint, startStr, endStr string) (*certificate.Record, error) {
	return f.record, f.err
}

type fakeCatalog struct {
	doctors []models.Doctor
}

func (f *fakeCatalog) All() ([]models.Doctor, error)                        { return f.doctors, nil }
func (f *fakeCatalog) BySpecialization(name string) ([]models.Doctor, error) { return f.doctors, nil }

func testDoctor(id uint, lastName string) models.Doctor {
	d := models.Doctor{FirstName: "Ivan", LastName: lastName}
	d.ID = id
	d.Specialization = &models.Specialization{Name: "Терапевт"}
	return d
}

func registered() *fakeDirectory {
	p := &models.Patient{ExternalID: "tg-1001", FirstName: "Anna", LastName: "Petrova", Phone: "+70000000000"}
	p.ID = 5
	return &fakeDirectory{patients: map[string]*models.Patient{"tg-1001": p}}
}

func newTestDialogue(directory patientDirectory, booker appointmentBooker, slots slotSource, classifier textClassifier, certs certificateComposer, doctors doctorCatalog) *Dialogue {
	if classifier == nil {
		classifier = &fakeClassifier{}
	}
	return NewDialogue(directory, booker, slots, classifier, certs, doctors, clinic.DefaultWorkingHours(), 30)
}

func TestUnregisteredVisitorEntersRegistration(t *testing.T) {
	d := newTestDialogue(&fakeDirectory{}, &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{}, &fakeCatalog{})
	session := newSession()

	replies := d.Handle(session, "tg-new", "привет")
	require.Equal(t, StateRegFirstName, session.State)
	require.NotEmpty(t, replies)
}

func TestRegistrationFlowEnrolls(t *testing.T) {
	directory := &fakeDirectory{}
	d := newTestDialogue(directory, &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{}, &fakeCatalog{})
	session := newSession()

	d.Handle(session, "tg-new", "старт")
	d.Handle(session, "tg-new", "Анна")
	d.Handle(session, "tg-new", "Петрова")
	d.Handle(session, "tg-new", "Женский")
	d.Handle(session, "tg-new", "01.03.1990")
	replies := d.Handle(session, "tg-new", "+79990001122")

	require.Equal(t, []string{"tg-new"}, directory.enrolled)
	require.Equal(t, StateMenu, session.State)
	require.Contains(t, replies[0].Text, "Анна")
}

func TestRegistrationRejectsBadBirthDate(t *testing.T) {
	d := newTestDialogue(&fakeDirectory{}, &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{}, &fakeCatalog{})
	session := &Session{State: StateRegBirthDate, Data: map[string]string{
		"first_name": "Анна", "last_name": "Петрова", "gender": "female",
	}}

	d.Handle(session, "tg-new", "1990-03-01")
	require.Equal(t, StateRegBirthDate, session.State)

	d.Handle(session, "tg-new", "01.03.1990")
	require.Equal(t, StateRegPhone, session.State)
}

func TestBookingHappyPath(t *testing.T) {
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local)
	slot := time.Date(2025, 6, 16, 9, 30, 0, 0, time.Local)
	booked := &models.Appointment{AppointmentDate: slot, Status: models.AppointmentScheduled}

	booker := &fakeBooker{booked: booked}
	d := newTestDialogue(registered(), booker,
		&fakeSlots{dates: []time.Time{monday}, times: []time.Time{slot}},
		nil, &fakeComposer{}, &fakeCatalog{doctors: []models.Doctor{testDoctor(7, "Sidorov")}})
	session := newSession()

	replies := d.Handle(session, "tg-1001", "записаться")
	require.Equal(t, StateBookDoctor, session.State)
	require.NotEmpty(t, replies)

	replies = d.Handle(session, "tg-1001", "1")
	require.Equal(t, StateBookDate, session.State)
	require.Equal(t, []string{"2025-06-16"}, replies[0].Options)

	replies = d.Handle(session, "tg-1001", "2025-06-16")
	require.Equal(t, StateBookTime, session.State)
	require.Equal(t, []string{"09:30"}, replies[0].Options)

	replies = d.Handle(session, "tg-1001", "09:30")
	require.Equal(t, StateMenu, session.State)
	require.Equal(t, 1, booker.calls)
	require.Contains(t, replies[0].Text, "16.06.2025")
}

func TestBookingLostRaceOffersOtherTimes(t *testing.T) {
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local)
	other := time.Date(2025, 6, 16, 11, 30, 0, 0, time.Local)

	booker := &fakeBooker{err: appointment.ErrSlotTaken}
	d := newTestDialogue(registered(), booker,
		&fakeSlots{dates: []time.Time{monday}, times: []time.Time{other}},
		nil, &fakeComposer{}, &fakeCatalog{doctors: []models.Doctor{testDoctor(7, "Sidorov")}})
	session := &Session{State: StateBookTime, Data: map[string]string{
		"doctor_id": "7", "date": "2025-06-16",
	}}

	replies := d.Handle(session, "tg-1001", "09:30")
	// Conversation stays in time selection with fresh slots, never a dead end.
	require.Equal(t, StateBookTime, session.State)
	require.Equal(t, []string{"11:30"}, replies[0].Options)
}

func TestBookingOffListDateReprompts(t *testing.T) {
	monday := time.Date(2025, 6, 16, 0, 0, 0, 0, time.Local)
	grid := []time.Time{
		time.Date(2025, 6, 15, 8, 0, 0, 0, time.Local),
		time.Date(2025, 6, 15, 9, 0, 0, 0, time.Local),
	}

	booker := &fakeBooker{}
	d := newTestDialogue(registered(), booker,
		&fakeSlots{dates: []time.Time{monday}, times: grid},
		nil, &fakeComposer{}, &fakeCatalog{doctors: []models.Doctor{testDoctor(7, "Sidorov")}})
	session := &Session{State: StateBookDate, Data: map[string]string{"doctor_id": "7"}}

	// 2025-06-15 is a Sunday the doctor does not work; it was never
	// offered, so picking it re-prompts with the offered dates instead
	// of advancing to times no booking would accept.
	replies := d.Handle(session, "tg-1001", "2025-06-15")
	require.Equal(t, StateBookDate, session.State)
	require.Equal(t, []string{"2025-06-16"}, replies[0].Options)
	require.Zero(t, booker.calls)
}

func TestBookingNoDatesLeftReturnsToMenu(t *testing.T) {
	d := newTestDialogue(registered(), &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{},
		&fakeCatalog{doctors: []models.Doctor{testDoctor(7, "Sidorov")}})
	session := &Session{State: StateBookDate, Data: map[string]string{"doctor_id": "7"}}

	replies := d.Handle(session, "tg-1001", "2025-06-16")
	require.Equal(t, StateMenu, session.State)
	require.NotEmpty(t, replies)
}

func TestBookingInvalidDoctorNumberReprompts(t *testing.T) {
	d := newTestDialogue(registered(), &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{},
		&fakeCatalog{doctors: []models.Doctor{testDoctor(7, "Sidorov")}})
	session := &Session{State: StateBookDoctor, Data: map[string]string{"doctor_ids": "7"}}

	d.Handle(session, "tg-1001", "99")
	require.Equal(t, StateBookDoctor, session.State)
}

func TestSymptomsLeadToDoctorOffer(t *testing.T) {
	classifier := &fakeClassifier{specialization: "Кардиолог"}
	d := newTestDialogue(registered(), &fakeBooker{}, &fakeSlots{}, classifier, &fakeComposer{},
		&fakeCatalog{doctors: []models.Doctor{testDoctor(7, "Sidorov")}})
	session := &Session{State: StateSymptoms, Data: map[string]string{}}

	replies := d.Handle(session, "tg-1001", "болит сердце")
	require.Equal(t, StateBookDoctor, session.State)
	require.Contains(t, replies[0].Text, "Кардиолог")
}

func TestCertificateFlow(t *testing.T) {
	composer := &fakeComposer{record: &certificate.Record{
		Reference:   "ref-123",
		PeriodStart: "10.06.2025",
		PeriodEnd:   "12.06.2025",
	}}
	d := newTestDialogue(registered(), &fakeBooker{}, &fakeSlots{}, nil, composer, &fakeCatalog{})
	session := newSession()

	d.Handle(session, "tg-1001", "нужна справка")
	require.Equal(t, StateCertStart, session.State)

	now := time.Now()
	start := time.Date(now.Year(), 6, 10, 0, 0, 0, 0, time.Local).Format("02.01.2006")
	d.Handle(session, "tg-1001", start)
	require.Equal(t, StateCertEnd, session.State)

	replies := d.Handle(session, "tg-1001", "12.06."+now.Format("2006"))
	require.Equal(t, StateMenu, session.State)
	require.Contains(t, replies[0].Text, "ref-123")
}

func TestCertificateRejectsBadStartDate(t *testing.T) {
	d := newTestDialogue(registered(), &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{}, &fakeCatalog{})
	session := &Session{State: StateCertStart, Data: map[string]string{}}

	d.Handle(session, "tg-1001", "вчера")
	require.Equal(t, StateCertStart, session.State)
}

func TestMenuHoursIntent(t *testing.T) {
	d := newTestDialogue(registered(), &fakeBooker{}, &fakeSlots{}, nil, &fakeComposer{}, &fakeCatalog{})
	session := newSession()

	replies := d.Handle(session, "tg-1001", "часы работы")
	require.Equal(t, StateMenu, session.State)
	require.Contains(t, replies[0].Text, "Пн")
}
