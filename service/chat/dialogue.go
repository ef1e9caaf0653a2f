package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/razumed/clinic-server/cmd/models"
	"github.com/razumed/clinic-server/service/appointment"
	"github.com/razumed/clinic-server/service/certificate"
	"github.com/razumed/clinic-server/service/clinic"
)

// Dialogue states. The session always sits in exactly one of these;
// every incoming message is interpreted against the current state.
const (
	StateMenu = "menu"

	StateRegFirstName = "reg_first_name"
	StateRegLastName  = "reg_last_name"
	StateRegGender    = "reg_gender"
	StateRegBirthDate = "reg_birth_date"
	StateRegPhone     = "reg_phone"

	StateBookDoctor = "book_doctor"
	StateBookDate   = "book_date"
	StateBookTime   = "book_time"

	StateSymptoms = "symptoms"

	StateCertStart = "cert_start"
	StateCertEnd   = "cert_end"
)

const birthDateLayout = "02.01.2006"

// Reply is one outgoing chat message, optionally with quick-reply options.
type Reply struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
}

type patientDirectory interface {
	ByExternalID(externalID string) (*models.Patient, error)
	Enroll(externalID, firstName, lastName, gender string, birthDate time.Time, phone string) (*models.Patient, error)
	RecentAppointments(patientID uint, limit int) ([]models.Appointment, error)
	Diagnoses(patientID uint) ([]models.Diagnosis, error)
}

type appointmentBooker interface {
	Book(externalID string, doctorID uint, dateStr, timeStr string) (*models.Appointment, error)
}

type slotSource interface {
	AvailableDates(doctorID uint, horizonDays int) []time.Time
	AvailableTimes(doctorID uint, date time.Time) []time.Time
}

type textClassifier interface {
	ClassifySymptoms(text string) (string, float64)
	ClassifyIntent(text string) string
}

type certificateComposer interface {
	Compose(patientID uint, startStr, endStr string) (*certificate.Record, error)
}

type doctorCatalog interface {
	All() ([]models.Doctor, error)
	BySpecialization(name string) ([]models.Doctor, error)
}

// Dialogue drives the conversation: registration, the main menu and
// the flows hanging off it. It holds no per-user state; everything
// between messages lives in the Session.
type Dialogue struct {
	directory  patientDirectory
	booker     appointmentBooker
	slots      slotSource
	classifier textClassifier
	certs      certificateComposer
	doctors    doctorCatalog
	hours      clinic.WorkingHours
	horizon    int
}

func NewDialogue(
	directory patientDirectory,
	booker appointmentBooker,
	slots slotSource,
	classifier textClassifier,
	certs certificateComposer,
	doctors doctorCatalog,
	hours clinic.WorkingHours,
	horizonDays int,
) *Dialogue {
	return &Dialogue{
		directory:  directory,
		booker:     booker,
		slots:      slots,
		classifier: classifier,
		certs:      certs,
		doctors:    doctors,
		hours:      hours,
		horizon:    horizonDays,
	}
}

// Handle interprets one incoming message against the session state and
// returns the replies to send. The session is mutated in place; the
// caller persists it afterwards.
func (d *Dialogue) Handle(session *Session, externalID, text string) []Reply {
	text = strings.TrimSpace(text)

	switch session.State {
	case StateRegFirstName, StateRegLastName, StateRegGender, StateRegBirthDate, StateRegPhone:
		return d.handleRegistration(session, externalID, text)
	case StateBookDoctor:
		return d.handleDoctorChoice(session, text)
	case StateBookDate:
		return d.handleDateChoice(session, text)
	case StateBookTime:
		return d.handleTimeChoice(session, externalID, text)
	case StateSymptoms:
		return d.handleSymptoms(session, text)
	case StateCertStart:
		return d.handleCertStart(session, text)
	case StateCertEnd:
		return d.handleCertEnd(session, externalID, text)
	}

	// Menu: unregistered visitors go through registration first.
	if _, err := d.directory.ByExternalID(externalID); err != nil {
		session.State = StateRegFirstName
		return []Reply{
			{Text: "Добро пожаловать в клинику! Для начала давайте познакомимся."},
			{Text: "Введите ваше имя:"},
		}
	}

	return d.handleMenu(session, externalID, text)
}

func menuReply() Reply {
	return Reply{
		Text: "Чем могу помочь?",
		Options: []string{
			"Записаться на приём",
			"Моя медкарта",
			"Подобрать специалиста",
			"Справка о болезни",
			"Часы работы",
			"Помощь",
		},
	}
}

func (d *Dialogue) handleMenu(session *Session, externalID, text string) []Reply {
	switch d.resolveIntent(text) {
	case "book_appointment":
		return d.startBooking(session)
	case "medcard":
		return d.showMedcard(session, externalID)
	case "recommend_specialist":
		session.State = StateSymptoms
		return []Reply{{Text: "Опишите, что вас беспокоит, и я подберу специалиста."}}
	case "certificate":
		session.State = StateCertStart
		return []Reply{{Text: "С какой даты вы болели? Укажите в формате ДД.ММ.ГГГГ."}}
	case "hours":
		return []Reply{{Text: d.hoursText()}, menuReply()}
	default:
		return []Reply{
			{Text: "Я помогу записаться на приём, показать медкарту, подобрать специалиста по симптомам или оформить справку."},
			menuReply(),
		}
	}
}

// resolveIntent matches the obvious keywords first and only then asks
// the classifier, so the sidecar being down never blocks the menu.
func (d *Dialogue) resolveIntent(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "запис") || strings.Contains(lower, "приём") || strings.Contains(lower, "прием"):
		return "book_appointment"
	case strings.Contains(lower, "карт"):
		return "medcard"
	case strings.Contains(lower, "специалист") || strings.Contains(lower, "подобр") || strings.Contains(lower, "симптом"):
		return "recommend_specialist"
	case strings.Contains(lower, "справк"):
		return "certificate"
	case strings.Contains(lower, "час") || strings.Contains(lower, "работ"):
		return "hours"
	case strings.Contains(lower, "помощь") || strings.Contains(lower, "help") || strings.Contains(lower, "start"):
		return "help"
	}
	return d.classifier.ClassifyIntent(text)
}

func (d *Dialogue) hoursText() string {
	var b strings.Builder
	b.WriteString("Часы работы клиники:\n")
	names := map[time.Weekday]string{
		time.Monday:    "Пн",
		time.Tuesday:   "Вт",
		time.Wednesday: "Ср",
		time.Thursday:  "Чт",
		time.Friday:    "Пт",
		time.Saturday:  "Сб",
		time.Sunday:    "Вс",
	}
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	for _, day := range order {
		if window, ok := d.hours[day]; ok {
			fmt.Fprintf(&b, "%s: %s\n", names[day], window.String())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// --- registration ---

func (d *Dialogue) handleRegistration(session *Session, externalID, text string) []Reply {
	switch session.State {
	case StateRegFirstName:
		if text == "" {
			return []Reply{{Text: "Введите ваше имя:"}}
		}
		session.Data["first_name"] = text
		session.State = StateRegLastName
		return []Reply{{Text: "Введите вашу фамилию:"}}

	case StateRegLastName:
		if text == "" {
			return []Reply{{Text: "Введите вашу фамилию:"}}
		}
		session.Data["last_name"] = text
		session.State = StateRegGender
		return []Reply{{Text: "Укажите ваш пол:", Options: []string{"Мужской", "Женский"}}}

	case StateRegGender:
		gender := normalizeGender(text)
		if gender == "" {
			return []Reply{{Text: "Пожалуйста, выберите пол:", Options: []string{"Мужской", "Женский"}}}
		}
		session.Data["gender"] = gender
		session.State = StateRegBirthDate
		return []Reply{{Text: "Введите дату рождения в формате ДД.ММ.ГГГГ:"}}

	case StateRegBirthDate:
		birthDate, err := time.ParseInLocation(birthDateLayout, text, time.Local)
		if err != nil || birthDate.After(time.Now()) {
			return []Reply{{Text: "Не получилось разобрать дату. Введите дату рождения в формате ДД.ММ.ГГГГ:"}}
		}
		session.Data["birth_date"] = text
		session.State = StateRegPhone
		return []Reply{{Text: "Введите ваш номер телефона:"}}

	case StateRegPhone:
		if len(strings.TrimLeft(text, "+")) < 7 {
			return []Reply{{Text: "Введите корректный номер телефона:"}}
		}
		birthDate, _ := time.ParseInLocation(birthDateLayout, session.Data["birth_date"], time.Local)
		_, err := d.directory.Enroll(
			externalID,
			session.Data["first_name"],
			session.Data["last_name"],
			session.Data["gender"],
			birthDate,
			text,
		)
		if err != nil {
			return []Reply{{Text: "Не удалось сохранить данные, попробуйте ещё раз чуть позже."}}
		}
		firstName := session.Data["first_name"]
		session.State = StateMenu
		session.Data = map[string]string{}
		return []Reply{
			{Text: fmt.Sprintf("Приятно познакомиться, %s! Регистрация завершена.", firstName)},
			menuReply(),
		}
	}
	return []Reply{menuReply()}
}

func normalizeGender(text string) string {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "м", "муж", "мужской", "male", "m":
		return "male"
	case "ж", "жен", "женский", "female", "f":
		return "female"
	}
	return ""
}

// --- booking ---

func (d *Dialogue) startBooking(session *Session) []Reply {
	doctors, err := d.doctors.All()
	if err != nil {
		session.State = StateMenu
		return []Reply{{Text: "Сервис временно недоступен, попробуйте позже."}, menuReply()}
	}
	if len(doctors) == 0 {
		session.State = StateMenu
		return []Reply{{Text: "Сейчас нет врачей, доступных для записи."}, menuReply()}
	}
	return d.offerDoctors(session, doctors, "К какому врачу вы хотите записаться? Введите номер:")
}

// offerDoctors lists doctors as a numbered menu and remembers the IDs
// behind the numbers in the session.
func (d *Dialogue) offerDoctors(session *Session, doctors []models.Doctor, prompt string) []Reply {
	var ids []string
	var lines []string
	for i, doctor := range doctors {
		ids = append(ids, strconv.FormatUint(uint64(doctor.ID), 10))
		line := fmt.Sprintf("%d. %s %s", i+1, doctor.LastName, doctor.FirstName)
		if doctor.Specialization != nil {
			line += fmt.Sprintf(" — %s", doctor.Specialization.Name)
		}
		lines = append(lines, line)
	}
	session.Data["doctor_ids"] = strings.Join(ids, ",")
	session.State = StateBookDoctor
	return []Reply{
		{Text: strings.Join(lines, "\n")},
		{Text: prompt},
	}
}

func (d *Dialogue) handleDoctorChoice(session *Session, text string) []Reply {
	ids := strings.Split(session.Data["doctor_ids"], ",")
	index, err := strconv.Atoi(text)
	if err != nil || index < 1 || index > len(ids) {
		return []Reply{{Text: fmt.Sprintf("Введите номер врача от 1 до %d:", len(ids))}}
	}
	doctorID, _ := strconv.ParseUint(ids[index-1], 10, 64)
	session.Data["doctor_id"] = ids[index-1]

	dates := d.slots.AvailableDates(uint(doctorID), d.horizon)
	if len(dates) == 0 {
		session.State = StateMenu
		return []Reply{
			{Text: "У этого врача нет свободных дат в ближайший месяц. Выберите другого врача или загляните позже."},
			menuReply(),
		}
	}

	options := make([]string, 0, len(dates))
	for _, date := range dates {
		options = append(options, date.Format("2006-01-02"))
	}
	session.State = StateBookDate
	return []Reply{{Text: "Выберите дату приёма:", Options: options}}
}

func (d *Dialogue) handleDateChoice(session *Session, text string) []Reply {
	doctorID := d.sessionDoctorID(session)

	// Only offered dates go further. A free-typed date on a weekday the
	// doctor does not work would lead to times the booking always rejects.
	dates := d.slots.AvailableDates(doctorID, d.horizon)
	if len(dates) == 0 {
		session.State = StateMenu
		return []Reply{
			{Text: "У этого врача не осталось свободных дат. Выберите другого врача или загляните позже."},
			menuReply(),
		}
	}
	options := make([]string, 0, len(dates))
	offered := false
	for _, candidate := range dates {
		formatted := candidate.Format("2006-01-02")
		options = append(options, formatted)
		if formatted == text {
			offered = true
		}
	}
	if !offered {
		return []Reply{{Text: "Выберите дату из предложенных вариантов:", Options: options}}
	}

	date, _ := time.ParseInLocation("2006-01-02", text, time.Local)
	times := d.slots.AvailableTimes(doctorID, date)
	if len(times) == 0 {
		return []Reply{{Text: "На эту дату свободного времени не осталось. Выберите другую:", Options: options}}
	}

	session.Data["date"] = text
	slots := make([]string, 0, len(times))
	for _, slot := range times {
		slots = append(slots, slot.Format("15:04"))
	}
	session.State = StateBookTime
	return []Reply{{Text: "Выберите время:", Options: slots}}
}

func (d *Dialogue) handleTimeChoice(session *Session, externalID, text string) []Reply {
	doctorID := d.sessionDoctorID(session)
	dateStr := session.Data["date"]

	booked, err := d.booker.Book(externalID, doctorID, dateStr, text)
	switch {
	case err == nil:
		session.State = StateMenu
		session.Data = map[string]string{}
		return []Reply{
			{Text: fmt.Sprintf("Готово! Вы записаны на %s в %s. Ждём вас!",
				booked.AppointmentDate.Format("02.01.2006"),
				booked.AppointmentDate.Format("15:04"))},
			menuReply(),
		}

	case errors.Is(err, appointment.ErrSlotTaken):
		// Someone else took the slot between listing and booking.
		date, _ := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		times := d.slots.AvailableTimes(doctorID, date)
		if len(times) == 0 {
			session.State = StateBookDate
			dates := d.slots.AvailableDates(doctorID, d.horizon)
			options := make([]string, 0, len(dates))
			for _, candidate := range dates {
				options = append(options, candidate.Format("2006-01-02"))
			}
			return []Reply{{Text: "Это время только что заняли, и других слотов на эту дату не осталось. Выберите другую дату:", Options: options}}
		}
		options := make([]string, 0, len(times))
		for _, slot := range times {
			options = append(options, slot.Format("15:04"))
		}
		return []Reply{{Text: "Это время только что заняли. Выберите другое:", Options: options}}

	case errors.Is(err, appointment.ErrInvalidSelection):
		date, _ := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		times := d.slots.AvailableTimes(doctorID, date)
		options := make([]string, 0, len(times))
		for _, slot := range times {
			options = append(options, slot.Format("15:04"))
		}
		return []Reply{{Text: "Выберите время из предложенных вариантов:", Options: options}}

	case errors.Is(err, appointment.ErrUnknownPatient):
		session.State = StateRegFirstName
		session.Data = map[string]string{}
		return []Reply{{Text: "Сначала нужно зарегистрироваться. Введите ваше имя:"}}

	default:
		session.State = StateMenu
		session.Data = map[string]string{}
		return []Reply{{Text: "Сервис временно недоступен, попробуйте записаться чуть позже."}, menuReply()}
	}
}

func (d *Dialogue) sessionDoctorID(session *Session) uint {
	id, _ := strconv.ParseUint(session.Data["doctor_id"], 10, 64)
	return uint(id)
}

// --- symptoms ---

func (d *Dialogue) handleSymptoms(session *Session, text string) []Reply {
	if text == "" {
		return []Reply{{Text: "Опишите, что вас беспокоит."}}
	}

	specialization, _ := d.classifier.ClassifySymptoms(text)
	doctors, err := d.doctors.BySpecialization(specialization)
	if err != nil || len(doctors) == 0 {
		session.State = StateMenu
		return []Reply{
			{Text: fmt.Sprintf("Похоже, вам нужен специалист: %s. К сожалению, сейчас нет врачей этого профиля, доступных для записи.", specialization)},
			menuReply(),
		}
	}

	replies := []Reply{{Text: fmt.Sprintf("Похоже, вам нужен специалист: %s.", specialization)}}
	return append(replies, d.offerDoctors(session, doctors, "Выберите врача для записи, введите номер:")...)
}

// --- medcard ---

func (d *Dialogue) showMedcard(session *Session, externalID string) []Reply {
	p, err := d.directory.ByExternalID(externalID)
	if err != nil {
		session.State = StateRegFirstName
		return []Reply{{Text: "Сначала нужно зарегистрироваться. Введите ваше имя:"}}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Медкарта: %s %s\n", p.LastName, p.FirstName)
	if p.BirthDate != nil {
		fmt.Fprintf(&b, "Дата рождения: %s\n", p.BirthDate.Format(birthDateLayout))
	}
	fmt.Fprintf(&b, "Телефон: %s\n", p.Phone)

	if appointments, err := d.directory.RecentAppointments(p.ID, 5); err == nil && len(appointments) > 0 {
		b.WriteString("\nПоследние приёмы:\n")
		for _, visit := range appointments {
			line := fmt.Sprintf("• %s %s", visit.AppointmentDate.Format("02.01.2006"), visit.AppointmentDate.Format("15:04"))
			if visit.Doctor != nil {
				line += fmt.Sprintf(" — %s %s", visit.Doctor.LastName, visit.Doctor.FirstName)
			}
			b.WriteString(line + "\n")
		}
	}

	if diagnoses, err := d.directory.Diagnoses(p.ID); err == nil && len(diagnoses) > 0 {
		b.WriteString("\nДиагнозы:\n")
		for _, diagnosis := range diagnoses {
			fmt.Fprintf(&b, "• %s (%s)\n", diagnosis.Name, diagnosis.DiagnosedAt.Format("02.01.2006"))
		}
	}

	return []Reply{{Text: strings.TrimRight(b.String(), "\n")}, menuReply()}
}

// --- certificate ---

func (d *Dialogue) handleCertStart(session *Session, text string) []Reply {
	if _, err := certificate.ParsePeriodDate(text, time.Now()); err != nil {
		return []Reply{{Text: certDateError(err) + " С какой даты вы болели?"}}
	}
	session.Data["cert_start"] = text
	session.State = StateCertEnd
	return []Reply{{Text: "По какую дату? Укажите в формате ДД.ММ.ГГГГ."}}
}

func (d *Dialogue) handleCertEnd(session *Session, externalID, text string) []Reply {
	p, err := d.directory.ByExternalID(externalID)
	if err != nil {
		session.State = StateRegFirstName
		session.Data = map[string]string{}
		return []Reply{{Text: "Сначала нужно зарегистрироваться. Введите ваше имя:"}}
	}

	record, err := d.certs.Compose(p.ID, session.Data["cert_start"], text)
	if err != nil {
		switch {
		case errors.Is(err, certificate.ErrReversedPeriod):
			session.State = StateCertStart
			return []Reply{{Text: "Дата начала позже даты окончания. Давайте заново: с какой даты вы болели?"}}
		case errors.Is(err, certificate.ErrBadDateFormat), errors.Is(err, certificate.ErrWrongYear):
			return []Reply{{Text: certDateError(err) + " По какую дату вы болели?"}}
		default:
			session.State = StateMenu
			session.Data = map[string]string{}
			return []Reply{{Text: "Не удалось оформить справку, попробуйте позже."}, menuReply()}
		}
	}

	session.State = StateMenu
	session.Data = map[string]string{}
	return []Reply{
		{Text: fmt.Sprintf("Справка №%s оформлена за период %s — %s. Получить PDF можно в личном кабинете.",
			record.Reference, record.PeriodStart, record.PeriodEnd)},
		menuReply(),
	}
}

func certDateError(err error) string {
	switch {
	case errors.Is(err, certificate.ErrWrongYear):
		return "Справки выдаются только за текущий год."
	default:
		return "Не получилось разобрать дату, нужен формат ДД.ММ.ГГГГ."
	}
}
