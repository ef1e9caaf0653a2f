package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/razumed/clinic-server/service/appointment"
	"github.com/razumed/clinic-server/service/certificate"
	"github.com/razumed/clinic-server/service/chat"
	"github.com/razumed/clinic-server/service/clinic"
	"github.com/razumed/clinic-server/service/dashboard"
	"github.com/razumed/clinic-server/service/doctor"
	notification "github.com/razumed/clinic-server/service/notifications"
	"github.com/razumed/clinic-server/service/patient"
	"github.com/razumed/clinic-server/service/recommendation"
	"github.com/razumed/clinic-server/service/reminder"
	"github.com/razumed/clinic-server/service/schedule"
	"gorm.io/gorm"
)

type APIServer struct {
	address string
	db      *gorm.DB
}

func NewApiServer(address string, db *gorm.DB) *APIServer {
	return &APIServer{
		address: address,
		db:      db,
	}
}

func (s *APIServer) Run() error {
	hours, err := clinic.LoadWorkingHours()
	if err != nil {
		return err
	}

	router := mux.NewRouter()
	subrouter := router.PathPrefix("/api/v1").Subrouter()

	patientHandler := patient.NewHandler(s.db)
	patientHandler.RegisterRoutes(subrouter)

	doctorHandler := doctor.NewHandler(s.db)
	doctorHandler.RegisterRoutes(subrouter)

	scheduleHandler := schedule.NewScheduleHandler(s.db, hours)
	scheduleHandler.RegisterRoutes(subrouter)

	appointmentHandler := appointment.NewAppointmentHandler(s.db, hours)
	appointmentHandler.RegisterRoutes(subrouter)

	recommendationHandler := recommendation.NewHandler(s.db)
	recommendationHandler.RegisterRoutes(subrouter)

	certificateHandler := certificate.NewHandler(s.db, "")
	certificateHandler.RegisterRoutes(subrouter)

	notificationHandler := notification.NewNotificationHandler(s.db)
	notificationHandler.RegisterRoutes(subrouter)

	dashboardHandler := dashboard.NewDashboardHandler(s.db)
	dashboardHandler.RegisterRoutes(subrouter)

	sessions, err := chat.NewSessionStore()
	if err != nil {
		return err
	}
	dialogue := chat.NewDialogue(
		patientHandler.Directory(),
		appointmentHandler.Booking(),
		scheduleHandler.Generator(),
		recommendationHandler.Classifier(),
		certificateHandler.Service(),
		chat.NewCatalog(s.db),
		hours,
		schedule.DefaultHorizonDays,
	)
	chatHandler := chat.NewGatewayHandler(dialogue, sessions)
	chatHandler.RegisterRoutes(router)

	go reminder.New(s.db, notificationHandler).Run(context.Background())

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)

	log.Println("Server running at", s.address)
	return http.ListenAndServe(s.address, cors(router))
}
