package container

import (
	"context"
	"database/sql"

	"resourcehive/internal/activity"
	"resourcehive/internal/allocation"
	"resourcehive/internal/config"
	"resourcehive/internal/incidents"
	"resourcehive/internal/inventory"
	"resourcehive/internal/metrics"
	"resourcehive/internal/notify"
	"resourcehive/internal/permissions"
	"resourcehive/internal/reports"
	"resourcehive/internal/repository"
	"resourcehive/internal/scheduler"
	"resourcehive/internal/users"
	"resourcehive/pkg/security"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type Container struct {
	Repository *repository.Repository
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics

	Authenticator *security.Authenticator
	Scheduler     *scheduler.Scheduler

	InventoryHandler    *inventory.InventoryHandler
	RequestHandler      *allocation.RequestHandler
	ReportHandler       *reports.ReportHandler
	UserHandler         *users.UserHandler
	IncidentHandler     *incidents.IncidentHandler
	NotificationHandler *notify.NotificationHandler
	ActivityHandler     *activity.ActivityHandler

	SupplyRequests *allocation.SupplyRequestService
	BorrowRequests *allocation.BorrowRequestService
	Reservations   *allocation.ReservationService
}

func NewAppContainer(db *sql.DB, cfg *config.Config, log *zap.Logger) (*Container, error) {
	location, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	repo := repository.NewRepository(db)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	recorder := activity.NewRecorder(repo)
	permissionRepo := permissions.NewPermissionRepository(repo)
	arbiter := permissions.NewArbiter(permissionRepo)

	notificationRepo := notify.NewNotificationRepository(repo)
	emailSink := notify.NewEmailSink(cfg)
	smsSink := notify.NewSMSSink(cfg)
	bus := notify.NewBus(notificationRepo, emailSink, smsSink, m, log)

	supplyRepo := inventory.NewSupplyRepository(repo)
	propertyRepo := inventory.NewPropertyRepository(repo)
	categoryRepo := inventory.NewCategoryRepository(repo)
	inventoryService := inventory.NewInventoryService(repo, supplyRepo, propertyRepo, categoryRepo, recorder, arbiter, log)
	inventoryHandler := inventory.NewInventoryHandler(inventoryService, supplyRepo, propertyRepo, categoryRepo, recorder)

	supplyRequestRepo := allocation.NewSupplyRequestRepository(repo)
	borrowRequestRepo := allocation.NewBorrowRequestRepository(repo)
	reservationRepo := allocation.NewReservationRepository(repo)
	supplyRequests := allocation.NewSupplyRequestService(repo, supplyRequestRepo, supplyRepo, recorder, bus, arbiter, m, location, log)
	borrowRequests := allocation.NewBorrowRequestService(repo, borrowRequestRepo, reservationRepo, propertyRepo, recorder, bus, arbiter, m, location, log)
	reservations := allocation.NewReservationService(repo, reservationRepo, borrowRequestRepo, propertyRepo, recorder, bus, arbiter, m, location, log)
	requestHandler := allocation.NewRequestHandler(supplyRequests, borrowRequests, reservations)

	reportRepo := reports.NewReportRepository(repo)
	var sheetsExporter *reports.SheetsExporter
	if cfg.ReportSpreadsheetID != "" {
		sheetsExporter, err = reports.NewSheetsExporter(context.Background(), cfg, reportRepo, log)
		if err != nil {
			log.Warn("Google Sheets export disabled", zap.Error(err))
			sheetsExporter = nil
		}
	}
	reportHandler := reports.NewReportHandler(reportRepo, sheetsExporter)

	userRepo := users.NewUserRepository(repo)
	userService := users.NewUserService(repo, userRepo, permissionRepo, arbiter, recorder, log)
	userHandler := users.NewUserHandler(userService)

	incidentRepo := incidents.NewIncidentRepository(repo)
	incidentService := incidents.NewIncidentService(repo, incidentRepo, inventoryService, recorder, bus, arbiter, log)
	incidentHandler := incidents.NewIncidentHandler(incidentService)

	sessions := security.NewSessionStore(repo)
	authenticator := security.NewAuthenticator(repo, sessions, cfg.JWTSecret, cfg.SessionCookieAge, cfg.PasswordResetTimeout, bus, log)

	sched := scheduler.New(borrowRequests, reservations, m, location, log)

	return &Container{
		Repository:          repo,
		Registry:            registry,
		Metrics:             m,
		Authenticator:       authenticator,
		Scheduler:           sched,
		InventoryHandler:    inventoryHandler,
		RequestHandler:      requestHandler,
		ReportHandler:       reportHandler,
		UserHandler:         userHandler,
		IncidentHandler:     incidentHandler,
		NotificationHandler: notify.NewNotificationHandler(notificationRepo),
		ActivityHandler:     activity.NewActivityHandler(recorder),
		SupplyRequests:      supplyRequests,
		BorrowRequests:      borrowRequests,
		Reservations:        reservations,
	}, nil
}
