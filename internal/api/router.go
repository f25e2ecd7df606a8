package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/app"
	iauth "github.com/bloodbridge/bloodbridge/internal/auth"
	"github.com/bloodbridge/bloodbridge/internal/cache"
	"github.com/bloodbridge/bloodbridge/internal/handlers"
	"github.com/bloodbridge/bloodbridge/internal/middleware"
	"github.com/bloodbridge/bloodbridge/internal/monitoring"
	"github.com/bloodbridge/bloodbridge/internal/notifications"
	"github.com/bloodbridge/bloodbridge/internal/realtime"
	"github.com/bloodbridge/bloodbridge/internal/security"
	"github.com/bloodbridge/bloodbridge/internal/services"
	"github.com/bloodbridge/bloodbridge/internal/storage"
)

const maxMultipartMemory = 8 << 20

// Dependencies are the collaborators the router wires into handlers.
// Hub, Publisher and Health are optional.
type Dependencies struct {
	DB        *gorm.DB
	JWT       *iauth.JWTService
	Config    *app.Config
	Storage   *storage.Store
	Cache     cache.Store
	Hub       *realtime.Hub
	Publisher notifications.Publisher
	Health    *monitoring.HealthManager
}

func (d Dependencies) validate() error {
	switch {
	case d.DB == nil:
		return errors.New("api: database handle must be provided")
	case d.JWT == nil:
		return errors.New("api: jwt service must be provided")
	case d.Config == nil:
		return errors.New("api: config must be provided")
	case d.Storage == nil:
		return errors.New("api: storage must be provided")
	case d.Cache == nil:
		return errors.New("api: cache store must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers every route under /api.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	publisher := deps.Publisher
	if publisher == nil && deps.Hub != nil {
		publisher = deps.Hub
	}
	notifier, err := services.NewNotificationService(deps.DB, publisher,
		services.WithFanOutBatchSize(cfg.Notifications.FanoutBatchSize),
		services.WithRetryBackoff(cfg.Notifications.RetryBackoff),
	)
	if err != nil {
		return nil, err
	}
	svc, err := newServiceSet(deps.DB, notifier)
	if err != nil {
		return nil, err
	}

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowedOrigins))
	if cfg.Server.RateLimit.Enabled {
		window := cfg.Server.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(deps.Cache, cfg.Server.RateLimit.Requests, window))
	}

	health := deps.Health
	if health == nil {
		health = monitoring.NewHealthManager(monitoring.Database(deps.DB, 0))
	}
	registerHealthRoutes(r, health)
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(svc.users, deps.JWT)
	public := r.Group("/api")
	registerPublicAuthRoutes(public, authHandler)

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT, svc.users))
	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())

	api.GET("/auth/me", authHandler.Me)

	registerBloodRequestRoutes(api, admin,
		handlers.NewBloodRequestHandler(svc.requests, svc.search, deps.Storage),
		handlers.NewDonorHandler(svc.donors),
	)
	registerNotificationRoutes(api, handlers.NewNotificationHandler(notifier, deps.Hub))
	registerOrganizationRoutes(api, admin,
		handlers.NewOrganizationHandler(svc.search, svc.applications, svc.stock, deps.Storage),
	)
	registerCampaignRoutes(api, admin, handlers.NewCampaignHandler(svc.campaigns, deps.Storage))
	registerSecurityRoutes(admin, handlers.NewSecurityHandler(security.NewAuditService(deps.DB, deps.JWT, cfg)))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

type serviceSet struct {
	users        *services.UserService
	requests     *services.BloodRequestService
	donors       *services.DonorService
	search       *services.SearchService
	stock        *services.BloodStockService
	applications *services.OrganizationRequestService
	campaigns    *services.CampaignService
}

func newServiceSet(db *gorm.DB, notifier services.Notifier) (*serviceSet, error) {
	var (
		set serviceSet
		err error
	)
	if set.users, err = services.NewUserService(db); err != nil {
		return nil, err
	}
	if set.requests, err = services.NewBloodRequestService(db, notifier); err != nil {
		return nil, err
	}
	if set.donors, err = services.NewDonorService(db, notifier); err != nil {
		return nil, err
	}
	if set.search, err = services.NewSearchService(db); err != nil {
		return nil, err
	}
	if set.stock, err = services.NewBloodStockService(db); err != nil {
		return nil, err
	}
	if set.applications, err = services.NewOrganizationRequestService(db); err != nil {
		return nil, err
	}
	if set.campaigns, err = services.NewCampaignService(db, notifier); err != nil {
		return nil, err
	}
	return &set, nil
}
