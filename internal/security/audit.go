package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bloodbridge/bloodbridge/internal/app"
	iauth "github.com/bloodbridge/bloodbridge/internal/auth"
	"github.com/bloodbridge/bloodbridge/internal/models"
)

// CheckStatus captures the outcome of a security audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// maxRecommendedTokenTTL bounds how long a stolen bearer token stays usable.
const maxRecommendedTokenTTL = 7 * 24 * time.Hour

// Check contains the result of a single audit verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a status summary.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// AuditService evaluates deployment settings that weaken the API when left at unsafe values.
type AuditService struct {
	db  *gorm.DB
	jwt *iauth.JWTService
	cfg *app.Config
	now func() time.Time
}

// NewAuditService constructs the audit service. Missing dependencies degrade their checks to warnings.
func NewAuditService(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config) *AuditService {
	return &AuditService{db: db, jwt: jwt, cfg: cfg, now: time.Now}
}

// WithClock overrides the clock used in results.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Run executes all audit checks and returns their outcome.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	checks := []Check{
		s.checkAdminPresent(ctx),
		s.checkJWTSecret(),
		s.checkTokenTTL(),
		s.checkCORS(),
		s.checkRateLimit(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{CheckedAt: s.now().UTC(), Checks: checks, Summary: summary}
}

func (s *AuditService) checkAdminPresent(ctx context.Context) Check {
	const id = "admin_present"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable; unable to confirm an administrator exists.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("is_admin = ?", true).Count(&count).Error; err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count administrators: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}
	if count == 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     "No administrator account exists; blood requests cannot be reviewed.",
			Remediation: fmt.Sprintf("Set %s_SEED_ADMIN_EMAIL and %s_SEED_ADMIN_PASSWORD and restart.", app.EnvPrefix, app.EnvPrefix),
		}
	}
	return Check{ID: id, Status: StatusPass, Message: "Administrator present.", Details: map[string]any{"count": count}}
}

func (s *AuditService) checkJWTSecret() Check {
	const id = "jwt_secret_strength"
	if s.jwt == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "JWT service not initialised; unable to assess signing secret strength.",
			Remediation: "Initialise the JWT service with a strong secret.",
		}
	}

	length := s.jwt.SecretLength()
	switch {
	case length < 32:
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			Remediation: "Use a randomly generated secret of at least 32 bytes.",
			Details:     map[string]any{"length": length},
		}
	case length < 48:
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("JWT signing secret is %d bytes. Consider increasing to 48+ bytes.", length),
			Remediation: fmt.Sprintf("Increase the length of %s_AUTH_JWT_SECRET to at least 48 bytes.", app.EnvPrefix),
			Details:     map[string]any{"length": length},
		}
	default:
		return Check{
			ID:      id,
			Status:  StatusPass,
			Message: fmt.Sprintf("JWT signing secret length is %d bytes.", length),
			Details: map[string]any{"length": length},
		}
	}
}

func (s *AuditService) checkTokenTTL() Check {
	const id = "access_token_ttl"
	if s.jwt == nil {
		return Check{ID: id, Status: StatusWarn, Message: "JWT service not initialised; unable to read token lifetime."}
	}

	ttl := s.jwt.AccessTokenTTL()
	if ttl > maxRecommendedTokenTTL {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Access token TTL (%s) exceeds the recommended maximum (%s).", ttl, maxRecommendedTokenTTL),
			Remediation: "Reduce auth.jwt.access_token_ttl to limit exposure of leaked tokens.",
			Details:     map[string]any{"ttl": ttl.String()},
		}
	}
	return Check{ID: id, Status: StatusPass, Message: fmt.Sprintf("Access token TTL is %s.", ttl), Details: map[string]any{"ttl": ttl.String()}}
}

func (s *AuditService) checkCORS() Check {
	const id = "cors_origins"
	if s.cfg == nil {
		return Check{ID: id, Status: StatusWarn, Message: "Configuration not loaded; unable to inspect CORS origins."}
	}

	for _, origin := range s.cfg.Server.CORS.AllowedOrigins {
		if strings.TrimSpace(origin) == "*" {
			return Check{
				ID:          id,
				Status:      StatusWarn,
				Message:     "CORS allows every origin.",
				Remediation: "List the frontend origins explicitly in server.cors.allowed_origins.",
			}
		}
	}
	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "CORS origins are restricted.",
		Details: map[string]any{"origins": s.cfg.Server.CORS.AllowedOrigins},
	}
}

func (s *AuditService) checkRateLimit() Check {
	const id = "rate_limit"
	if s.cfg == nil {
		return Check{ID: id, Status: StatusWarn, Message: "Configuration not loaded; unable to inspect rate limiting."}
	}
	if !s.cfg.Server.RateLimit.Enabled {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Rate limiting is disabled; login and registration can be brute-forced.",
			Remediation: "Enable server.rate_limit.",
		}
	}
	return Check{
		ID:     id,
		Status: StatusPass,
		Message: fmt.Sprintf("Rate limiting allows %d requests per %s.",
			s.cfg.Server.RateLimit.Requests, s.cfg.Server.RateLimit.Window),
	}
}
