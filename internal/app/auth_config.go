package app

import (
	"strings"
	"time"

	"github.com/bloodbridge/bloodbridge/internal/auth"
)

const (
	defaultTokenIssuer = "bloodbridge"
	// longer configured lifetimes are clamped to this
	maxAccessTokenTTL = 30 * 24 * time.Hour
)

// JWTServiceConfig builds the token settings for donor, organization and admin sessions.
// Blank values fall back to the bloodbridge issuer and the default lifetime.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	issuer := strings.TrimSpace(c.JWT.Issuer)
	if issuer == "" {
		issuer = defaultTokenIssuer
	}

	ttl := c.JWT.TTL
	switch {
	case ttl <= 0:
		ttl = auth.DefaultAccessTokenTTL
	case ttl > maxAccessTokenTTL:
		ttl = maxAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         strings.TrimSpace(c.JWT.Secret),
		Issuer:         issuer,
		AccessTokenTTL: ttl,
	}
}
