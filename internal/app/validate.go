package app

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}

	var err error
	if strings.TrimSpace(c.Auth.JWT.Secret) == "" {
		err = multierr.Append(err, fmt.Errorf("config: auth.jwt.secret is required (set %s_AUTH_JWT_SECRET)", EnvPrefix))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("config: server.port %d out of range", c.Server.Port))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		err = multierr.Append(err, fmt.Errorf("config: unsupported database.driver %q", c.Database.Driver))
	}
	switch c.Cache.DriverName() {
	case CacheDriverDatabase, CacheDriverMemory, CacheDriverRedis:
	default:
		err = multierr.Append(err, fmt.Errorf("config: unsupported cache.driver %q", c.Cache.Driver))
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "", "local":
	case "s3":
		if strings.TrimSpace(c.Storage.S3.Bucket) == "" {
			err = multierr.Append(err, errors.New("config: storage.s3.bucket is required for the s3 backend"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("config: unsupported storage.backend %q", c.Storage.Backend))
	}
	if c.Notifications.Broker.Enabled && strings.TrimSpace(c.Notifications.Broker.URL) == "" {
		err = multierr.Append(err, errors.New("config: notifications.broker.url is required when the broker is enabled"))
	}
	if c.Seed.Admin.Email != "" && len(c.Seed.Admin.Password) < 8 {
		err = multierr.Append(err, errors.New("config: seed.admin.password must be at least 8 characters"))
	}
	return err
}
