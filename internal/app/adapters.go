package app

import (
	"strings"

	"github.com/bloodbridge/bloodbridge/internal/database"
	"github.com/bloodbridge/bloodbridge/internal/storage"
)

// ConnectionConfig selects the host credentials matching the configured driver.
func (c DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver:  c.Driver,
		Path:    c.Path,
		DSN:     c.DSN,
		Options: c.Options,
		LogSQL:  c.LogSQL,
	}

	var host DBAuthConfig
	switch strings.ToLower(c.Driver) {
	case "postgres", "postgresql":
		host = c.Postgres
	case "mysql":
		host = c.MySQL
	default:
		return cfg
	}
	cfg.Host = host.Host
	cfg.Port = host.Port
	cfg.Name = host.Database
	cfg.User = host.Username
	cfg.Password = host.Password
	return cfg
}

// SeedOptions converts the admin seed section.
func (c SeedConfig) SeedOptions() database.SeedOptions {
	return database.SeedOptions{
		AdminEmail:     c.Admin.Email,
		AdminPassword:  c.Admin.Password,
		AdminFirstName: c.Admin.FirstName,
		AdminLastName:  c.Admin.LastName,
	}
}

// StoreConfig converts the storage section.
func (c StorageConfig) StoreConfig() storage.Config {
	return storage.Config{
		Backend:           c.Backend,
		Root:              c.Root,
		PublicBaseURL:     c.PublicBaseURL,
		MaxUploadSize:     c.MaxUploadSize,
		AllowedExtensions: c.AllowedExtensions,
		S3: storage.S3Config{
			Bucket:         c.S3.Bucket,
			Region:         c.S3.Region,
			Endpoint:       c.S3.Endpoint,
			AccessKey:      c.S3.AccessKey,
			SecretKey:      c.S3.SecretKey,
			ForcePathStyle: c.S3.ForcePathStyle,
			Prefix:         c.S3.Prefix,
		},
	}
}
