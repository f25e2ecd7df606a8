package monitoring

import (
	"context"
	"time"

	"gorm.io/gorm"
)

const defaultCheckTimeout = 2 * time.Second

// Pinger is implemented by the redis store and the AMQP publisher.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database pings the SQL connection pool behind db.
func Database(db *gorm.DB, timeout time.Duration) Check {
	return Check{Name: "database", Run: func(ctx context.Context) CheckResult {
		if db == nil {
			return CheckResult{Status: StatusDown, Details: "database not configured"}
		}
		sqlDB, err := db.DB()
		if err != nil {
			return ResultFromError(err)
		}

		ctx, cancel := context.WithTimeout(ctx, checkTimeout(timeout))
		defer cancel()
		return ResultFromError(sqlDB.PingContext(ctx))
	}}
}

// Ping checks an optional dependency. A nil pinger reports up with "disabled".
func Ping(name string, pinger Pinger, timeout time.Duration) Check {
	return Check{Name: name, Run: func(ctx context.Context) CheckResult {
		if pinger == nil {
			return CheckResult{Status: StatusUp, Details: "disabled"}
		}

		ctx, cancel := context.WithTimeout(ctx, checkTimeout(timeout))
		defer cancel()
		return ResultFromError(pinger.Ping(ctx))
	}}
}

func checkTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return defaultCheckTimeout
	}
	return timeout
}
