package monitoring

import (
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/bivex/paygate/internal/infrastructure/config"
)

var enabled atomic.Bool

// InitSentry configures the global Sentry client
func InitSentry(cfg config.SentryConfig) error {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		AttachStacktrace: true,
	})
	if err != nil {
		return err
	}
	enabled.Store(true)
	return nil
}

// CapturePaymentError reports a payment failure tagged with gateway and operation.
// It is a no-op until InitSentry succeeds.
func CapturePaymentError(err error, gateway, operation string, extra map[string]any) {
	if err == nil || !enabled.Load() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("gateway", gateway)
		scope.SetTag("operation", operation)
		if len(extra) > 0 {
			scope.SetContext("payment", sentry.Context(extra))
		}
		sentry.CaptureException(err)
	})
}

// Flush waits for buffered events to be sent
func Flush() {
	if enabled.Load() {
		sentry.Flush(2 * time.Second)
	}
}
