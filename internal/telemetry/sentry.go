// Package telemetry initializes Sentry error tracking for the batch jobs
// service and scrubs tenant-identifying data before events leave the
// process.
package telemetry

import (
	"fmt"
	"os"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes the Sentry SDK. dsn may be empty, in which case
// Sentry is disabled and this is not an error — the service must run without
// an external error tracker configured.
func InitSentry(dsn, release string) error {
	env := os.Getenv("BATCHJOBS_ENV")
	if env == "" {
		env = "development"
	}

	if dsn == "" {
		fmt.Fprintln(os.Stderr, "[telemetry] SENTRY_DSN not set — Sentry disabled")
		return nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		Release:          release,
		AttachStacktrace: true,
		Tags: map[string]string{
			"service": "batchjobs",
		},
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			return scrubTenantData(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry.Init: %w", err)
	}
	return nil
}

// CaptureError reports err to Sentry with optional tags (jobType, tenantId,
// jobExecutionId). Safe to call when Sentry is disabled.
func CaptureError(err error, tags map[string]string) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// scrubTenantData removes request body/header fields that could carry a
// decrypted provider secret or recipient email from an event before it is
// sent upstream.
func scrubTenantData(event *sentry.Event) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
		event.Request.Headers = nil
	}
	return event
}
