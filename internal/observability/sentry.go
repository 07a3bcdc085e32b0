package observability

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry is a no-op without a DSN, so handlers may capture unconditionally.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return scrubCredentials(event)
		},
	})
}

func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// scrubCredentials drops session cookies and bearer headers from reported
// requests.
func scrubCredentials(event *sentry.Event) *sentry.Event {
	if event == nil || event.Request == nil {
		return event
	}

	event.Request.Cookies = ""
	for name := range event.Request.Headers {
		switch strings.ToLower(name) {
		case "authorization", "cookie", "set-cookie":
			delete(event.Request.Headers, name)
		}
	}

	return event
}
