package integration

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// SentrySink forwards handled errors to Sentry with the caller's tags.
// An empty DSN initializes a no-op client, so captures are safe to call
// unconditionally.
type SentrySink struct {
	hub *sentry.Hub
}

func NewSentrySink(dsn, environment string) (*SentrySink, error) {
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return &SentrySink{hub: sentry.CurrentHub()}, nil
}

func (s *SentrySink) Capture(err error, tags map[string]string) {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

// Flush drains buffered events, typically right before exit.
func (s *SentrySink) Flush(timeout time.Duration) {
	s.hub.Flush(timeout)
}
