// Package email delivers compliance notifications. Delivery is best-effort:
// callers log failures and continue, a missed email never blocks a billing
// flow.
package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}

// NoOpProvider is used when SMTP is not configured (local development,
// tests).
type NoOpProvider struct{}

func (NoOpProvider) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	return nil
}
