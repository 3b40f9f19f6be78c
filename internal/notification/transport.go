package notification

import (
	"context"

	log "github.com/sirupsen/logrus"
)

type Email struct {
	To      string
	Subject string
	Body    string
	HTML    string
}

type SMS struct {
	To      string
	Message string
}

type Transport interface {
	SendEmail(ctx context.Context, email Email) error
	SendSMS(ctx context.Context, sms SMS) error
}

// LogTransport simulates delivery by writing every message to the process log.
type LogTransport struct{}

func (LogTransport) SendEmail(ctx context.Context, email Email) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"to":      email.To,
		"subject": email.Subject,
	}).Info("Email sent")
	log.WithField("to", email.To).Debug(email.Body)
	return nil
}

func (LogTransport) SendSMS(ctx context.Context, sms SMS) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"to":      sms.To,
		"message": sms.Message,
	}).Info("SMS sent")
	return nil
}
