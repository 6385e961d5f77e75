// Package notifications records and delivers outbound email.
package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/providerdesk/backoffice/internal/app/domain/notification"
	"github.com/providerdesk/backoffice/internal/app/metrics"
	"github.com/providerdesk/backoffice/internal/app/storage"
	"github.com/providerdesk/backoffice/internal/errors"
	"github.com/providerdesk/backoffice/internal/logging"
)

// Sender delivers a single email. The HTTP mailer client implements this;
// tests supply fakes.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service records every send attempt and forwards it to the sender. A nil
// sender leaves notifications in pending state for later delivery.
type Service struct {
	store  storage.NotificationStore
	sender Sender
	log    *logging.Logger
}

// New creates a configured notification service.
func New(store storage.NotificationStore, sender Sender, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("notifications")
	}
	return &Service{store: store, sender: sender, log: log}
}

// Send records the notification and attempts delivery. The record is
// persisted regardless of delivery outcome.
func (s *Service) Send(ctx context.Context, orgID string, t notification.Type, recipient, subject, body string) (notification.Notification, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return notification.Notification{}, errors.Validation("recipient is required")
	}

	n, err := s.store.CreateNotification(ctx, notification.Notification{
		OrgID:     orgID,
		Type:      t,
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		Status:    notification.StatusPending,
	})
	if err != nil {
		return notification.Notification{}, err
	}

	if s.sender == nil {
		s.log.WithField("notification_id", n.ID).Warn("no mail sender attached; notification left pending")
		return n, nil
	}

	if err := s.sender.Send(ctx, recipient, subject, body); err != nil {
		n.Status = notification.StatusFailed
		n.Error = err.Error()
		metrics.RecordEmail(string(t), false)
		s.log.WithError(err).
			WithField("notification_id", n.ID).
			WithField("recipient", recipient).
			Warn("email delivery failed")
	} else {
		n.Status = notification.StatusSent
		n.SentAt = time.Now().UTC()
		metrics.RecordEmail(string(t), true)
	}

	updated, err := s.store.UpdateNotification(ctx, n)
	if err != nil {
		return n, err
	}
	return updated, nil
}

// List returns the notification history for an organization.
func (s *Service) List(ctx context.Context, orgID string) ([]notification.Notification, error) {
	return s.store.ListNotifications(ctx, orgID)
}
