// Package notify decides who is told about what. Delivery itself is a Sender.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mcclellann/coopledger/pkg/models"
	"github.com/mcclellann/coopledger/pkg/store"
)

// ErrNoToken is returned when the user has no registered device.
var ErrNoToken = errors.New("user has no device token")

// Sender delivers one push message to a device token.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(_ context.Context, token, title, body string) error {
	log.Printf("[notify] push to %s: %s - %s", token, title, body)
	return nil
}

// NewSender returns an FCM sender when a credentials file is configured, otherwise a LogSender.
func NewSender(ctx context.Context, credentialsFile string) Sender {
	if credentialsFile == "" {
		return LogSender{}
	}
	fcm, err := NewFCMSender(ctx, credentialsFile)
	if err != nil {
		log.Printf("[FCM] disabled: %v", err)
		return LogSender{}
	}
	return fcm
}

// Service sends notifications to users and keeps a delivery log.
type Service struct {
	storage store.Storage
	sender  Sender
}

func NewService(s store.Storage, sender Sender) *Service {
	return &Service{storage: s, sender: sender}
}

// NotifyUser pushes a message to the user's device and records the outcome.
// Callers treat a returned error as best-effort: log it and carry on.
func (s *Service) NotifyUser(ctx context.Context, userID uint, title, body string) error {
	user, err := s.storage.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	return s.notify(ctx, user, title, body)
}

func (s *Service) notify(ctx context.Context, user *models.User, title, body string) error {
	n := &models.Notification{UserID: user.ID, Title: title, Body: body}

	var sendErr error
	switch {
	case user.FCMToken == "":
		n.Status = models.NotificationStatusSkipped
		sendErr = ErrNoToken
	default:
		sendErr = s.sender.Send(ctx, user.FCMToken, title, body)
		n.Status = models.NotificationStatusSent
		if sendErr != nil {
			n.Status = models.NotificationStatusFailed
			n.Error = sendErr.Error()
		}
	}

	if err := s.storage.CreateNotification(ctx, n); err != nil {
		log.Printf("[notify] failed to record notification for user %d: %v", user.ID, err)
	}
	if sendErr != nil {
		return fmt.Errorf("notify user %d: %w", user.ID, sendErr)
	}
	return nil
}
