package notify

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// ErrTokenUnregistered reports that the device token is no longer valid and
// should be discarded.
var ErrTokenUnregistered = errors.New("device token unregistered")

// PushMessage is a device notification.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// FCMPusher sends notifications through Firebase Cloud Messaging.
type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher initialises a Firebase app from a service account file.
func NewFCMPusher(ctx context.Context, projectID, credentialsFile string) (*FCMPusher, error) {
	var cfg *firebase.Config
	if projectID != "" {
		cfg = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase: init app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase: init messaging: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

// Push delivers msg to a single device.
func (p *FCMPusher) Push(ctx context.Context, msg PushMessage) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Token: msg.Token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	})
	if err != nil {
		if messaging.IsUnregistered(err) {
			return ErrTokenUnregistered
		}
		return fmt.Errorf("firebase: send: %w", err)
	}
	return nil
}
