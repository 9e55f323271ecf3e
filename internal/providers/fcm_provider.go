package providers

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// PushProvider delivers mobile push notifications.
type PushProvider interface {
	Send(ctx context.Context, token, title, body string, data map[string]string) (string, error)
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, error)
	SendTopic(ctx context.Context, topic, title, body string, data map[string]string) (string, error)
}

// FCMProvider implements PushProvider via Firebase Cloud Messaging
type FCMProvider struct {
	client *messaging.Client
	logger *logrus.Logger
}

// NewFCMProvider creates a new FCM push notification provider
func NewFCMProvider(ctx context.Context, credentialsFile, credentialsJSON string, logger *logrus.Logger) (*FCMProvider, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var opts []option.ClientOption
	if credentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	} else if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get FCM client: %w", err)
	}

	return &FCMProvider{
		client: client,
		logger: logger,
	}, nil
}

// Send sends a push notification to a single device token
func (p *FCMProvider) Send(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	fcmMessage := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Badge: new(int),
					Sound: "default",
				},
			},
		},
	}

	response, err := p.client.Send(ctx, fcmMessage)
	if err != nil {
		return "", err
	}
	return response, nil
}

// SendMulticast sends a push notification to multiple devices and
// returns the success count
func (p *FCMProvider) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{
				"apns-priority": "10",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						Title: title,
						Body:  body,
					},
					Badge: new(int),
					Sound: "default",
				},
			},
		},
	}

	resp, err := p.client.SendMulticast(ctx, message)
	if err != nil {
		return 0, err
	}
	if resp.FailureCount > 0 {
		p.logger.WithFields(logrus.Fields{
			"success": resp.SuccessCount,
			"failure": resp.FailureCount,
		}).Warn("Some push notifications failed")
	}
	return resp.SuccessCount, nil
}

// SendTopic sends a push notification to every device subscribed to a
// topic channel
func (p *FCMProvider) SendTopic(ctx context.Context, topic, title, body string, data map[string]string) (string, error) {
	fcmMessage := &messaging.Message{
		Topic: topic,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}

	response, err := p.client.Send(ctx, fcmMessage)
	if err != nil {
		return "", err
	}
	return response, nil
}

// MockPushProvider logs instead of calling FCM. Used in development
// where no Firebase credentials are configured.
type MockPushProvider struct {
	logger *logrus.Logger
}

func NewMockPushProvider(logger *logrus.Logger) *MockPushProvider {
	if logger == nil {
		logger = logrus.New()
	}
	return &MockPushProvider{logger: logger}
}

func (p *MockPushProvider) Send(ctx context.Context, token, title, body string, data map[string]string) (string, error) {
	p.logger.WithFields(logrus.Fields{
		"title": title,
		"body":  body,
	}).Info("Mock push sent")
	return "mock-push", nil
}

func (p *MockPushProvider) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) (int, error) {
	p.logger.WithFields(logrus.Fields{
		"tokens": len(tokens),
		"title":  title,
	}).Info("Mock multicast push sent")
	return len(tokens), nil
}

func (p *MockPushProvider) SendTopic(ctx context.Context, topic, title, body string, data map[string]string) (string, error) {
	p.logger.WithFields(logrus.Fields{
		"topic": topic,
		"title": title,
	}).Info("Mock topic push sent")
	return "mock-topic-push", nil
}
