package services

import (
	"context"
	"fmt"

	"closetai/models"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
)

// Notification is one push message for every active device of a user.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

type PushTokenSource interface {
	PushTokens(ctx context.Context, userID uint) ([]models.UserPushToken, error)
}

type PusherProvider interface {
	Send(ctx context.Context, userID uint, n Notification) error
}

type FirebasePusher struct {
	App    *firebase.App
	Tokens PushTokenSource
}

func stringMapToInterfaceMap(stringMap map[string]string) map[string]interface{} {
	interfaceMap := make(map[string]interface{})
	for key, value := range stringMap {
		interfaceMap[key] = value
	}
	return interfaceMap
}

func BuildPushMessage(token models.UserPushToken, n Notification) *messaging.Message {
	var iosCustomData map[string]interface{}
	if n.Data != nil {
		iosCustomData = stringMapToInterfaceMap(n.Data)
	}
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		APNS: &messaging.APNSConfig{
			FCMOptions: &messaging.APNSFCMOptions{
				AnalyticsLabel: "closetai",
			},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					ContentAvailable: true,
					Alert: &messaging.ApsAlert{
						Title: n.Title,
						Body:  n.Body,
					},
					Sound: "default",
				},
				CustomData: iosCustomData,
			},
		},
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				Priority:  messaging.AndroidNotificationPriority(messaging.PriorityHigh),
				ChannelID: "closetai-outfits",
			},
			Data: n.Data,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
			},
			Data: n.Data,
		},
		Token: token.Token,
	}
}

func (p *FirebasePusher) Send(ctx context.Context, userID uint, n Notification) error {
	tokens, err := p.Tokens.PushTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("load push tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	client, err := p.App.Messaging(ctx)
	if err != nil {
		return fmt.Errorf("init firebase messaging: %w", err)
	}

	messages := make([]*messaging.Message, 0, len(tokens))
	for _, token := range tokens {
		messages = append(messages, BuildPushMessage(token, n))
	}
	br, err := client.SendEach(ctx, messages)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	if br.FailureCount > 0 {
		for i, resp := range br.Responses {
			if resp != nil && !resp.Success {
				log.Ctx(ctx).Warn().Err(resp.Error).Uint("user_id", userID).Str("platform", string(tokens[i].Platform)).Msg("push failed")
				if !messaging.IsUnregistered(resp.Error) {
					sentry.CaptureException(resp.Error)
				}
			}
		}
	}
	log.Ctx(ctx).Info().Uint("user_id", userID).Int("sent", br.SuccessCount).Int("failed", br.FailureCount).Msg("push sent")
	return nil
}

// NoopPusher is used when push delivery is disabled.
type NoopPusher struct{}

func (NoopPusher) Send(ctx context.Context, userID uint, n Notification) error {
	log.Ctx(ctx).Debug().Uint("user_id", userID).Str("title", n.Title).Msg("push disabled, skipping")
	return nil
}

func OutfitsReadyNotification(count int) Notification {
	return Notification{
		Title: "Your outfits are ready",
		Body:  fmt.Sprintf("%d new outfit ideas are waiting for you.", count),
		Data:  map[string]string{"type": "outfits_ready"},
	}
}
