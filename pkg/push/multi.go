package push

import (
	"context"
	"fmt"
)

// MultiProvider routes each notification to the provider matching the
// token's platform. Unknown platforms default to FCM.
type MultiProvider struct {
	fcm  PushProvider
	apns PushProvider
}

func NewMultiProvider(fcm, apns PushProvider) *MultiProvider {
	return &MultiProvider{fcm: fcm, apns: apns}
}

func (m *MultiProvider) SendNotification(ctx context.Context, request *NotificationRequest) (*NotificationResponse, error) {
	var provider PushProvider
	switch request.Platform {
	case "apns":
		provider = m.apns
	default:
		provider = m.fcm
	}

	if provider == nil {
		return &NotificationResponse{
			Success: false,
			Error:   "no provider configured for platform " + request.Platform,
			Token:   request.Token,
		}, fmt.Errorf("no push provider for platform %q", request.Platform)
	}

	return provider.SendNotification(ctx, request)
}
