// Package voice places text-to-speech calls through AWS End User Messaging
// (pinpoint-sms-voice-v2).
package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpointsmsvoicev2"
	"github.com/aws/aws-sdk-go-v2/service/pinpointsmsvoicev2/types"
	"github.com/go-otp-stream/internal/config"
	"github.com/go-otp-stream/internal/infrastructure/awscfg"
)

type voiceAPI interface {
	SendVoiceMessage(ctx context.Context, params *pinpointsmsvoicev2.SendVoiceMessageInput, optFns ...func(*pinpointsmsvoicev2.Options)) (*pinpointsmsvoicev2.SendVoiceMessageOutput, error)
}

// Caller speaks a short text message to a phone number.
type Caller struct {
	client voiceAPI
	origin string
}

// NewCaller requires an origination identity (phone number, pool id or ARN).
func NewCaller(ctx context.Context, cfg *config.Config) (*Caller, error) {
	if cfg.VoiceOrigin == "" {
		return nil, errors.New("voice origination identity not configured")
	}
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.VoiceRegion)
	if err != nil {
		return nil, err
	}
	client := pinpointsmsvoicev2.NewFromConfig(awsCfg, func(o *pinpointsmsvoicev2.Options) {
		o.BaseEndpoint = awscfg.Endpoint(cfg)
	})
	return &Caller{client: client, origin: cfg.VoiceOrigin}, nil
}

func (c *Caller) InitiateVoiceCall(ctx context.Context, to, spokenText string) error {
	_, err := c.client.SendVoiceMessage(ctx, &pinpointsmsvoicev2.SendVoiceMessageInput{
		DestinationPhoneNumber: aws.String(to),
		OriginationIdentity:    aws.String(c.origin),
		MessageBody:            aws.String(spokenText),
		MessageBodyTextType:    types.VoiceMessageBodyTextTypeText,
	})
	if err != nil {
		return fmt.Errorf("send voice message: %w", err)
	}
	return nil
}
