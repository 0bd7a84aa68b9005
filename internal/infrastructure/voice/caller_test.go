package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/pinpointsmsvoicev2"
	"github.com/aws/aws-sdk-go-v2/service/pinpointsmsvoicev2/types"
	"github.com/go-otp-stream/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockVoiceAPI struct{ mock.Mock }

func (m *mockVoiceAPI) SendVoiceMessage(ctx context.Context, in *pinpointsmsvoicev2.SendVoiceMessageInput, _ ...func(*pinpointsmsvoicev2.Options)) (*pinpointsmsvoicev2.SendVoiceMessageOutput, error) {
	args := m.Called(ctx, in)
	return &pinpointsmsvoicev2.SendVoiceMessageOutput{}, args.Error(0)
}

func TestInitiateVoiceCall(t *testing.T) {
	m := &mockVoiceAPI{}
	m.On("SendVoiceMessage", mock.Anything, mock.MatchedBy(func(in *pinpointsmsvoicev2.SendVoiceMessageInput) bool {
		return *in.DestinationPhoneNumber == "+15550001" &&
			*in.OriginationIdentity == "+15559999" &&
			*in.MessageBody == "Your code is 4 8 3 9 2 0" &&
			in.MessageBodyTextType == types.VoiceMessageBodyTextTypeText
	})).Return(nil)

	c := &Caller{client: m, origin: "+15559999"}
	require.NoError(t, c.InitiateVoiceCall(context.Background(), "+15550001", "Your code is 4 8 3 9 2 0"))
	m.AssertExpectations(t)
}

func TestInitiateVoiceCall_WrapsError(t *testing.T) {
	m := &mockVoiceAPI{}
	m.On("SendVoiceMessage", mock.Anything, mock.Anything).Return(errors.New("opted out"))

	err := (&Caller{client: m, origin: "x"}).InitiateVoiceCall(context.Background(), "+15550001", "hi")
	assert.ErrorContains(t, err, "send voice message")
}

func TestNewCaller_RequiresOrigin(t *testing.T) {
	_, err := NewCaller(context.Background(), &config.Config{})
	assert.Error(t, err)
}
