package instagram

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/automark/internal/automark"
)

func TestSettings_Refresh(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "")

	backend.On("InstagramConfigStatus", mock.Anything).
		Return(automark.ConfigStatus{AppIDConfigured: true, AppSecretConfigured: true, Message: "Configuration looks good!"}, nil).Once()
	backend.On("InstagramStatus", mock.Anything, "default_user").
		Return(automark.InstagramStatus{Connected: true, Username: "automark"}, nil).Once()

	snap := settings.Refresh(context.Background())
	assert.True(t, snap.Status.Connected)
	assert.Equal(t, "automark", snap.Status.Username)
	require.NotNil(t, snap.Config)
	assert.True(t, snap.Config.Configured())
	assert.Nil(t, snap.Message)

	backend.On("InstagramConfigStatus", mock.Anything).Return(automark.ConfigStatus{}, automark.ErrTransport).Once()
	backend.On("InstagramStatus", mock.Anything, "default_user").Return(automark.InstagramStatus{}, automark.ErrTransport).Once()

	snap = settings.Refresh(context.Background())
	assert.False(t, snap.Status.Connected, "status failure means disconnected")
	require.NotNil(t, snap.Config, "last known config is kept")
}

func TestSettings_ConnectNotConfigured(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "default_user")
	backend.On("InstagramConfigStatus", mock.Anything).Return(automark.ConfigStatus{
		AppIDConfigured: true,
		Message:         "Instagram App ID and Secret are required.",
	}, nil).Once()

	authURL, err := settings.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, authURL)
	backend.AssertNotCalled(t, "InstagramAuthURL", mock.Anything)

	msg := settings.Snapshot().Message
	require.NotNil(t, msg)
	assert.Equal(t, MessageKindError, msg.Kind)
	assert.Equal(t, "Instagram App ID and Secret are required.", msg.Text)
}

func TestSettings_ConnectNotConfiguredWithoutMessage(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "default_user")
	backend.On("InstagramConfigStatus", mock.Anything).Return(automark.ConfigStatus{}, nil).Once()

	_, err := settings.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, MsgNotConfigured, settings.Snapshot().Message.Text)
}

func TestSettings_Connect(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "default_user")
	backend.On("InstagramConfigStatus", mock.Anything).
		Return(automark.ConfigStatus{AppIDConfigured: true, AppSecretConfigured: true}, nil).Twice()
	backend.On("InstagramAuthURL", mock.Anything).Return("https://facebook.com/dialog/oauth?x=1", nil).Once()

	authURL, err := settings.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://facebook.com/dialog/oauth?x=1", authURL)

	backend.On("InstagramAuthURL", mock.Anything).
		Return("", &automark.RemoteError{StatusCode: 400, Detail: "Instagram credentials not configured."}).Once()
	_, err = settings.Connect(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "Instagram credentials not configured.", settings.Snapshot().Message.Text)
}

func TestSettings_ConnectTransportFailure(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "default_user")
	backend.On("InstagramConfigStatus", mock.Anything).Return(automark.ConfigStatus{}, automark.ErrTransport).Once()

	_, err := settings.Connect(context.Background())
	assert.ErrorIs(t, err, automark.ErrTransport)
	assert.Equal(t, MsgConnectFailed, settings.Snapshot().Message.Text)
}

func TestSettings_Disconnect(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "default_user")

	backend.On("DisconnectInstagram", mock.Anything, "default_user").Return(automark.Ack{Success: true}, nil).Once()
	require.NoError(t, settings.Disconnect(context.Background()))
	snap := settings.Snapshot()
	assert.False(t, snap.Status.Connected)
	assert.Equal(t, &Message{Kind: MessageKindSuccess, Text: MsgDisconnected}, snap.Message)

	backend.On("DisconnectInstagram", mock.Anything, "default_user").Return(automark.Ack{}, automark.ErrTransport).Once()
	assert.Error(t, settings.Disconnect(context.Background()))
	assert.Equal(t, &Message{Kind: MessageKindError, Text: MsgDisconnectFailed}, settings.Snapshot().Message)
}

func TestSettings_HandleCallback(t *testing.T) {
	backend := &MockBackend{}
	settings := NewSettings(backend, "default_user")

	backend.On("InstagramStatus", mock.Anything, "default_user").
		Return(automark.InstagramStatus{Connected: true, Username: "automark"}, nil).Once()
	snap := settings.HandleCallback(context.Background(), url.Values{"connected": {"true"}})
	assert.True(t, snap.Status.Connected)
	assert.Equal(t, &Message{Kind: MessageKindSuccess, Text: MsgConnected}, snap.Message)

	snap = settings.HandleCallback(context.Background(), url.Values{"error": {"Invalid OAuth code"}})
	assert.Equal(t, &Message{Kind: MessageKindError, Text: "Invalid OAuth code"}, snap.Message)
	backend.AssertNumberOfCalls(t, "InstagramStatus", 1)
}
