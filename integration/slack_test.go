package integration

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackMessengerRequiresTokenAndChannel(t *testing.T) {
	_, err := NewSlackMessenger("", "C0123")
	assert.Error(t, err)

	_, err = NewSlackMessenger("xoxb-test", "")
	assert.Error(t, err)
}

func TestSlackMessengerPostsToChannel(t *testing.T) {
	var gotChannel, gotText string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotChannel = r.Form.Get("channel")
		gotText = r.Form.Get("text")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"channel":"C0123","ts":"1.2"}`)
	}))
	defer server.Close()

	messenger, err := NewSlackMessenger("xoxb-test", "C0123", slack.OptionAPIURL(server.URL+"/"))
	require.NoError(t, err)

	require.NoError(t, messenger.SendMessage(context.Background(), "NCG → wNCG exchange done."))
	assert.Equal(t, "C0123", gotChannel)
	assert.Equal(t, "NCG → wNCG exchange done.", gotText)
}

func TestSlackMessengerPropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer server.Close()

	messenger, err := NewSlackMessenger("xoxb-test", "C0123", slack.OptionAPIURL(server.URL+"/"))
	require.NoError(t, err)

	err = messenger.SendMessage(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}
