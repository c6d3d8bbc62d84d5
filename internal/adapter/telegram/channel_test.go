package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Hub","username":"hub_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			switch r.Form.Get("chat_id") {
			case "403":
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
			case "400":
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			case "429":
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 5"}`))
			default:
				_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":5,"type":"private"}}}`))
			}
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	api, err := tgbotapi.NewBotAPIWithClient("TOKEN", srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return NewChannelWithAPI(api)
}

func TestChannelSend(t *testing.T) {
	ch := newTestChannel(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		chatID        int64
		wantDelivered bool
		wantPermanent bool
	}{
		{"delivered", 5, true, false},
		{"blocked", 403, false, true},
		{"chat not found", 400, false, true},
		{"rate limited", 429, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ch.Send(ctx, tt.chatID, "hello")
			assert.Equal(t, tt.chatID, res.SubscriberID)
			assert.Equal(t, tt.wantDelivered, res.Delivered)
			assert.Equal(t, tt.wantPermanent, res.Permanent)
			if !tt.wantDelivered {
				assert.NotEmpty(t, res.Error)
			}
		})
	}
}

func TestChannelSendCancelled(t *testing.T) {
	ch := newTestChannel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := ch.Send(ctx, 5, "hello")
	assert.False(t, res.Delivered)
	assert.False(t, res.Permanent)
}

func TestDisabledChannelFails(t *testing.T) {
	res := Disabled{}.Send(context.Background(), 42, "hi")
	assert.False(t, res.Delivered)
	assert.Equal(t, int64(42), res.SubscriberID)
	assert.Equal(t, ErrNotConfigured.Error(), res.Error)
}
