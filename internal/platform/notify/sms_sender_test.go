package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendbulk-reconciler/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSMSSender(url string) *SMSSender {
	return NewSMSSender(&config.GatewayConfig{
		SendURL:  url,
		Username: "user",
		Password: "secret",
		From:     "5000400055",
		Timeout:  2 * time.Second,
	}, nil)
}

func TestSMSSender_Send(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		_, _ = io.WriteString(w, `{"Value":"5632145","RetStatus":1,"StrRetStatus":"Ok"}`)
	}))
	defer server.Close()

	sender := newTestSMSSender(server.URL)
	require.NoError(t, sender.Send(context.Background(), "09121234567", "✅ bulk send succeeded"))

	assert.Equal(t, "user", got["username"])
	assert.Equal(t, "secret", got["password"])
	assert.Equal(t, "09121234567", got["to"])
	assert.Equal(t, "5000400055", got["from"])
	assert.Equal(t, "✅ bulk send succeeded", got["text"])
	assert.Equal(t, false, got["isFlash"])
	assert.Equal(t, "sms", sender.Name())
}

func TestSMSSender_Send_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"rejected by gateway", http.StatusOK, `{"Value":"","RetStatus":35,"StrRetStatus":"InvalidData"}`, "ret status 35"},
		{"server error", http.StatusBadGateway, `bad gateway`, "unexpected status: 502"},
		{"invalid json", http.StatusOK, `<html/>`, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			err := newTestSMSSender(server.URL).Send(context.Background(), "09121234567", "text")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSMSSender_Send_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := newTestSMSSender(url).Send(context.Background(), "09121234567", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "do request")
}
