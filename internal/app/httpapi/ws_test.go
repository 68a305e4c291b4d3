package httpapi

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestWSEcho(t *testing.T) {
	handler, application := newTestHandler(t)

	u, err := application.Users.Register(context.Background(), "ws@example.com", "correct-horse", "")
	if err != nil {
		t.Fatalf("register user: %v", err)
	}
	token, _, err := application.Users.IssueToken(u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/echo?access_token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	for _, msg := range []string{"hello", "sawasdee", "bye"} {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write %q: %v", msg, err)
		}
		msgType, payload, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read echo of %q: %v", msg, err)
		}
		if msgType != websocket.TextMessage {
			t.Fatalf("expected text message, got %d", msgType)
		}
		if string(payload) != msg {
			t.Fatalf("expected echo %q, got %q", msg, payload)
		}
	}
}

func TestWSEchoRequiresToken(t *testing.T) {
	handler, _ := newTestHandler(t)

	server := httptest.NewServer(handler)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/echo"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without token")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Fatalf("expected 401 handshake, got %v", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}
