package handlers_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/paissahouse/paissadb/api/handlers"
	apitesting "github.com/paissahouse/paissadb/api/testing"
	"github.com/paissahouse/paissadb/queue"
)

func TestPaissa_Handlers_Fanout(t *testing.T) {
	client := apitesting.SetupTestRedis(t, testRedis)
	setTestSecret(t)

	q := queue.New(client)
	fanout := handlers.NewFanout(slog.Default(), q)

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fanout.Run(runCtx)

	srv := httptest.NewServer(http.HandlerFunc(fanout.HandleWS))
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	dial := func(t *testing.T, target string) *websocket.Conn {
		t.Helper()
		conn, _, err := websocket.DefaultDialer.Dial(target, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
		return conn
	}

	t.Run("broadcasts published transitions", func(t *testing.T) {
		token, err := handlers.IssueToken(705396699, time.Now())
		require.NoError(t, err)
		conn := dial(t, wsURL+"?jwt="+token)

		received := make(chan []byte, 1)
		go func() {
			_, msg, err := conn.ReadMessage()
			if err == nil {
				received <- msg
			}
		}()

		// the subscriber attaches asynchronously, so publish until the
		// message comes back
		payload := []byte(`{"type": "plot_open", "data": {"world_id": 74, "plot_number": 3}}`)
		var got []byte
		require.Eventually(t, func() bool {
			if err := q.Publish(t.Context(), payload); err != nil {
				return false
			}
			select {
			case got = <-received:
				return true
			case <-time.After(100 * time.Millisecond):
				return false
			}
		}, 10*time.Second, 50*time.Millisecond, "broadcast never reached the viewer")
		require.JSONEq(t, string(payload), string(got))
	})

	t.Run("closes invalid tokens after the upgrade", func(t *testing.T) {
		// the handshake itself succeeds; rejection arrives as a close frame
		conn := dial(t, wsURL+"?jwt=garbage")

		_, _, err := conn.ReadMessage()
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		require.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
		require.Equal(t, "invalid session token", closeErr.Text)
	})

	t.Run("expires anonymous viewers after a day", func(t *testing.T) {
		fake := clockwork.NewFakeClock()
		handlers.SetClock(fake)
		t.Cleanup(func() { handlers.SetClock(clockwork.NewRealClock()) })

		conn := dial(t, wsURL)

		// wait for the expiry timer and the ping ticker to arm
		fake.BlockUntil(2)
		fake.Advance(24 * time.Hour)

		for {
			_, _, err := conn.ReadMessage()
			if err == nil {
				// pings fired by the advancing clock
				continue
			}
			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			require.Equal(t, websocket.CloseNormalClosure, closeErr.Code)
			require.Equal(t, "anonymous session expired", closeErr.Text)
			return
		}
	})

	t.Run("closes viewers on shutdown", func(t *testing.T) {
		conn := dial(t, wsURL) // anonymous viewers need no token

		cancel()

		_, _, err := conn.ReadMessage()
		var closeErr *websocket.CloseError
		require.ErrorAs(t, err, &closeErr)
		require.Equal(t, websocket.CloseServiceRestart, closeErr.Code)
	})
}
