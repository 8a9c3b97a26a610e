package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/models"
)

var upgrader = websocket.Upgrader{}

// authority answers every play frame with "heads" and counts connections.
type authority struct {
	conns atomic.Int32
	// dropFirst closes the first connection right after the upgrade.
	dropFirst bool
}

func (a *authority) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if n := a.conns.Add(1); n == 1 && a.dropFirst {
		return
	}

	for {
		var msg models.Envelope
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		var req models.RoundRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}

		game := strings.SplitN(msg.Event, ":", 2)[0]
		out, _ := models.NewEnvelope(game+":result", models.RoundResult{
			GameID:     req.GameID,
			Outcome:    "heads",
			ClientSeed: req.ClientSeed,
		})
		if err := conn.WriteJSON(out); err != nil {
			return
		}
	}
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func connected(t *testing.T, c *Channel) {
	t.Helper()
	require.Eventually(t, c.IsConnected, 2*time.Second, 10*time.Millisecond)
}

func TestDisabledWithoutURL(t *testing.T) {
	c := New(Config{}, nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	assert.False(t, c.IsConnected())

	// Submitting on an unavailable channel is a silent no-op.
	c.SubmitRound("coinflip:placeBet", models.RoundRequest{GameID: "coin-flip"})
}

func TestSubscribeReceivesResultOnce(t *testing.T) {
	srv := httptest.NewServer(&authority{})
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), RetryDelay: 20 * time.Millisecond}, nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	connected(t, c)

	got := make(chan models.RoundResult, 2)
	unsubscribe := c.Subscribe("coin-flip", "seed-1", func(r models.RoundResult) {
		got <- r
	})
	defer unsubscribe()

	c.SubmitRound("coinflip:placeBet", models.RoundRequest{GameID: "coin-flip", ClientSeed: "seed-1"})

	select {
	case r := <-got:
		assert.Equal(t, models.Outcome("heads"), r.Value())
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
	}

	assert.Equal(t, 0, c.subscribers(), "one-shot handler must be removed on delivery")

	c.SubmitRound("coinflip:placeBet", models.RoundRequest{GameID: "coin-flip", ClientSeed: "seed-1"})
	select {
	case <-got:
		t.Fatal("handler fired twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeIgnoresOtherRounds(t *testing.T) {
	srv := httptest.NewServer(&authority{})
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), RetryDelay: 20 * time.Millisecond}, nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()
	connected(t, c)

	var fired atomic.Bool
	unsubscribe := c.Subscribe("coin-flip", "mine", func(models.RoundResult) { fired.Store(true) })

	c.SubmitRound("coinflip:placeBet", models.RoundRequest{GameID: "coin-flip", ClientSeed: "someone-else"})
	c.SubmitRound("dice:play", models.RoundRequest{GameID: "dice-classic", ClientSeed: "mine"})

	time.Sleep(150 * time.Millisecond)
	assert.False(t, fired.Load())
	assert.Equal(t, 1, c.subscribers())

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, c.subscribers())
}

func TestReconnectsAfterDrop(t *testing.T) {
	auth := &authority{dropFirst: true}
	srv := httptest.NewServer(auth)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), RetryDelay: 20 * time.Millisecond, MaxRetries: 3}, nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	require.Eventually(t, func() bool {
		return auth.conns.Load() >= 2 && c.IsConnected()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), RetryDelay: 5 * time.Millisecond, MaxRetries: 2}, nil)
	require.NoError(t, c.Connect(context.Background()))

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection loop did not stop after exhausting retries")
	}
	assert.False(t, c.IsConnected())
	require.NoError(t, c.Close())
}

func TestConnectAndCloseConcurrently(t *testing.T) {
	srv := httptest.NewServer(&authority{})
	defer srv.Close()

	for i := 0; i < 20; i++ {
		c := New(Config{URL: wsURL(srv), RetryDelay: 5 * time.Millisecond}, nil)

		start := make(chan struct{})
		errs := make(chan error, 1)
		go func() {
			<-start
			errs <- c.Connect(context.Background())
		}()
		close(start)
		require.NoError(t, c.Close())

		err := <-errs
		if err != nil {
			assert.ErrorIs(t, err, ErrClosed)
		}
		// Close may have run first; a second Close waits for any loop that
		// Connect managed to start.
		require.NoError(t, c.Close())
		assert.Eventually(t, func() bool { return !c.IsConnected() }, time.Second, 5*time.Millisecond)
	}
}

func TestConnectAfterClose(t *testing.T) {
	auth := &authority{}
	srv := httptest.NewServer(auth)
	defer srv.Close()

	c := New(Config{URL: wsURL(srv), RetryDelay: 5 * time.Millisecond}, nil)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, auth.conns.Load())
	assert.False(t, c.IsConnected())
}
