package bridge

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/compai/internal/host/simhost"
	"github.com/doeshing/compai/internal/pkg/logger"
)

// fakePanel answers script frames the way the host extension panel would.
func fakePanel(t *testing.T, url string, answer func(script string) replyFrame) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		for {
			var frame scriptFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			reply := answer(frame.Script)
			reply.ID = frame.ID
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	}()
	return conn
}

func newWebsocketTestHost(t *testing.T, timeout time.Duration) (*WebsocketHost, string) {
	t.Helper()
	host := NewWebsocketHost(timeout, logger.NewNop())
	server := httptest.NewServer(host)
	t.Cleanup(server.Close)
	return host, "ws" + strings.TrimPrefix(server.URL, "http") + BridgePath
}

func waitConnected(t *testing.T, host *WebsocketHost, previous string) string {
	t.Helper()
	require.Eventually(t, func() bool {
		s := host.Session()
		return s != "" && s != previous
	}, 2*time.Second, 10*time.Millisecond)
	return host.Session()
}

func TestWebsocketHostWithoutPanel(t *testing.T) {
	host, _ := newWebsocketTestHost(t, time.Second)
	transport := NewTransport(host, logger.NewNop())

	result := transport.Call(context.Background(), "listLayers", nil)
	assert.Equal(t, ErrHostScriptNotLoaded.Error(), result.Error)
	assert.False(t, host.Connected())
}

func TestWebsocketHostRoundTripThroughPanel(t *testing.T) {
	ctx := context.Background()
	sim, err := simhost.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sim.Close() })

	host, url := newWebsocketTestHost(t, 2*time.Second)
	fakePanel(t, url, func(script string) replyFrame {
		out, err := sim.Engine.EvalScript(ctx, script)
		if err != nil {
			return replyFrame{Error: err.Error()}
		}
		return replyFrame{Result: &out}
	})
	waitConnected(t, host, "")

	transport := NewTransport(host, logger.NewNop())
	require.True(t, transport.Call(ctx, "createComp", map[string]any{"name": "Main"}).Success)

	added := transport.Call(ctx, "addCompMarker", map[string]any{"time": 2, "comment": "intro"})
	require.True(t, added.Success, added.Error)
	assert.Equal(t, "intro", added.Data["comment"])

	markers, err := sim.Markers.ListProjectMarkers(ctx)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, 2.0, markers[0].Time)
}

func TestWebsocketHostTimeoutIsNoResponse(t *testing.T) {
	host, url := newWebsocketTestHost(t, 100*time.Millisecond)
	fakePanel(t, url, func(script string) replyFrame {
		if strings.HasPrefix(script, "typeof") {
			result := "true"
			return replyFrame{Result: &result}
		}
		time.Sleep(300 * time.Millisecond)
		return replyFrame{}
	})
	waitConnected(t, host, "")

	result := NewTransport(host, logger.NewNop()).Call(context.Background(), "listLayers", nil)
	assert.False(t, result.Success)
	assert.Equal(t, "no response", result.Error)
}

func TestWebsocketHostReplacesPanel(t *testing.T) {
	host, url := newWebsocketTestHost(t, time.Second)
	answer := func(value string) func(string) replyFrame {
		return func(string) replyFrame { return replyFrame{Result: &value} }
	}

	fakePanel(t, url, answer("first"))
	first := waitConnected(t, host, "")
	fakePanel(t, url, answer("second"))
	second := waitConnected(t, host, first)
	assert.NotEqual(t, first, second)

	out, err := host.EvalScript(context.Background(), "registeredActions()")
	require.NoError(t, err)
	assert.Equal(t, "second", out)
}
