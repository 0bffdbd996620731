package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedpost/seedpost/internal/channel"
)

const (
	testToken  = "123:abc"
	operatorID = int64(42)
	channelID  = int64(-1001234)
)

const sentMessage = `{"ok":true,"result":{"message_id":7,"date":1777888800,"chat":{"id":-1001234,"type":"channel"}}}`

type fakeBotAPI struct {
	mu      sync.Mutex
	calls   map[string]int
	texts   []string
	updates string
	served  atomic.Bool
	handler func(method string, w http.ResponseWriter, r *http.Request) bool
}

func newFakeBotAPI(t *testing.T, configure ...func(*fakeBotAPI)) (*fakeBotAPI, *httptest.Server) {
	t.Helper()
	f := &fakeBotAPI{calls: make(map[string]int)}
	for _, fn := range configure {
		fn(f)
	}
	server := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]

	f.mu.Lock()
	f.calls[method]++
	if text := r.FormValue("text"); text != "" {
		f.texts = append(f.texts, text)
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if f.handler != nil && f.handler(method, w, r) {
		return
	}

	switch method {
	case "getMe":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"seedpost","username":"seedpost_bot"}}`))
	case "getUpdates":
		if f.updates != "" && f.served.CompareAndSwap(false, true) {
			_, _ = w.Write([]byte(f.updates))
			return
		}
		time.Sleep(10 * time.Millisecond)
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	default:
		_, _ = w.Write([]byte(sentMessage))
	}
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	c, err := New(testToken,
		WithAPIEndpoint(server.URL+"/bot%s/%s"),
		WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return c
}

func TestNew_AuthFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer server.Close()

	_, err := New(testToken, WithAPIEndpoint(server.URL+"/bot%s/%s"), WithHTTPClient(server.Client()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to authenticate bot")
}

func TestClient_SendMessage(t *testing.T) {
	t.Parallel()

	fake, server := newFakeBotAPI(t)
	c := newTestClient(t, server)

	require.NoError(t, c.SendMessage(context.Background(), operatorID, "🚀 Bot started"))
	assert.Equal(t, 1, fake.count("sendMessage"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{"🚀 Bot started"}, fake.texts)
}

func TestClient_SendFile(t *testing.T) {
	t.Parallel()

	fake, server := newFakeBotAPI(t)
	c := newTestClient(t, server)

	path := filepath.Join(t.TempDir(), "episode.mkv")
	require.NoError(t, os.WriteFile(path, []byte("video"), 0600))

	require.NoError(t, c.SendFile(context.Background(), channelID, path, "📁 Show A - 01\n💾 Size: 350 MB"))
	assert.Equal(t, 1, fake.count("sendDocument"))
}

func TestClient_SendPermanentErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	fake, server := newFakeBotAPI(t, func(f *fakeBotAPI) {
		f.handler = func(method string, w http.ResponseWriter, _ *http.Request) bool {
			if method != "sendMessage" {
				return false
			}
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
			return true
		}
	})
	c := newTestClient(t, server)

	err := c.SendMessage(context.Background(), channelID, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
	assert.Equal(t, 1, fake.count("sendMessage"))
}

func TestClient_SubscribeCommands(t *testing.T) {
	t.Parallel()

	_, server := newFakeBotAPI(t, func(f *fakeBotAPI) {
		f.updates = `{"ok":true,"result":[
		{"update_id":1,"message":{"message_id":1,"date":1,"text":"/status","from":{"id":99,"is_bot":false,"first_name":"eve"},"chat":{"id":99,"type":"private"}}},
		{"update_id":2,"message":{"message_id":2,"date":1,"text":"hello","from":{"id":42,"is_bot":false,"first_name":"op"},"chat":{"id":42,"type":"private"}}},
		{"update_id":3,"message":{"message_id":3,"date":1,"text":"/pause now","from":{"id":42,"is_bot":false,"first_name":"op"},"chat":{"id":42,"type":"private"}}}
	]}`
	})
	c := newTestClient(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmds, err := c.SubscribeCommands(ctx, operatorID)
	require.NoError(t, err)

	select {
	case cmd := <-cmds:
		assert.Equal(t, channel.Command{Name: "pause", Args: "now", SenderID: operatorID, ChatID: operatorID}, cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("no command received")
	}

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-cmds
		return !open
	}, 5*time.Second, 10*time.Millisecond)
}
