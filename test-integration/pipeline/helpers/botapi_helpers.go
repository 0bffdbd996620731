package helpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

const sentMessageResponse = `{"ok":true,"result":{"message_id":1,"date":1777888800,"chat":{"id":%d,"type":"channel"}}}`

// SentMessage is one send call received by the fake Bot API
type SentMessage struct {
	Method   string
	ChatID   int64
	Text     string
	Caption  string
	FileName string
}

// FakeBotAPI serves the subset of the Telegram Bot API the uploader uses.
// Sends are recorded and queued commands are delivered through getUpdates.
type FakeBotAPI struct {
	server *httptest.Server

	mu       sync.Mutex
	sent     []SentMessage
	updates  []map[string]any
	updateID int
}

// NewFakeBotAPI starts a fake Bot API server
func NewFakeBotAPI() *FakeBotAPI {
	f := &FakeBotAPI{}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

// Endpoint returns the endpoint format string for channel.apiEndpoint
func (f *FakeBotAPI) Endpoint() string {
	return f.server.URL + "/bot%s/%s"
}

// Close stops the server
func (f *FakeBotAPI) Close() {
	f.server.Close()
}

// QueueCommand makes text from sender appear as the next private message update
func (f *FakeBotAPI) QueueCommand(sender int64, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updateID++
	f.updates = append(f.updates, map[string]any{
		"update_id": f.updateID,
		"message": map[string]any{
			"message_id": f.updateID,
			"date":       time.Now().Unix(),
			"from":       map[string]any{"id": sender, "is_bot": false, "first_name": "operator"},
			"chat":       map[string]any{"id": sender, "type": "private"},
			"text":       text,
		},
	})
}

// Documents returns every sendDocument call in order
func (f *FakeBotAPI) Documents() []SentMessage {
	return f.filter("sendDocument", 0)
}

// Messages returns the texts sent to chatID in order
func (f *FakeBotAPI) Messages(chatID int64) []string {
	var texts []string
	for _, m := range f.filter("sendMessage", chatID) {
		texts = append(texts, m.Text)
	}
	return texts
}

func (f *FakeBotAPI) filter(method string, chatID int64) []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []SentMessage
	for _, m := range f.sent {
		if m.Method == method && (chatID == 0 || m.ChatID == chatID) {
			out = append(out, m)
		}
	}
	return out
}

func (f *FakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	w.Header().Set("Content-Type", "application/json")

	switch method {
	case "getMe":
		_, _ = fmt.Fprint(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"seedpost","username":"seedpost_bot"}}`)
	case "getUpdates":
		f.serveUpdates(w, r)
	case "sendMessage", "sendDocument":
		chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
		msg := SentMessage{
			Method:  method,
			ChatID:  chatID,
			Text:    r.FormValue("text"),
			Caption: r.FormValue("caption"),
		}
		if _, header, err := r.FormFile("document"); err == nil {
			msg.FileName = header.Filename
		}

		f.mu.Lock()
		f.sent = append(f.sent, msg)
		f.mu.Unlock()

		_, _ = fmt.Fprintf(w, sentMessageResponse, chatID)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprintf(w, `{"ok":false,"error_code":404,"description":"method %s not found"}`, method)
	}
}

// serveUpdates returns queued updates at or after the requested offset
func (f *FakeBotAPI) serveUpdates(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.FormValue("offset"))

	f.mu.Lock()
	var pending []map[string]any
	for _, u := range f.updates {
		if u["update_id"].(int) >= offset {
			pending = append(pending, u)
		}
	}
	f.mu.Unlock()

	if len(pending) == 0 {
		// Short poll so the client does not spin
		time.Sleep(50 * time.Millisecond)
		pending = []map[string]any{}
	}

	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": pending})
}
