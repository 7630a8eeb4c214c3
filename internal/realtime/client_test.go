package realtime

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

func init() {
	logging.Init()
}

type fakeSocket struct {
	mu       sync.Mutex
	written  [][]byte
	closed   int
	readErr  error
	readCh   chan []byte
	writeErr error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{readCh: make(chan []byte)}
}

func (f *fakeSocket) ReadMessage() (int, []byte, error) {
	data, ok := <-f.readCh
	if !ok {
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, errors.New("closed")
	}
	return 1, data, nil
}

func (f *fakeSocket) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written = append(f.written, cp)
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSocket) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

func (f *fakeSocket) lastWritten() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

func newTestClient(sock socket) *Client {
	c := NewClient(Options{
		Endpoint:     "https://aoai.example.com",
		Deployment:   "gpt-4o-realtime",
		APIKey:       "key",
		APIVersion:   "2024-10-01-preview",
		ReadyTimeout: time.Minute,
		Session:      SessionConfig{Voice: "alloy", Instructions: "hi"},
	})
	c.conn = sock
	return c
}

func TestAppendAudioDroppedBeforeReady(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(sock)

	if err := c.AppendAudio([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("append before ready must be a silent drop, got %v", err)
	}
	if sock.writeCount() != 0 {
		t.Fatalf("expected no writes before ready, got %d", sock.writeCount())
	}
}

func TestAppendAudioAfterReady(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(sock)

	c.handleMessage([]byte(`{"type":"session.updated"}`))
	if !c.Ready() {
		t.Fatalf("expected ready after session.updated")
	}

	pcm := []byte{0x10, 0x00, 0xF0, 0xFF}
	if err := c.AppendAudio(pcm); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	var msg struct {
		Type  string `json:"type"`
		Audio string `json:"audio"`
	}
	if err := json.Unmarshal(sock.lastWritten(), &msg); err != nil {
		t.Fatalf("unmarshal written message: %v", err)
	}
	if msg.Type != "input_audio_buffer.append" {
		t.Fatalf("unexpected message type %s", msg.Type)
	}
	if msg.Audio != base64.StdEncoding.EncodeToString(pcm) {
		t.Fatalf("audio payload not base64 of the frame")
	}
}

func TestDispatchTable(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(sock)

	var got []Event
	c.On(TypeResponseAudioTranscriptDelta, func(ev Event) { got = append(got, ev) })
	c.On(TypeError, func(ev Event) { got = append(got, ev) })

	c.handleMessage([]byte(`{"type":"response.audio_transcript.delta","delta":"Hel"}`))
	c.handleMessage([]byte(`{"type":"error","error":{"message":"rate limited"}}`))
	c.handleMessage([]byte(`{"type":"response.output_item.added"}`)) // no handler registered

	if len(got) != 2 {
		t.Fatalf("expected 2 dispatched events, got %d", len(got))
	}
	if got[0].Delta != "Hel" {
		t.Fatalf("delta not decoded: %+v", got[0])
	}
	if got[1].Error == nil || got[1].Error.Message != "rate limited" {
		t.Fatalf("error payload not decoded: %+v", got[1])
	}
}

func TestMalformedMessageIsIsolated(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(sock)

	c.handleMessage([]byte(`{not json`))
	c.handleMessage([]byte(`{"type":"session.updated"}`))
	if !c.Ready() {
		t.Fatalf("parse failure must not stop later dispatch")
	}
}

func TestSessionUpdateCarriesConfiguredVoice(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(sock)

	if err := c.sendSessionUpdate(); err != nil {
		t.Fatalf("send session update: %v", err)
	}

	var msg struct {
		Type    string `json:"type"`
		Session struct {
			Voice                   string  `json:"voice"`
			InputAudioFormat        string  `json:"input_audio_format"`
			Temperature             float64 `json:"temperature"`
			MaxResponseOutputTokens int     `json:"max_response_output_tokens"`
			TurnDetection           struct {
				Type      string  `json:"type"`
				Threshold float64 `json:"threshold"`
			} `json:"turn_detection"`
		} `json:"session"`
	}
	if err := json.Unmarshal(sock.lastWritten(), &msg); err != nil {
		t.Fatalf("unmarshal session.update: %v", err)
	}
	if msg.Type != "session.update" {
		t.Fatalf("unexpected type %s", msg.Type)
	}
	if msg.Session.Voice != "alloy" {
		t.Fatalf("expected default voice alloy in session config, got %s", msg.Session.Voice)
	}
	if msg.Session.InputAudioFormat != "pcm16" {
		t.Fatalf("expected pcm16 input format")
	}
	if msg.Session.Temperature != 0.8 || msg.Session.MaxResponseOutputTokens != 4096 {
		t.Fatalf("defaults not applied: %+v", msg.Session)
	}
	if msg.Session.TurnDetection.Type != "server_vad" || msg.Session.TurnDetection.Threshold != 0.7 {
		t.Fatalf("turn detection not configured: %+v", msg.Session.TurnDetection)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	sock := newFakeSocket()
	c := newTestClient(sock)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	sock.mu.Lock()
	closed := sock.closed
	sock.mu.Unlock()
	if closed != 1 {
		t.Fatalf("expected exactly one socket close, got %d", closed)
	}
	if c.Ready() {
		t.Fatalf("close must clear readiness")
	}
	if err := c.AppendAudio([]byte{0, 0}); err != nil {
		t.Fatalf("append after close should drop silently (not ready), got %v", err)
	}
}
