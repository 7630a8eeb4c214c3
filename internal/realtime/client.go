// Package realtime implements the client side of the Azure OpenAI Realtime
// socket: session configuration, ready gating, audio append and a typed
// event dispatch table.
package realtime

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/agenterr"
	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

// responseStartDelay is the pause between the session acknowledgment and the
// response-start trigger, so the agent speaks first on a settled connection.
const responseStartDelay = 100 * time.Millisecond

// socket is the subset of *websocket.Conn the client uses.
type socket interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// SessionConfig is the immutable session configuration sent on socket open.
type SessionConfig struct {
	Instructions    string
	Voice           string
	Temperature     float64
	MaxOutputTokens int
}

// Options configures a Client.
type Options struct {
	Endpoint   string
	Deployment string
	APIKey     string
	APIVersion string

	// ReadyTimeout bounds the wait for the session acknowledgment. Expiry is
	// fatal for the session.
	ReadyTimeout time.Duration

	Session SessionConfig

	// OnFatal is invoked when the socket can no longer serve the session
	// (ready timeout). May be nil.
	OnFatal func(error)
}

// Handler consumes one dispatched server event.
type Handler func(Event)

// Client owns the realtime socket. Handlers are registered before Connect and
// run on the read-loop goroutine, so per-event state mutation is serialized.
type Client struct {
	opts     Options
	handlers map[string]Handler

	conn    socket
	writeMu sync.Mutex

	ready      atomic.Bool
	closed     atomic.Bool
	closeOnce  sync.Once
	readyTimer *time.Timer
	timerMu    sync.Mutex

	wg sync.WaitGroup
}

// NewClient creates a realtime client. Connect must be called separately.
func NewClient(opts Options) *Client {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 15 * time.Second
	}
	if opts.Session.Temperature == 0 {
		opts.Session.Temperature = 0.8
	}
	if opts.Session.MaxOutputTokens == 0 {
		opts.Session.MaxOutputTokens = 4096
	}
	return &Client{
		opts:     opts,
		handlers: make(map[string]Handler),
	}
}

// On registers a handler for an event type. Must be called before Connect.
func (c *Client) On(eventType string, h Handler) {
	c.handlers[eventType] = h
}

// Connect dials the realtime endpoint, sends the session configuration and
// starts the read loop. The ready timeout is armed here; if the service never
// acknowledges, OnFatal fires and the socket is closed.
func (c *Client) Connect() error {
	wsURL, err := c.buildWSURL()
	if err != nil {
		return agenterr.WrapRecoverable(fmt.Errorf("build realtime URL: %w", err), agenterr.CodeRealtimeDial)
	}

	headers := http.Header{}
	headers.Set("api-key", c.opts.APIKey)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	logging.Info(logging.CategoryRealtime, "connecting to realtime endpoint deployment=%s", c.opts.Deployment)
	conn, resp, err := dialer.Dial(wsURL, headers)
	if err != nil {
		return agenterr.WrapRecoverable(fmt.Errorf("dial realtime socket: %w", err), agenterr.CodeRealtimeDial)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	c.conn = conn

	if err := c.sendSessionUpdate(); err != nil {
		conn.Close()
		return agenterr.WrapRecoverable(fmt.Errorf("send session configuration: %w", err), agenterr.CodeRealtimeDial)
	}
	logging.Info(logging.CategoryRealtime, "session configuration sent voice=%s", c.opts.Session.Voice)

	c.timerMu.Lock()
	c.readyTimer = time.AfterFunc(c.opts.ReadyTimeout, c.onReadyTimeout)
	c.timerMu.Unlock()

	c.wg.Add(1)
	go c.readLoop()

	return nil
}

func (c *Client) buildWSURL() (string, error) {
	u, err := url.Parse(c.opts.Endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/openai/realtime"
	q := u.Query()
	q.Set("api-version", c.opts.APIVersion)
	q.Set("deployment", c.opts.Deployment)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) sendSessionUpdate() error {
	return c.sendJSON(sessionUpdateMessage{
		Type: "session.update",
		Session: sessionBody{
			TurnDetection: turnDetection{
				Type:              "server_vad",
				Threshold:         0.7,
				PrefixPaddingMs:   300,
				SilenceDurationMs: 1200,
			},
			InputAudioFormat:        "pcm16",
			OutputAudioFormat:       "pcm16",
			InputAudioTranscription: transcriptionConfig{Model: "whisper-1"},
			Instructions:            c.opts.Session.Instructions,
			Voice:                   c.opts.Session.Voice,
			Temperature:             c.opts.Session.Temperature,
			MaxResponseOutputTokens: c.opts.Session.MaxOutputTokens,
		},
	})
}

func (c *Client) onReadyTimeout() {
	if c.ready.Load() || c.closed.Load() {
		return
	}
	err := agenterr.Wrap(
		fmt.Errorf("no session acknowledgment within %v", c.opts.ReadyTimeout),
		agenterr.CodeReadyTimeout,
	)
	logging.Error(logging.CategoryRealtime, "realtime handshake timed out: %v", err)
	c.Close()
	if c.opts.OnFatal != nil {
		c.opts.OnFatal(err)
	}
}

func (c *Client) readLoop() {
	defer c.wg.Done()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			// Close clears ready; upstream audio frames are dropped from here on.
			c.ready.Store(false)
			if !c.closed.Load() {
				logging.Warning(logging.CategoryRealtime, "realtime socket closed: %v", err)
			}
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage parses one inbound message and dispatches it. Parse failures
// are isolated: logged and dropped without disturbing the session.
func (c *Client) handleMessage(data []byte) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		logging.Warning(logging.CategoryRealtime, "failed to parse realtime message: %v", err)
		return
	}

	if ev.Type == TypeSessionUpdated {
		c.markReady()
	}

	if h, ok := c.handlers[ev.Type]; ok {
		h(ev)
	} else if ev.Type != TypeSessionUpdated {
		logging.Debug(logging.CategoryRealtime, "unhandled realtime event type=%s", ev.Type)
	}
}

func (c *Client) markReady() {
	if c.ready.Swap(true) {
		return
	}
	c.timerMu.Lock()
	if c.readyTimer != nil {
		c.readyTimer.Stop()
	}
	c.timerMu.Unlock()
	logging.Info(logging.CategoryRealtime, "realtime session acknowledged, ready for audio")

	// The agent speaks first.
	time.AfterFunc(responseStartDelay, func() {
		if c.closed.Load() {
			return
		}
		if err := c.CreateResponse(); err != nil {
			logging.Error(logging.CategoryRealtime, "failed to trigger first response: %v", err)
		}
	})
}

// Ready reports whether the service has acknowledged the session
// configuration.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// AppendAudio forwards one frame of raw PCM16 audio. Frames arriving before
// the session is acknowledged are dropped, never queued.
func (c *Client) AppendAudio(pcm []byte) error {
	if !c.ready.Load() {
		return nil
	}
	return c.sendJSON(appendAudioMessage{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// CreateResponse asks the service to start generating a response.
func (c *Client) CreateResponse() error {
	return c.sendJSON(responseCreateMessage{Type: "response.create"})
}

func (c *Client) sendJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil || c.closed.Load() {
		return fmt.Errorf("realtime socket is closed")
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close shuts the socket down. Safe to call more than once and from multiple
// goroutines; the underlying socket is closed exactly once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.ready.Store(false)

		c.timerMu.Lock()
		if c.readyTimer != nil {
			c.readyTimer.Stop()
		}
		c.timerMu.Unlock()

		c.writeMu.Lock()
		conn := c.conn
		c.writeMu.Unlock()
		if conn != nil {
			if err := conn.Close(); err != nil {
				logging.Debug(logging.CategoryRealtime, "realtime socket close: %v", err)
			}
		}
	})
	c.wg.Wait()
}
