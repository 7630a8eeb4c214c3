// Package transcript turns realtime speech events into transcript updates
// published to the room's data channel.
package transcript

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

// Speakers attributed on published updates.
const (
	SpeakerUser = "user"
	SpeakerAI   = "ai"
)

// Publisher delivers a transcript payload to every participant. The agent
// backs it with the room's reliable data channel.
type Publisher interface {
	PublishData(payload []byte) error
}

// Update is the JSON message consumed by the frontend.
type Update struct {
	Type       string `json:"type"`
	Speaker    string `json:"speaker"`
	Transcript string `json:"transcript"`
	IsComplete bool   `json:"isComplete"`
	Timestamp  int64  `json:"timestamp"`
}

// Relay accumulates the AI's in-progress utterance and republishes every
// transcript update. User entries are stamped with the time speech started,
// not the time transcription finished, so ordering survives the
// transcription lag.
type Relay struct {
	pub Publisher
	now func() int64

	mu              sync.Mutex
	partial         strings.Builder
	speechStartedAt int64
}

// NewRelay creates a relay publishing through pub.
func NewRelay(pub Publisher) *Relay {
	return &Relay{
		pub: pub,
		now: func() int64 { return time.Now().UnixMilli() },
	}
}

// OnSpeechStarted records when the user began speaking. The transcription for
// this turn completes later and is backdated to this moment.
func (r *Relay) OnSpeechStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speechStartedAt = r.now()
	logging.Debug(logging.CategoryTranscript, "user started speaking")
}

// OnSpeechStopped logs the end of a user turn.
func (r *Relay) OnSpeechStopped() {
	logging.Debug(logging.CategoryTranscript, "user stopped speaking")
}

// OnUserTranscript publishes a completed user transcription, stamped with the
// recorded speech start.
func (r *Relay) OnUserTranscript(text string) {
	r.mu.Lock()
	ts := r.speechStartedAt
	r.speechStartedAt = 0
	r.mu.Unlock()
	if ts == 0 {
		ts = r.now()
	}
	logging.Info(logging.CategoryTranscript, "user transcript: %q", text)
	r.publish(SpeakerUser, text, true, ts)
}

// OnAgentDelta appends a transcript chunk and publishes the cumulative text
// so far. Consumers always receive the full in-progress string.
func (r *Relay) OnAgentDelta(delta string) {
	r.mu.Lock()
	r.partial.WriteString(delta)
	text := r.partial.String()
	r.mu.Unlock()
	r.publish(SpeakerAI, text, false, r.now())
}

// OnAgentDone publishes the final utterance text and resets the accumulator.
func (r *Relay) OnAgentDone(final string) {
	r.mu.Lock()
	r.partial.Reset()
	r.mu.Unlock()
	logging.Info(logging.CategoryTranscript, "ai transcript complete: %q", final)
	r.publish(SpeakerAI, final, true, r.now())
}

// Reset clears the in-progress accumulator for a new response.
func (r *Relay) Reset() {
	r.mu.Lock()
	r.partial.Reset()
	r.mu.Unlock()
}

// OnServiceError surfaces an upstream error to the room as an AI-attributed
// transcript line. The session keeps running.
func (r *Relay) OnServiceError(message string) {
	logging.Error(logging.CategoryTranscript, "speech service error: %s", message)
	r.publish(SpeakerAI, "Error: "+message, true, r.now())
}

// publish marshals and sends one update. Delivery failures are logged and
// swallowed; a dropped transcript line never takes the session down.
func (r *Relay) publish(speaker, text string, complete bool, ts int64) {
	payload, err := json.Marshal(Update{
		Type:       "transcript",
		Speaker:    speaker,
		Transcript: text,
		IsComplete: complete,
		Timestamp:  ts,
	})
	if err != nil {
		logging.Error(logging.CategoryTranscript, "failed to marshal transcript: %v", err)
		return
	}
	if err := r.pub.PublishData(payload); err != nil {
		logging.Warning(logging.CategoryTranscript, "failed to publish transcript: %v", err)
	}
}
