package transcript

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

func init() {
	logging.Init()
}

type capturePublisher struct {
	mu      sync.Mutex
	updates []Update
}

func (c *capturePublisher) PublishData(payload []byte) error {
	var u Update
	if err := json.Unmarshal(payload, &u); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
	return nil
}

func newTestRelay(pub Publisher) (*Relay, *int64) {
	r := NewRelay(pub)
	now := new(int64)
	r.now = func() int64 { return *now }
	return r, now
}

func TestCumulativeAgentTranscript(t *testing.T) {
	pub := &capturePublisher{}
	r, _ := newTestRelay(pub)

	r.OnAgentDelta("Hel")
	r.OnAgentDelta("lo wor")
	r.OnAgentDelta("ld")
	r.OnAgentDone("Hello world")

	wantText := []string{"Hel", "Hello wor", "Hello world", "Hello world"}
	wantComplete := []bool{false, false, false, true}
	if len(pub.updates) != len(wantText) {
		t.Fatalf("expected %d updates, got %d", len(wantText), len(pub.updates))
	}
	for i, u := range pub.updates {
		if u.Transcript != wantText[i] {
			t.Fatalf("update %d: transcript %q, want %q", i, u.Transcript, wantText[i])
		}
		if u.IsComplete != wantComplete[i] {
			t.Fatalf("update %d: isComplete %v, want %v", i, u.IsComplete, wantComplete[i])
		}
		if u.Speaker != SpeakerAI {
			t.Fatalf("update %d: speaker %q, want ai", i, u.Speaker)
		}
		if u.Type != "transcript" {
			t.Fatalf("update %d: type %q", i, u.Type)
		}
	}
}

func TestAccumulatorResetsBetweenResponses(t *testing.T) {
	pub := &capturePublisher{}
	r, _ := newTestRelay(pub)

	r.OnAgentDelta("First answer")
	r.OnAgentDone("First answer")
	r.Reset()
	r.OnAgentDelta("Second")

	last := pub.updates[len(pub.updates)-1]
	if last.Transcript != "Second" {
		t.Fatalf("accumulator leaked across responses: %q", last.Transcript)
	}
}

func TestUserTranscriptUsesSpeechStartTimestamp(t *testing.T) {
	pub := &capturePublisher{}
	r, now := newTestRelay(pub)

	*now = 100
	r.OnSpeechStarted()
	*now = 5000
	r.OnUserTranscript("hello")

	if len(pub.updates) != 1 {
		t.Fatalf("expected one update, got %d", len(pub.updates))
	}
	u := pub.updates[0]
	if u.Timestamp != 100 {
		t.Fatalf("timestamp %d, want speech-start time 100", u.Timestamp)
	}
	if u.Speaker != SpeakerUser || !u.IsComplete {
		t.Fatalf("unexpected update %+v", u)
	}
}

func TestUserTranscriptWithoutSpeechStartFallsBackToNow(t *testing.T) {
	pub := &capturePublisher{}
	r, now := newTestRelay(pub)

	*now = 777
	r.OnUserTranscript("hi")
	if pub.updates[0].Timestamp != 777 {
		t.Fatalf("expected fallback to current time, got %d", pub.updates[0].Timestamp)
	}
}

func TestSpeechStartConsumedOncePerTurn(t *testing.T) {
	pub := &capturePublisher{}
	r, now := newTestRelay(pub)

	*now = 100
	r.OnSpeechStarted()
	*now = 5000
	r.OnUserTranscript("first")
	r.OnUserTranscript("second")

	if pub.updates[0].Timestamp != 100 {
		t.Fatalf("first turn should use speech start, got %d", pub.updates[0].Timestamp)
	}
	if pub.updates[1].Timestamp != 5000 {
		t.Fatalf("second turn without speech start should use now, got %d", pub.updates[1].Timestamp)
	}
}

func TestServiceErrorSurfacedAsTranscript(t *testing.T) {
	pub := &capturePublisher{}
	r, _ := newTestRelay(pub)

	r.OnServiceError("rate limit exceeded")
	u := pub.updates[0]
	if u.Speaker != SpeakerAI || !u.IsComplete {
		t.Fatalf("unexpected update %+v", u)
	}
	if u.Transcript != "Error: rate limit exceeded" {
		t.Fatalf("expected prefixed error line, got %q", u.Transcript)
	}
}
