// Package bridge moves audio between the LiveKit room and the realtime
// speech service: microphone ingress upstream, jitter-buffered playback
// downstream.
package bridge

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	lkmedia "github.com/livekit/media-sdk"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

// Playback parameters. The service streams 24kHz mono PCM16; frames are
// emitted on a fixed 50ms cadence after 200ms of audio has accumulated.
const (
	SampleRate     = 24000
	Channels       = 1
	BytesPerSample = 2

	FrameInterval = 50 * time.Millisecond

	// BytesPerFrame is one frame interval worth of PCM16 (2400 bytes).
	BytesPerFrame = SampleRate / 1000 * 50 * BytesPerSample * Channels

	// PreBufferBytes is the accumulation threshold before playback starts
	// (200ms, 9600 bytes). Absorbs delta jitter at the cost of fixed latency.
	PreBufferBytes = 4 * BytesPerFrame

	underrunLogEvery = 25
)

// AudioSink receives decoded playback frames. *lkmedia.PCMLocalTrack
// satisfies it.
type AudioSink interface {
	WriteSample(sample lkmedia.PCM16Sample) error
}

// Player is the downstream playback state machine. Audio deltas append to a
// byte FIFO; a ticker drains it in fixed-size frames. The buffer only ever
// holds whole samples (every delta is PCM16, so lengths stay even).
type Player struct {
	sink AudioSink
	clk  clock.Clock

	mu               sync.Mutex
	buf              []byte
	playing          bool
	responseComplete bool
	underruns        int
	ticker           *clock.Ticker
	stop             chan struct{}

	shuttingDown atomic.Bool
	wg           sync.WaitGroup
}

// NewPlayer creates a player writing to sink. A nil clk uses the real clock.
func NewPlayer(sink AudioSink, clk clock.Clock) *Player {
	if clk == nil {
		clk = clock.New()
	}
	return &Player{sink: sink, clk: clk}
}

// Append adds decoded delta bytes to the buffer tail and re-evaluates the
// start condition: the first time the buffer reaches the pre-buffer threshold
// while idle, the ticker starts.
func (p *Player) Append(pcm []byte) {
	if len(pcm) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shuttingDown.Load() {
		return
	}
	p.buf = append(p.buf, pcm...)
	if !p.playing && len(p.buf) >= PreBufferBytes {
		p.startLocked()
	}
}

func (p *Player) startLocked() {
	p.playing = true
	p.stop = make(chan struct{})
	p.ticker = p.clk.Ticker(FrameInterval)
	p.wg.Add(1)
	go p.run(p.ticker, p.stop)
	logging.Info(logging.CategoryPlayback, "starting playback buffered=%d", len(p.buf))
}

func (p *Player) run(t *clock.Ticker, stop chan struct{}) {
	defer p.wg.Done()
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if p.tick() {
				return
			}
		}
	}
}

// tick advances the playback state machine by one frame interval and reports
// whether the loop should exit.
func (p *Player) tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shuttingDown.Load() || !p.playing {
		return true
	}

	switch {
	case len(p.buf) >= BytesPerFrame:
		samples := decodeFrame(p.buf[:BytesPerFrame])
		p.buf = p.buf[BytesPerFrame:]
		if err := p.sink.WriteSample(samples); err != nil {
			logging.Error(logging.CategoryPlayback, "failed to write playback frame: %v", err)
		} else {
			p.underruns = 0
		}
		return false

	case !p.responseComplete:
		// More audio is coming. Skip the tick rather than emit silence;
		// silence frames produce audible artifacts, a short pause does not.
		p.underruns++
		if p.underruns == 1 || p.underruns%underrunLogEvery == 0 {
			logging.Warning(logging.CategoryPlayback, "playback buffer underrun count=%d buffered=%d", p.underruns, len(p.buf))
		}
		return false

	default:
		// Response complete and less than a frame left. A sub-frame tail is
		// dropped rather than padded with silence.
		p.stopLocked()
		return true
	}
}

func (p *Player) stopLocked() {
	if !p.playing {
		return
	}
	p.playing = false
	p.buf = nil
	p.underruns = 0
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	logging.Info(logging.CategoryPlayback, "playback finished")
}

// BeginResponse marks a new response as in progress; the buffer will fill
// again and underruns count as waiting, not completion.
func (p *Player) BeginResponse() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responseComplete = false
}

// CompleteResponse marks the upstream response as fully delivered. Playback
// stops once the buffer drains.
func (p *Player) CompleteResponse() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responseComplete = true
}

// Playing reports whether the playback ticker is running.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Buffered returns the number of bytes awaiting emission.
func (p *Player) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

// Underruns returns the current underrun streak. Diagnostic only.
func (p *Player) Underruns() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.underruns
}

// Close stops the ticker and clears all playback state. Idempotent.
func (p *Player) Close() {
	p.shuttingDown.Store(true)
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
	p.wg.Wait()
}

// decodeFrame converts little-endian PCM16 bytes to samples.
func decodeFrame(b []byte) lkmedia.PCM16Sample {
	samples := make(lkmedia.PCM16Sample, len(b)/BytesPerSample)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*BytesPerSample:]))
	}
	return samples
}
