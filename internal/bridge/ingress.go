package bridge

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/livekit/protocol/livekit"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	soxr "github.com/zaf/resample"
	opus "gopkg.in/hraban/opus.v2"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

// AudioSender forwards PCM16 audio upstream. The realtime client satisfies
// it; frames sent before the service is ready are dropped by the sender.
type AudioSender interface {
	AppendAudio(pcm []byte) error
}

// ShouldBridge decides whether a subscribed track is the interviewee's
// microphone. Anything else — video, non-microphone sources, or the agent's
// own published track — must never reach the speech service, or the agent
// would ingest its own synthesized voice.
func ShouldBridge(kind webrtc.RTPCodecType, source livekit.TrackSource, publisherIdentity, localIdentity string) bool {
	if kind != webrtc.RTPCodecTypeAudio {
		return false
	}
	if source != livekit.TrackSource_MICROPHONE {
		return false
	}
	if publisherIdentity == "" || publisherIdentity == localIdentity {
		return false
	}
	return true
}

// Ingress forwards one participant's microphone audio to the speech service.
// It decodes Opus packets at 48kHz, resamples to 24kHz and appends raw PCM16
// upstream. Per-frame failures are logged and skipped; they never stop the
// read loop.
type Ingress struct {
	identity string
	sender   AudioSender

	decoder      *opus.Decoder
	resampler    *soxr.Resampler
	resamplerBuf *bytes.Buffer
	resamplerMu  sync.Mutex
	// Preallocated buffers to avoid per-call allocations
	inputBytesBuf    []byte
	outputSamplesBuf []int16

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Logging flags to avoid spam
	firstFrameLogged bool
	firstSendLogged  bool
}

// NewIngress creates an ingress handler for a participant's microphone track.
func NewIngress(identity string, sender AudioSender) (*Ingress, error) {
	decoder, err := opus.NewDecoder(48000, 1)
	if err != nil {
		return nil, fmt.Errorf("create opus decoder: %w", err)
	}

	// Store *bytes.Buffer so the resampler writes to the same buffer we read from
	resamplerBuf := &bytes.Buffer{}
	resampler, err := soxr.New(resamplerBuf, 48000.0, float64(SampleRate), Channels, soxr.I16, soxr.HighQ)
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Ingress{
		identity:         identity,
		sender:           sender,
		decoder:          decoder,
		resampler:        resampler,
		resamplerBuf:     resamplerBuf,
		ctx:              ctx,
		cancel:           cancel,
		inputBytesBuf:    make([]byte, 0, 1920), // 960 samples * 2 bytes
		outputSamplesBuf: make([]int16, 0, 480),
	}, nil
}

// Start begins reading RTP packets from the track.
func (in *Ingress) Start(track *webrtc.TrackRemote) {
	in.wg.Add(1)
	go in.processTrack(track)
	logging.Info(logging.CategoryBridge, "started microphone ingress participant=%s", in.identity)
}

// Stop cancels the read loop and releases the resampler.
func (in *Ingress) Stop() {
	in.cancel()
	in.wg.Wait()
	in.resamplerMu.Lock()
	if in.resampler != nil {
		in.resampler.Close()
		in.resampler = nil
	}
	in.resamplerMu.Unlock()
}

func (in *Ingress) processTrack(track *webrtc.TrackRemote) {
	defer in.wg.Done()

	buf := make([]byte, 1500)
	rtpPacket := &rtp.Packet{}
	pcmFrame48k := make([]int16, 960) // 20ms @ 48kHz

	for {
		select {
		case <-in.ctx.Done():
			return
		default:
			n, _, err := track.Read(buf)
			if err != nil {
				if in.ctx.Err() == nil {
					logging.Warning(logging.CategoryBridge, "microphone track read ended participant=%s: %v", in.identity, err)
				}
				return
			}

			if !in.firstFrameLogged {
				in.firstFrameLogged = true
				logging.Info(logging.CategoryBridge, "received first microphone packet participant=%s size=%d", in.identity, n)
			}

			if err := rtpPacket.Unmarshal(buf[:n]); err != nil {
				logging.Warning(logging.CategoryBridge, "failed to unmarshal RTP packet participant=%s: %v", in.identity, err)
				continue
			}

			opusPayload := rtpPacket.Payload
			if len(opusPayload) == 0 {
				continue // DTX packet
			}

			sampleCount, err := in.decoder.Decode(opusPayload, pcmFrame48k)
			if err != nil {
				if err.Error() == "opus: no data supplied" {
					continue // DTX packet
				}
				logging.Warning(logging.CategoryBridge, "failed to decode opus participant=%s: %v", in.identity, err)
				continue
			}
			if sampleCount == 0 {
				continue
			}

			resampled, err := in.resample(pcmFrame48k[:sampleCount])
			if err != nil {
				logging.Warning(logging.CategoryBridge, "failed to resample participant=%s: %v", in.identity, err)
				continue
			}
			if len(resampled) == 0 {
				// Resampler may be buffering, which is normal
				continue
			}

			if err := in.sender.AppendAudio(samplesToBytes(resampled)); err != nil {
				logging.Warning(logging.CategoryBridge, "failed to send audio upstream participant=%s: %v", in.identity, err)
				continue
			}
			if !in.firstSendLogged {
				in.firstSendLogged = true
				logging.Info(logging.CategoryBridge, "sent first audio frame upstream participant=%s", in.identity)
			}
		}
	}
}

// resample converts 48kHz PCM to the service rate.
func (in *Ingress) resample(samples48k []int16) ([]int16, error) {
	if len(samples48k) == 0 {
		return nil, nil
	}

	in.resamplerMu.Lock()
	defer in.resamplerMu.Unlock()
	if in.resampler == nil {
		return nil, fmt.Errorf("resampler closed")
	}

	inputSize := len(samples48k) * BytesPerSample
	if cap(in.inputBytesBuf) < inputSize {
		in.inputBytesBuf = make([]byte, inputSize)
	}
	inputBytes := in.inputBytesBuf[:inputSize]
	for i, sample := range samples48k {
		binary.LittleEndian.PutUint16(inputBytes[i*BytesPerSample:], uint16(sample))
	}

	in.resamplerBuf.Reset()
	if _, err := in.resampler.Write(inputBytes); err != nil {
		return nil, fmt.Errorf("resampler write: %w", err)
	}

	outputBytes := in.resamplerBuf.Bytes()
	if len(outputBytes) == 0 {
		return nil, nil
	}

	outputSize := len(outputBytes) / BytesPerSample
	if cap(in.outputSamplesBuf) < outputSize {
		in.outputSamplesBuf = make([]int16, outputSize)
	}
	outputSamples := in.outputSamplesBuf[:outputSize]
	for i := 0; i < outputSize; i++ {
		outputSamples[i] = int16(binary.LittleEndian.Uint16(outputBytes[i*BytesPerSample:]))
	}

	// Return a copy since the buffer is reused
	result := make([]int16, outputSize)
	copy(result, outputSamples)
	return result, nil
}

// samplesToBytes encodes samples as little-endian PCM16. The result is always
// an even number of bytes, so the upstream payload never splits a sample.
func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(sample))
	}
	return out
}
