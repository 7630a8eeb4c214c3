package bridge

import (
	"encoding/binary"
	"testing"

	"github.com/livekit/protocol/livekit"
	"github.com/pion/webrtc/v4"
)

func TestShouldBridge(t *testing.T) {
	const local = "interview-agent"

	cases := []struct {
		name      string
		kind      webrtc.RTPCodecType
		source    livekit.TrackSource
		publisher string
		want      bool
	}{
		{"remote microphone", webrtc.RTPCodecTypeAudio, livekit.TrackSource_MICROPHONE, "candidate-1", true},
		{"video track", webrtc.RTPCodecTypeVideo, livekit.TrackSource_CAMERA, "candidate-1", false},
		{"own published track", webrtc.RTPCodecTypeAudio, livekit.TrackSource_MICROPHONE, local, false},
		{"non-microphone audio", webrtc.RTPCodecTypeAudio, livekit.TrackSource_UNKNOWN, "candidate-1", false},
		{"screen share audio", webrtc.RTPCodecTypeAudio, livekit.TrackSource_SCREEN_SHARE_AUDIO, "candidate-1", false},
		{"empty identity", webrtc.RTPCodecTypeAudio, livekit.TrackSource_MICROPHONE, "", false},
	}

	for _, tc := range cases {
		if got := ShouldBridge(tc.kind, tc.source, tc.publisher, local); got != tc.want {
			t.Fatalf("%s: ShouldBridge=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSamplesToBytesLittleEndian(t *testing.T) {
	samples := []int16{0, 1, -1, 256, -32768}
	out := samplesToBytes(samples)
	if len(out) != len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", len(samples)*2, len(out))
	}
	if len(out)%2 != 0 {
		t.Fatalf("payload must never split a sample")
	}
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(out[i*2:]))
		if got != want {
			t.Fatalf("sample %d round-tripped as %d, want %d", i, got, want)
		}
	}
}
