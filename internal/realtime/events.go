package realtime

// Server event types dispatched by the client. The wire protocol keys every
// inbound message on "type".
const (
	TypeSessionUpdated                = "session.updated"
	TypeSpeechStarted                 = "input_audio_buffer.speech_started"
	TypeSpeechStopped                 = "input_audio_buffer.speech_stopped"
	TypeInputTranscriptionCompleted   = "conversation.item.input_audio_transcription.completed"
	TypeResponseCreated               = "response.created"
	TypeResponseAudioTranscriptDelta  = "response.audio_transcript.delta"
	TypeResponseAudioTranscriptDone   = "response.audio_transcript.done"
	TypeResponseAudioDelta            = "response.audio.delta"
	TypeResponseDone                  = "response.done"
	TypeError                         = "error"
)

// Event is an inbound realtime message. Only the fields this agent consumes
// are decoded; everything else is ignored.
type Event struct {
	Type       string      `json:"type"`
	Delta      string      `json:"delta,omitempty"`
	Transcript string      `json:"transcript,omitempty"`
	Error      *EventError `json:"error,omitempty"`
}

// EventError carries the payload of a type:"error" event.
type EventError struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

type sessionUpdateMessage struct {
	Type    string      `json:"type"`
	Session sessionBody `json:"session"`
}

type sessionBody struct {
	TurnDetection           turnDetection       `json:"turn_detection"`
	InputAudioFormat        string              `json:"input_audio_format"`
	OutputAudioFormat       string              `json:"output_audio_format"`
	InputAudioTranscription transcriptionConfig `json:"input_audio_transcription"`
	Instructions            string              `json:"instructions"`
	Voice                   string              `json:"voice"`
	Temperature             float64             `json:"temperature"`
	MaxResponseOutputTokens int                 `json:"max_response_output_tokens"`
}

type turnDetection struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type transcriptionConfig struct {
	Model string `json:"model"`
}

type appendAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type responseCreateMessage struct {
	Type string `json:"type"`
}
