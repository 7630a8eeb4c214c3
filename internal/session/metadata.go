// Package session holds per-interview settings resolved from participant
// metadata: the synthesized voice and the interview context used to build the
// system prompt.
package session

import (
	"encoding/json"
	"strings"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

// Context describes the interview the participant signed up for.
type Context struct {
	Position        string   `json:"position,omitempty"`
	InterviewType   string   `json:"interviewType,omitempty"`
	CompanyName     string   `json:"companyName,omitempty"`
	Skills          []string `json:"skills,omitempty"`
	Difficulty      string   `json:"difficulty,omitempty"`
	ExperienceLevel string   `json:"experienceLevel,omitempty"`
	Duration        int      `json:"duration,omitempty"`
}

// Empty reports whether no context field is set.
func (c Context) Empty() bool {
	return c.Position == "" && c.InterviewType == "" && c.CompanyName == "" &&
		len(c.Skills) == 0 && c.Difficulty == "" && c.ExperienceLevel == "" &&
		c.Duration == 0
}

// Settings is the immutable per-session configuration built once at startup.
type Settings struct {
	Voice   string
	Context Context
}

type metadataPayload struct {
	Voice string `json:"voice,omitempty"`
	Context
}

// ParseMetadata extracts session settings from the participant's free-form
// metadata JSON. Malformed or missing metadata is not an error: the session
// proceeds with the default voice and the base prompt.
func ParseMetadata(metadata, defaultVoice string) Settings {
	settings := Settings{Voice: defaultVoice}

	metadata = strings.TrimSpace(metadata)
	if metadata == "" {
		logging.Info(logging.CategorySession, "no participant metadata, using defaults voice=%s", defaultVoice)
		return settings
	}

	var payload metadataPayload
	if err := json.Unmarshal([]byte(metadata), &payload); err != nil {
		logging.Warning(logging.CategorySession, "malformed participant metadata, using defaults: %v", err)
		return settings
	}

	if payload.Voice != "" {
		settings.Voice = payload.Voice
	}
	settings.Context = payload.Context

	logging.Info(logging.CategorySession, "parsed participant metadata voice=%s position=%q type=%q",
		settings.Voice, settings.Context.Position, settings.Context.InterviewType)
	return settings
}
