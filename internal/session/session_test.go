package session

import (
	"strings"
	"testing"

	"github.com/sumitpandey-cell/azure-ai-interview-sub002/internal/logging"
)

func init() {
	logging.Init()
}

func TestParseMetadataEmptyUsesDefaults(t *testing.T) {
	s := ParseMetadata("", "alloy")
	if s.Voice != "alloy" {
		t.Fatalf("expected default voice alloy, got %s", s.Voice)
	}
	if !s.Context.Empty() {
		t.Fatalf("expected empty context")
	}
}

func TestParseMetadataMalformedUsesDefaults(t *testing.T) {
	s := ParseMetadata("{not json", "alloy")
	if s.Voice != "alloy" {
		t.Fatalf("expected default voice on malformed metadata, got %s", s.Voice)
	}
}

func TestParseMetadataFull(t *testing.T) {
	meta := `{
		"voice": "verse",
		"position": "Backend Engineer",
		"interviewType": "Technical",
		"companyName": "Acme",
		"skills": ["Go", "Postgres"],
		"difficulty": "Advanced",
		"experienceLevel": "Senior",
		"duration": 30
	}`
	s := ParseMetadata(meta, "alloy")
	if s.Voice != "verse" {
		t.Fatalf("expected voice verse, got %s", s.Voice)
	}
	if s.Context.Position != "Backend Engineer" || s.Context.Duration != 30 {
		t.Fatalf("context not parsed: %+v", s.Context)
	}
}

func TestParseMetadataVoiceOnly(t *testing.T) {
	s := ParseMetadata(`{"voice":"coral"}`, "alloy")
	if s.Voice != "coral" {
		t.Fatalf("expected voice coral, got %s", s.Voice)
	}
	if !s.Context.Empty() {
		t.Fatalf("expected empty context, got %+v", s.Context)
	}
}

func TestBuildPromptBase(t *testing.T) {
	p := BuildPrompt(Context{})
	if !strings.Contains(p, "Arjuna AI") {
		t.Fatalf("base prompt missing identity")
	}
	if strings.Contains(p, "POSITION CONTEXT") {
		t.Fatalf("empty context must not add sections")
	}
}

func TestBuildPromptCustomized(t *testing.T) {
	p := BuildPrompt(Context{
		Position:   "SRE",
		Skills:     []string{"Kubernetes", "Terraform"},
		Difficulty: "Intermediate",
		Duration:   45,
	})
	for _, want := range []string{
		"You are interviewing for the position: SRE",
		"Kubernetes, Terraform",
		"Expect solid foundational knowledge",
		"Target approximately 45 minutes",
		"FINAL REMINDER",
	} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
