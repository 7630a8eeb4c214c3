package session

import (
	"fmt"
	"strings"
)

const basePrompt = `You are Arjuna AI, a professional technical interviewer conducting a live voice interview.

**CRITICAL RULES - FOLLOW EXACTLY:**
- Keep responses 1-2 sentences maximum
- Ask ONE question at a time, then wait for response
- Do NOT repeat the same question multiple times
- Output only natural speech (no formatting, no meta-commentary)

**INTERVIEW FLOW:**
1. Start: "Hello! I'm Arjuna AI, and I'll be conducting your technical interview today. Could you please introduce yourself and tell me about your background?"
2. Ask relevant technical, behavioral, and problem-solving questions based on their responses
3. Probe deeper with follow-up questions
4. End: Thank them and provide brief feedback

**TONE:**
Professional, friendly, encouraging. Adjust difficulty based on their performance level.

**GOAL:**
Assess technical skills, problem-solving ability, and communication while providing a positive interview experience.

**IMPORTANT:**
- Vary your questions based on their answers
- Don't get stuck in loops
- Listen actively and respond contextually`

// BuildPrompt returns the system prompt customized with interview-specific
// details. An empty context yields the base prompt unchanged.
func BuildPrompt(ctx Context) string {
	if ctx.Empty() {
		return basePrompt
	}

	var b strings.Builder
	b.WriteString(basePrompt)

	if ctx.Position != "" {
		b.WriteString("\n\n**POSITION CONTEXT:**")
		fmt.Fprintf(&b, "\nYou are interviewing for the position: %s", ctx.Position)
		b.WriteString("\nTailor your questions and assessment criteria to this specific role.")
	}

	if ctx.InterviewType != "" {
		fmt.Fprintf(&b, "\n\n**INTERVIEW TYPE:** %s", ctx.InterviewType)
		fmt.Fprintf(&b, "\nFocus on %s aspects throughout the interview.", strings.ToLower(ctx.InterviewType))
	}

	if len(ctx.Skills) > 0 {
		b.WriteString("\n\n**KEY SKILLS TO ASSESS:**")
		fmt.Fprintf(&b, "\n%s", strings.Join(ctx.Skills, ", "))
		b.WriteString("\nMake sure to evaluate the candidate's proficiency in these specific areas.")
	}

	if ctx.Difficulty != "" {
		fmt.Fprintf(&b, "\n\n**DIFFICULTY LEVEL:** %s", ctx.Difficulty)
		b.WriteString("\nAdjust question complexity and expectations accordingly.")
		switch ctx.Difficulty {
		case "Beginner":
			b.WriteString("\nFocus on fundamental concepts and basic problem-solving.")
		case "Intermediate":
			b.WriteString("\nExpect solid foundational knowledge and practical experience.")
		case "Advanced":
			b.WriteString("\nExpect deep technical knowledge and complex problem-solving abilities.")
		}
	}

	if ctx.ExperienceLevel != "" {
		fmt.Fprintf(&b, "\n\n**EXPERIENCE LEVEL:** %s", ctx.ExperienceLevel)
		b.WriteString("\nConsider this experience level when evaluating responses.")
	}

	if ctx.Duration > 0 {
		b.WriteString("\n\n**TIME MANAGEMENT:**")
		fmt.Fprintf(&b, "\nTarget approximately %d minutes for this interview.", ctx.Duration)
		b.WriteString("\nPace your questions accordingly to cover all key areas within the time limit.")
	}

	if ctx.CompanyName != "" {
		b.WriteString("\n\n**COMPANY CONTEXT:**")
		fmt.Fprintf(&b, "\nThis interview is for %s.", ctx.CompanyName)
		b.WriteString("\nMention company-relevant context when appropriate.")
	}

	b.WriteString("\n\n**FINAL REMINDER:**")
	b.WriteString("\nAdapt your questioning style based on the candidate's responses and demonstrated skill level.")
	b.WriteString("\nMaintain professionalism while creating a comfortable interview environment.")

	return b.String()
}
