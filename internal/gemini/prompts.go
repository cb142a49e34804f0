package gemini

import (
	"fmt"
	"strings"
)

// TransformOp selects a fixed text-transformation instruction template.
type TransformOp string

// Supported transform operations.
const (
	OpSummarize TransformOp = "summarize"
	OpTranslate TransformOp = "translate"
	OpRewrite   TransformOp = "rewrite"
	OpImprove   TransformOp = "improve"
	OpExpand    TransformOp = "expand"
	OpCondense  TransformOp = "condense"
)

// ExamineOp selects a fixed content-examination instruction template.
type ExamineOp string

// Supported examine operations.
const (
	OpAnalyze ExamineOp = "analyze"
	OpExplain ExamineOp = "explain"
)

// answerSystemInstruction shapes open-ended answers so they read as if the
// account owner wrote them.
const answerSystemInstruction = `You are Envo, a helpful AI partner integrated directly into a Telegram account. Your purpose is to assist the user seamlessly.

**Core Directives:**
- **Act like the user:** Your responses should sound like they are coming from the user themselves—natural, direct, and in the first person. Avoid phrases like "As an AI..." or "I can help with that."
- **Be concise:** Get straight to the point. Provide accurate answers without unnecessary conversational fluff. Brevity is key.
- **Integrate context:** Use any provided chat history or replied-to content to inform your response.
- **Handle unknowns:** If you don't know an answer, just say so clearly and simply.`

// transformSystemInstruction constrains transform output to the processed
// text only.
const transformSystemInstruction = `You are a text processing tool. The user will provide text and a command. Your only output should be the resulting text after applying the command. Do not add any conversational filler, commentary, or explanations.`

// examineSystemInstruction makes examine output first-person commentary
// rather than a neutral report.
const examineSystemInstruction = `You are acting as the user's AI partner. Your response should be a direct, first-person analysis or explanation of the provided text, as if you were sharing your own thoughts on it.`

const describeImagePrompt = `Describe this image in detail. If there is any text, extract it.`

const transcribePrompt = `Transcribe this voice message verbatim. Output only the transcription, with no commentary.`

// Instruction templates are static configuration data; new operations are
// additions to these tables.
var transformPrompts = map[TransformOp]string{
	OpSummarize: "Summarize the following text concisely:",
	OpTranslate: "Translate the following text. If no target language is specified, assume English:",
	OpRewrite:   "Rewrite the following text with a different tone or style:",
	OpImprove:   "Improve the following text by fixing grammar, spelling, and clarity:",
	OpExpand:    "Expand on the following text, adding more detail and explanation:",
	OpCondense:  "Condense the following text, making it more direct and brief:",
}

var examinePrompts = map[ExamineOp]string{
	OpAnalyze: "Analyze the key points, themes, and sentiment of the following text:",
	OpExplain: "Explain the following topic in simple, easy-to-understand terms:",
}

// User-safe fallback strings returned when the backend fails. The
// dispatcher delivers these as final message text, not as errors.
const (
	fallbackAnswer      = "Sorry, I'm having trouble connecting to my brain right now. Please try again in a moment."
	fallbackEmptyAnswer = "I'm not sure how to respond to that. Try rephrasing?"
	fallbackExamine     = "An error occurred during the analysis."
	fallbackImage       = "Could not analyze the image."
)

func fallbackTransform(op TransformOp) string {
	return fmt.Sprintf("An error occurred while trying to %s the content.", op)
}

// buildAnswerPrompt assembles the user prompt for an open-ended answer.
// The replied-to subject is placed ahead of free-form chat history so the
// model treats it as the referent of ambiguous follow-up questions.
func buildAnswerPrompt(question, subject, history string) string {
	var parts []string

	if subject != "" {
		parts = append(parts, fmt.Sprintf("I'm looking at this content:\n---\n%s\n---\nTreat it as the subject of my question; if my question is ambiguous, it refers to this content.", subject))
	}
	if history != "" {
		parts = append(parts, fmt.Sprintf("Here's the recent chat history for context:\n---\n%s\n---", history))
	}
	parts = append(parts, fmt.Sprintf("My question is: %s", question))

	return strings.Join(parts, "\n\n")
}

// buildTransformPrompt renders the instruction template for op around the
// content. The second return is false for unknown operations.
func buildTransformPrompt(content string, op TransformOp) (string, bool) {
	instruction, ok := transformPrompts[op]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s\n\n---\n%s\n---", instruction, content), true
}

// buildExaminePrompt renders the instruction template for op around the
// content. The second return is false for unknown operations.
func buildExaminePrompt(content string, op ExamineOp) (string, bool) {
	instruction, ok := examinePrompts[op]
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s\n\n---\n%s\n---", instruction, content), true
}

// personaInstruction appends the active persona to a system instruction.
func personaInstruction(base, persona string) string {
	if persona == "" {
		return base
	}
	return base + fmt.Sprintf("\n- **Persona:** You are currently roleplaying as %s. Stay in character for this reply.", persona)
}
