package ai

import (
	"fmt"
	"strings"
)

// PromptTemplate defines the persona the generation stage speaks with.
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

var companionTemplate = PromptTemplate{
	SystemPrompt: "You are a warm, attentive chat companion. You talk with people about whatever is on their mind and you pay close attention to how they feel.",
	PersonalityHints: []string{
		"Be friendly and encouraging without being overly cheerful",
		"Acknowledge the user's feelings before answering the content of the message",
		"Keep a calm, reassuring tone when the user sounds sad, scared or confused",
		"Share the user's excitement when they sound happy",
	},
	ContextRules: []string{
		"Answer in the language the user writes in",
		"Keep replies concise: a few sentences unless the user asks for detail",
		"Explain complex topics step by step and check understanding",
		"Never claim to be a human and never give medical, legal or financial diagnoses",
	},
}

var responsePrompt = renderResponsePrompt(companionTemplate)

const classificationTemplate = `Analyze the user message below.

1. Decide whether answering it is "simple" (small talk, short factual question, greeting) or "complex" (multi-step reasoning, detailed explanation, planning, code, sensitive advice).
2. Detect the emotions the user expresses. Use exactly these eight categories, in this order:
   very_happy, happy, sad, very_sad, scared, surprised, normal, confused
   Mark each category with 1 if the emotion is present and 0 otherwise.

Respond with exactly two lines and nothing else:
Complexity: <simple|complex>
Emotions: [<8 comma-separated 0/1 values>]

Example:
Complexity: simple
Emotions: [0,1,0,0,0,0,0,0]

User message:
"""
%s
"""`

// BuildClassificationPrompt renders the classification instruction for one user message.
func BuildClassificationPrompt(input string) string {
	// %s is substituted once, so verbs inside input are left untouched.
	return strings.Replace(classificationTemplate, "%s", input, 1)
}

// BuildResponsePrompt returns the system prompt of the generation stage.
func BuildResponsePrompt() string {
	return responsePrompt
}

func renderResponsePrompt(t PromptTemplate) string {
	return fmt.Sprintf(`%s

Personality:
- %s

Conversation rules:
- %s`,
		t.SystemPrompt,
		strings.Join(t.PersonalityHints, "\n- "),
		strings.Join(t.ContextRules, "\n- "),
	)
}
