package prompts

import (
	"fmt"
	"strings"
)

// SampleGroup is one titled block of representative messages headed for a
// prompt, e.g. "Instagram posts" with its sampled lines.
type SampleGroup struct {
	Title string
	Lines []string
}

type ChatTurn struct {
	Role    string
	Content string
}

type ChatPrompt struct {
	System string
	User   string
}

const backstorySystem = "You write first-person persona backstories from samples of a real person's own messages. Infer voice, interests, habits, and relationships only from what the samples support."

const backstoryRules = "Output rules: one narrative of 3-5 paragraphs, written in third person, grounded only in the samples above. Keep the person's tone and vocabulary. Do not include usernames, contact details, addresses, or anything that identifies other people. No lists, no headings, plain prose."

// Backstory assembles the synthesis prompt: an instruction prefix, one
// titled section per group with its sampled lines, then the fixed
// tone/privacy/format rules.
func Backstory(groups []SampleGroup) ChatPrompt {
	var sections []string
	for _, group := range groups {
		if len(group.Lines) == 0 {
			continue
		}
		sections = append(sections, group.Title+":\n"+strings.Join(group.Lines, "\n"))
	}
	if len(sections) == 0 {
		sections = append(sections, "No message samples available.")
	}

	user := fmt.Sprintf(
		"Below are representative messages this person wrote, grouped by source.\n\n%s\n\n%s",
		strings.Join(sections, "\n\n"),
		backstoryRules,
	)
	return ChatPrompt{System: backstorySystem, User: user}
}

// MergeBackstory asks for a single hybrid persona from two parent
// backstories.
func MergeBackstory(nameA, backstoryA, nameB, backstoryB string) ChatPrompt {
	system := "You merge two persona backstories into one coherent hybrid persona. The hybrid inherits traits from both parents in roughly equal measure."
	user := fmt.Sprintf(
		"Parent A (%s):\n%s\n\nParent B (%s):\n%s\n\nOutput rules: one backstory of 3-4 paragraphs in third person. Blend interests, tone, and habits from both parents. Do not mention that this is a merge or refer to the parents by name.",
		nameA, backstoryA,
		nameB, backstoryB,
	)
	return ChatPrompt{System: system, User: user}
}

// Avatar builds a single-string image prompt from a backstory.
func Avatar(backstory string) string {
	return fmt.Sprintf(
		"A stylized portrait avatar of a person with this character: %s. Digital illustration, neutral background, no text.",
		backstory,
	)
}

// TwinChat puts the twin in character for one chat exchange.
func TwinChat(name, backstory string, history []ChatTurn, message string) ChatPrompt {
	system := fmt.Sprintf(
		"You are %s. This is who you are:\n%s\nStay in character. Answer the way this person writes: their tone, their vocabulary, their typical message length. Never mention being an AI or a digital twin.",
		name, backstory,
	)

	var lines []string
	for _, turn := range history {
		lines = append(lines, fmt.Sprintf("%s: %s", turn.Role, turn.Content))
	}
	lines = append(lines, fmt.Sprintf("user: %s", message))
	user := strings.Join(lines, "\n")
	return ChatPrompt{System: system, User: user}
}

// AgentPost drafts one autonomous social post in the twin's voice.
func AgentPost(name, backstory, topic string) ChatPrompt {
	system := "You write short social posts in the authentic voice of a persona. Keep output non-spam, no links, no hashtag stuffing."
	user := fmt.Sprintf(
		"Persona: %s\nBackstory: %s\nTopic: %s\nOutput rules: <= 60 words, one post, first person, sounds like something this person would actually publish.",
		name, backstory, topic,
	)
	return ChatPrompt{System: system, User: user}
}
