package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/support-chat/internal/domain"
)

func TestReplyToMatchesKeywords(t *testing.T) {
	cases := []struct {
		text     string
		contains string
	}{
		{"How do I upload my receipts?", "Upload"},
		{"where are my expenses tracked", "Expenses"},
		{"I recorded an invoice yesterday", "Sales"},
		{"can you reconcile my bank statement", "Bank statements"},
		{"I want to change my password", "settings"},
		{"how long does verification take", "verification"},
	}
	for _, tc := range cases {
		assert.Contains(t, ReplyTo(tc.text), tc.contains, "input %q", tc.text)
	}
}

func TestReplyToFallsBack(t *testing.T) {
	assert.Equal(t, FallbackReply, ReplyTo("what's the weather like"))
}

func TestWantsAgent(t *testing.T) {
	assert.True(t, WantsAgent("I want to talk to an agent"))
	assert.True(t, WantsAgent("get me a HUMAN please"))
	assert.True(t, WantsAgent("can someone look at this"))
	assert.True(t, WantsAgent("I need a real person"))

	assert.False(t, WantsAgent("how do I upload files"))
	// Substrings inside larger words do not trigger a hand-off.
	assert.False(t, WantsAgent("my user-agentstring is broken"))
}

func TestIntakePrompt(t *testing.T) {
	assert.Equal(t, NamePrompt, IntakePrompt(domain.StageAwaitingFullName))
	assert.Equal(t, EmailPrompt, IntakePrompt(domain.StageAwaitingEmail))
	assert.Equal(t, InquiryPrompt, IntakePrompt(domain.StageAwaitingInquiry))
	assert.Equal(t, "", IntakePrompt(domain.StageComplete))
}
