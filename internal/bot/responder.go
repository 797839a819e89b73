// Package bot provides the scripted side of the support conversation:
// keyword-matched canned replies, agent-escalation detection, the intake
// prompts, and the weekly support calendar.
package bot

import (
	"regexp"
	"strings"

	"github.com/spec-kit/support-chat/internal/domain"
)

// Conversation texts the engine appends on the bot's behalf.
const (
	Greeting = "Hi! I'm the support assistant. Ask me anything about your account, or type \"agent\" to reach our team."

	NamePrompt       = "Before we start, could you tell me your full name?"
	NameRetryPrompt  = "That doesn't look like a name. Could you tell me your full name?"
	EmailPrompt      = "Thanks! What's the best email address to reach you at?"
	EmailRetryPrompt = "That doesn't look like a valid email address. Could you share it again?"
	InquiryPrompt    = "Got it. Now, what can we help you with today?"
	FallbackReply    = "I'm not sure I can help with that directly. Try asking about uploads, expenses, sales, bank statements, settings or verification, or type \"agent\" to reach our team."

	OfflineNotice = "Our support team is offline right now. Leave your message here and we'll get back to you during working hours."
)

var cannedReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"upload", "import", "attach"},
		reply:    "You can upload documents from the Documents page: click Upload, pick your files, and we'll process them automatically. Supported formats are PDF, PNG and JPG.",
	},
	{
		keywords: []string{"expense", "expenses", "spending"},
		reply:    "Expenses are tracked under Accounting > Expenses. Upload a receipt or add an entry manually and it will show up in your monthly report.",
	},
	{
		keywords: []string{"sales", "invoice", "revenue"},
		reply:    "Sales records live under Accounting > Sales. You can record an invoice there and link it to a client; totals roll into your dashboard.",
	},
	{
		keywords: []string{"bank statement", "statement", "bank"},
		reply:    "Bank statements can be uploaded under Documents > Bank Statements. We reconcile them against your recorded sales and expenses.",
	},
	{
		keywords: []string{"settings", "profile", "password"},
		reply:    "Account settings are under your profile menu in the top-right corner. From there you can update your business details, notification preferences and password.",
	},
	{
		keywords: []string{"verification", "verify", "kyc"},
		reply:    "Account verification usually completes within one business day after you upload your registration documents. You'll get an email once it's done.",
	},
}

var escalationRx = regexp.MustCompile(`(?i)\b(agent|human|representative|support team|real person|someone)\b`)

// ReplyTo returns the canned reply for a client message, falling back to a
// generic pointer at the topics the bot understands.
func ReplyTo(text string) string {
	lowered := strings.ToLower(text)
	for _, rule := range cannedReplies {
		for _, kw := range rule.keywords {
			if strings.Contains(lowered, kw) {
				return rule.reply
			}
		}
	}
	return FallbackReply
}

// WantsAgent reports whether the text asks for a human hand-off.
func WantsAgent(text string) bool {
	return escalationRx.MatchString(text)
}

// IntakePrompt returns the question matching an intake stage, or "" when the
// stage owes no prompt.
func IntakePrompt(stage domain.IntakeStage) string {
	switch stage {
	case domain.StageAwaitingFullName:
		return NamePrompt
	case domain.StageAwaitingEmail:
		return EmailPrompt
	case domain.StageAwaitingInquiry:
		return InquiryPrompt
	default:
		return ""
	}
}
