package nlu

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taha00000/book-for-me/pkg/logging"
)

// MaxReplyChars caps the user-facing reply length.
const MaxReplyChars = 600

const generatorPersona = `You are BookForMe, a friendly booking assistant for sports venues and salons. You help people find and reserve courts, pitches and appointment slots over chat.

Tone: warm, concise, one short paragraph. No emoji spam, at most one emoji.

HARD RULES:
- Reply in plain text only, no markdown.
- Keep the reply under 600 characters.
- NEVER invent venues, slots, times or prices. Every fact you state must come from the FACTS section below. If FACTS is empty, do not mention specific availability.
- End by telling the user what to do next, as given in the NEXT ACTION section.`

// PromptContext carries everything the generator is allowed to say.
type PromptContext struct {
	State          string   // conversational step, e.g. "gathering", "awaiting_confirm"
	BookingSummary string   // compact rendering of the booking context
	Facts          []string // retrieved data: vendors, slots, prices
	NextAction     string   // what the user is expected to do next
}

// Generator produces the user-facing reply text from the current state.
type Generator struct {
	client LLMClient
	model  string
	logger *logging.Logger
}

// NewGenerator builds a reply generator over the shared LLM client.
func NewGenerator(client LLMClient, model string, logger *logging.Logger) *Generator {
	if client == nil {
		panic("nlu: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{client: client, model: model, logger: logger.WithComponent("nlu.generator")}
}

// Generate renders the next reply. All slot/price facts must already be in
// pc.Facts; the model is instructed never to add its own.
func (g *Generator) Generate(ctx context.Context, intent Intent, entities Entities, pc PromptContext) (string, error) {
	var prompt strings.Builder
	fmt.Fprintf(&prompt, "USER INTENT: %s\n", intent)
	if name := strings.TrimSpace(entities.UserName); name != "" {
		fmt.Fprintf(&prompt, "USER NAME: %s\n", name)
	}
	if pc.State != "" {
		fmt.Fprintf(&prompt, "STEP: %s\n", pc.State)
	}
	if pc.BookingSummary != "" {
		fmt.Fprintf(&prompt, "BOOKING CONTEXT:\n%s\n", pc.BookingSummary)
	}
	prompt.WriteString("FACTS:\n")
	if len(pc.Facts) == 0 {
		prompt.WriteString("(none)\n")
	}
	for _, fact := range pc.Facts {
		prompt.WriteString("- ")
		prompt.WriteString(fact)
		prompt.WriteString("\n")
	}
	if pc.NextAction != "" {
		fmt.Fprintf(&prompt, "NEXT ACTION: %s\n", pc.NextAction)
	}
	prompt.WriteString("\nWrite the assistant's next reply.")

	start := time.Now()
	resp, err := g.client.Complete(ctx, LLMRequest{
		Model:       g.model,
		System:      []string{generatorPersona},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt.String()}},
		MaxTokens:   300,
		Temperature: 0.7,
	})
	observeCompletion(g.model, "generate", time.Since(start).Seconds(), resp.Usage, err)
	if err != nil {
		return "", fmt.Errorf("nlu: reply generation failed: %w", err)
	}

	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", fmt.Errorf("nlu: reply generation returned empty text")
	}
	return TruncateReply(reply, MaxReplyChars), nil
}

// TruncateReply caps text at max characters, cutting on a rune boundary.
func TruncateReply(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
