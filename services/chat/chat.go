package chat

import (
	"context"
	"fmt"
	"strings"

	"thaliya-gateway/constants"
	"thaliya-gateway/logger"

	"google.golang.org/genai"
)

const classifierModel = "gemini-2.5-flash-lite"

// Responder classifies guest intent and answers informational questions.
// The Gemini classifier is optional; without an API key every call falls
// back to keyword matching and canned answers.
type Responder struct {
	client *genai.Client
}

// NewResponder creates the chat collaborator. An empty API key disables
// the model-backed classifier.
func NewResponder(ctx context.Context, apiKey string) *Responder {
	if apiKey == "" {
		logger.Warning("GEMINI_API_KEY not set, intent classification will use keyword matching only")
		return &Responder{}
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		logger.Error("Failed to create Gemini client, falling back to keyword matching", err)
		return &Responder{}
	}
	return &Responder{client: client}
}

// ClassifyIntent returns one of the guest intents for a free-text query.
func (r *Responder) ClassifyIntent(ctx context.Context, query string) string {
	if r.client == nil {
		return classifyKeywords(query)
	}

	prompt := fmt.Sprintf(`Classify this healthcare chat message into exactly one intent.

Intents:
- appointment: wants to book, change, or ask about their own appointment
- ticket: has an issue needing staff follow-up (prescription refill, billing problem, missing results)
- rag_info: asks for general clinic information (hours, location, services, insurance accepted)
- general: anything else

Message: %q

Reply with only the intent name, nothing else.`, query)

	content := &genai.Content{
		Parts: []*genai.Part{
			{Text: prompt},
		},
	}

	result, err := r.client.Models.GenerateContent(
		ctx,
		classifierModel,
		[]*genai.Content{content},
		&genai.GenerateContentConfig{
			Temperature: genai.Ptr(float32(0.1)),
		},
	)
	if err != nil {
		logger.Error("Intent classification failed, using keyword fallback", err)
		return classifyKeywords(query)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return classifyKeywords(query)
	}

	intent := strings.ToLower(strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text))
	switch intent {
	case constants.IntentAppointment, constants.IntentTicket, constants.IntentRagInfo, constants.IntentGeneral:
		return intent
	default:
		return classifyKeywords(query)
	}
}

func classifyKeywords(query string) string {
	lower := strings.ToLower(query)

	for _, w := range []string{"appointment", "book", "schedule", "visit"} {
		if strings.Contains(lower, w) {
			return constants.IntentAppointment
		}
	}
	for _, w := range []string{"ticket", "issue", "problem", "help", "refill", "prescription"} {
		if strings.Contains(lower, w) {
			return constants.IntentTicket
		}
	}
	for _, w := range []string{"hours", "location", "address", "services", "doctors", "insurance"} {
		if strings.Contains(lower, w) {
			return constants.IntentRagInfo
		}
	}
	return constants.IntentGeneral
}

// AnswerInfoQuestion returns an answer for clinic-information questions.
// Static answers stand in when no knowledge backend is available.
func (r *Responder) AnswerInfoQuestion(ctx context.Context, query string) string {
	lower := strings.ToLower(query)

	switch {
	case containsAny(lower, "hours", "time", "open", "close"):
		return "Our office hours are Monday through Friday, 8:00 AM to 6:00 PM. We're closed on weekends and holidays."
	case containsAny(lower, "location", "address", "where"):
		return "We're located at 123 Healthcare Drive, Medical City, State 12345. We have convenient parking available."
	case containsAny(lower, "insurance", "cost", "price", "payment"):
		return "We accept most major insurance plans. For specific coverage questions, please contact our billing department at (555) 123-4568."
	case containsAny(lower, "emergency", "urgent"):
		return "For medical emergencies, please call 911 immediately. For urgent care needs, visit our urgent care center or call (555) 123-URGENT."
	case containsAny(lower, "appointment", "schedule", "book"):
		return "To schedule an appointment, please call us at (555) 123-4567 or use our online booking system. I can also help you if you complete authentication first."
	default:
		return "I'm here to help with your healthcare needs! I can provide information about our services, hours, location, and help you schedule appointments. For specific medical questions, please consult with our healthcare providers directly."
	}
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
