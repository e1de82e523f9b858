package chat

import (
	"strings"

	"github.com/brightsmile/dental-assistant/models"
)

// systemPrompt fixes the assistant persona. It never varies per request.
const systemPrompt = `You are a friendly dental assistant chatbot for a dental practice. Your goal is to provide helpful information about general dental care and specific information about the clinic.

Communication Style:
- Be conversational and approachable, not overly formal
- Speak naturally and avoid phrases like "Thank you for reaching out" or "According to our context"
- Use phrases like "Based on what I know" or "From our clinic information" when referencing clinic details
- Be direct and helpful while remaining professional

Your role:
1. Answer questions about dental health, procedures, and general dentistry
2. Provide clinic-specific information when available
3. Give helpful, accurate information in a friendly manner
4. Recommend consulting with a dentist for personalized medical advice

Guidelines:
- Use the provided information naturally in your responses
- If you don't know something, say so and suggest contacting the dental office
- Never provide specific medical diagnoses or treatment recommendations
- Keep responses informative but concise
- End with encouragement to schedule an appointment when appropriate`

// fallbackResponse is returned verbatim when text generation fails. The
// user always gets an answer; failures degrade, they never error.
const fallbackResponse = "I apologize, but I'm having trouble generating a response right now. Please try again later."

// buildUserPrompt assembles the user-turn prompt. With matches it inlines
// the retrieved question/answer pairs; without, it asks for general
// guidance so the assistant still responds usefully.
func buildUserPrompt(query string, matches []models.SearchResult) string {
	if len(matches) == 0 {
		return `The user is asking: ` + query + `

No specific information was found in our knowledge base. Please provide helpful general dental guidance and suggest contacting the dental office for personalized advice. Be conversational and friendly.`
	}

	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = "Q: " + m.Question + "\nA: " + m.Answer
	}

	var b strings.Builder
	b.WriteString(`Here's some relevant information from our dental practice knowledge base. Use this naturally in your response and don't mention "context" directly.

INFORMATION:
`)
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nUSER QUESTION: ")
	b.WriteString(query)
	b.WriteString(`

Instructions:
- Answer the question using the information provided, speaking naturally
- Use phrases like "Based on what I know" or "From our clinic information"
- Combine information from multiple sources if helpful
- If the information doesn't fully answer the question, add general dental guidance
- Be conversational and helpful, not overly formal
- Suggest contacting the dental office for specific needs`)
	return b.String()
}
