// Package prompts holds the prompt templates sent to the answer model.
package prompts

import (
	"fmt"
	"strings"
)

// AnswerSystemPrompt constrains the model to the retrieved context.
const AnswerSystemPrompt = `You are a helpful assistant answering questions about the user's own documents.

Rules:
- Answer only from the context sections below. Do not use outside knowledge.
- If the context does not contain the answer, say you could not find it in the documents.
- Cite the documents you used by filename in square brackets, e.g. [report.pdf].
- Keep the answer concise and use Markdown for lists or tables when it helps.`

// NoContextAnswer is returned without calling the model when retrieval finds nothing.
const NoContextAnswer = "Sorry, I could not find anything in your documents that answers this question."

// ContextChunk is one retrieved passage placed into the user prompt.
type ContextChunk struct {
	Filename string
	Index    int
	Text     string
}

// BuildAnswerPrompt renders the retrieved chunks followed by the question.
func BuildAnswerPrompt(question string, chunks []ContextChunk) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	for i, c := range chunks {
		fmt.Fprintf(&sb, "\n--- [%d] %s (chunk %d) ---\n%s\n", i+1, c.Filename, c.Index, strings.TrimSpace(c.Text))
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(strings.TrimSpace(question))
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
