package generator

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a helpful financial analyst assistant. Answer questions based only on the provided context. If the context does not contain enough information to answer, say "I don't have enough information in the provided documents."`

// JoinContext assembles retrieved chunks into a single context block.
func JoinContext(chunks []string) string {
	return strings.Join(chunks, "\n\n")
}

// buildUserPrompt formats the context block and question for the model.
func buildUserPrompt(question, contextBlock string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\nAnswer:", contextBlock, question)
}
