// Package cli provides CLI output utilities for Finsight.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/finsight/finsight/internal/models"
)

// AnswerOutputFormat is the format for answer output.
type AnswerOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText AnswerOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON AnswerOutputFormat = "json"
)

// WriteAnswer writes a generated answer to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, answer *models.Answer, format AnswerOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	default:
		writeAnswerText(w, answer)
		return nil
	}
}

func writeAnswerText(w io.Writer, answer *models.Answer) {
	fmt.Fprintf(w, "\n%s\n\n", answer.Answer)
	fmt.Fprintf(w, "Model: %s | Context chunks: %d\n", answer.Model, answer.ChunkCount)
	for i, chunk := range answer.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "[%d] %s\n", i+1, Truncate(chunk, 200))
	}
	fmt.Fprintln(w)
}

// PrintAnswer prints an answer to stdout in text format.
func PrintAnswer(answer *models.Answer) {
	_ = WriteAnswer(os.Stdout, answer, OutputText)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
