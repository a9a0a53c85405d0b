package extract

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// DefaultMaxPromptChars is the prompt size limit, in characters, used when
// none is configured. It counts the whole prompt: instructions, body markers
// and body. With the built-in instructions that leaves roughly 11k characters
// for the email body.
const DefaultMaxPromptChars = 15000

const (
	bodyStartMarker          = "--- EMAIL BODY START ---"
	bodyStartMarkerTruncated = "--- EMAIL BODY START (TRUNCATED) ---"
	bodyEndMarker            = "--- EMAIL BODY END ---"
)

//go:embed prompt.txt
var defaultInstructions string

// DefaultInstructions returns the built-in extraction instructions.
func DefaultInstructions() string {
	return strings.TrimSpace(defaultInstructions)
}

// LoadInstructions reads instructions from path. An empty path returns the
// built-in instructions.
func LoadInstructions(path string) (string, error) {
	if path == "" {
		return DefaultInstructions(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read instructions file: %w", err)
	}

	instructions := strings.TrimSpace(string(data))
	if instructions == "" {
		return "", fmt.Errorf("instructions file %s is empty", path)
	}
	return instructions, nil
}

// Prompt is the text sent to the model.
type Prompt struct {
	Text string
	// Truncated is set when the email body was cut to fit the limit.
	Truncated bool
	// BodyChars is the number of body characters included.
	BodyChars int
}

// BuildPrompt wraps body in the start and end markers after the instructions.
//
// limit bounds the whole prompt in characters. When it is exceeded only the
// body is cut, on a character boundary, and the start marker says so. The
// instructions are never cut, so a prompt can still exceed limit when the
// instructions alone do. A limit <= 0 disables truncation.
func BuildPrompt(instructions, body string, limit int) Prompt {
	full := assemble(instructions, bodyStartMarker, body)
	bodyChars := utf8.RuneCountInString(body)
	if limit <= 0 || utf8.RuneCountInString(full) <= limit {
		return Prompt{Text: full, BodyChars: bodyChars}
	}

	overhead := utf8.RuneCountInString(assemble(instructions, bodyStartMarkerTruncated, ""))
	room := limit - overhead
	if room < 0 {
		room = 0
	}

	cut := truncateRunes(body, room)
	return Prompt{
		Text:      assemble(instructions, bodyStartMarkerTruncated, cut),
		Truncated: true,
		BodyChars: utf8.RuneCountInString(cut),
	}
}

func assemble(instructions, startMarker, body string) string {
	var b strings.Builder
	b.Grow(len(instructions) + len(startMarker) + len(body) + len(bodyEndMarker) + 4)
	b.WriteString(instructions)
	b.WriteString("\n\n")
	b.WriteString(startMarker)
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(bodyEndMarker)
	return b.String()
}

// truncateRunes returns the first n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
