package response

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/moodchat/backend/internal/model/emotion"
)

// Complexity is the routing label produced by the classification stage.
type Complexity string

const (
	Simple  Complexity = "simple"
	Complex Complexity = "complex"
)

// FallbackReply is shown to the user whenever no generated text is available.
const FallbackReply = "Sorry, I couldn't generate a response."

// Classification is the lenient reading of a classifier reply.
type Classification struct {
	Complexity Complexity
	Emotions   emotion.Vector
	// Anomalies lists everything that had to be defaulted while parsing.
	Anomalies []string
}

// ParseClassification extracts the complexity label and emotion vector from free
// text. It never fails: anything it cannot read falls back to Complex and unset
// flags, and is reported in Anomalies.
func ParseClassification(text string) Classification {
	result := Classification{Complexity: Complex}

	if strings.TrimSpace(text) == "" {
		result.Anomalies = append(result.Anomalies, "empty classification reply")
		return result
	}

	if strings.Contains(strings.ToLower(text), string(Simple)) {
		result.Complexity = Simple
	}

	body, ok := firstBracketed(text)
	if !ok {
		result.Anomalies = append(result.Anomalies, "no [...] emotion array in classification reply")
		return result
	}

	tokens := strings.Split(body, ",")
	if len(tokens) != emotion.NumCategories {
		result.Anomalies = append(result.Anomalies,
			fmt.Sprintf("expected %d emotion flags, got %d", emotion.NumCategories, len(tokens)))
	}

	for i, tok := range tokens {
		if i >= emotion.NumCategories {
			break
		}
		switch strings.TrimSpace(tok) {
		case "1":
			result.Emotions[i] = true
		case "0":
		default:
			result.Anomalies = append(result.Anomalies,
				fmt.Sprintf("emotion flag %d is %q, treated as unset", i, strings.TrimSpace(tok)))
		}
	}

	return result
}

// firstBracketed returns the text between the first '[' and the first ']' after it.
func firstBracketed(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start < 0 {
		return "", false
	}
	end := strings.IndexByte(text[start+1:], ']')
	if end < 0 {
		return "", false
	}
	return text[start+1 : start+1+end], true
}

// ParseGeneratedReply returns the generated text verbatim, or FallbackReply when
// the reply is missing or blank.
func ParseGeneratedReply(reply *schema.Message) string {
	if reply == nil || strings.TrimSpace(reply.Content) == "" {
		return FallbackReply
	}
	return reply.Content
}
