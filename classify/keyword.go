package classify

import (
	"context"
	"strings"

	"github.com/chatwright/chatwright/model"
)

// keywordTier is the last resort: substring heuristics against the
// label set. It has no threshold and always produces a result, so the
// classifier as a whole can never return "no result".
type keywordTier struct {
	keywords map[string][]string
}

func NewKeywordTier(keywords map[string][]string) *keywordTier {
	return &keywordTier{keywords: keywords}
}

// DefaultKeywords maps the commerce label set to its obvious cues.
func DefaultKeywords() map[string][]string {
	return map[string][]string{
		"search_product": {"search", "find", "looking for", "buscar", "show me"},
		"place_order":    {"order", "buy", "purchase", "comprar"},
		"book_slot":      {"book", "booking", "reserve", "appointment", "reservar"},
		"track_order":    {"track", "where is", "status", "delivery"},
		"help":           {"help", "agent", "human", "support", "ayuda"},
	}
}

func (t *keywordTier) Name() string { return "keyword" }

func (t *keywordTier) Threshold() float64 { return 0 }

func (t *keywordTier) Classify(ctx context.Context, text string, hints model.Hints) (model.Classification, error) {
	normalized := strings.ToLower(text)
	bestIntent := model.INTENT_UNKNOWN
	bestHits := 0
	for intent, words := range t.keywords {
		hits := 0
		for _, word := range words {
			if strings.Contains(normalized, word) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestIntent = intent
		}
	}
	confidence := 0.0
	if bestHits > 0 {
		confidence = 0.3
		if bestHits > 1 {
			confidence = 0.4
		}
	}
	return model.Classification{Intent: bestIntent, Confidence: confidence}, nil
}
