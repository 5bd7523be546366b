package classify

import (
	"context"
	"regexp"
	"strings"

	"github.com/chatwright/chatwright/model"
)

// Rule is one high-precision pattern. Rules are checked in declared
// order and the first match wins; named capture groups become
// entities.
type Rule struct {
	Intent     string
	Pattern    *regexp.Regexp
	Confidence float64
}

type patternTier struct {
	rules     []Rule
	threshold float64
}

func NewPatternTier(rules []Rule, threshold float64) *patternTier {
	return &patternTier{rules: rules, threshold: threshold}
}

// DefaultRules covers the unambiguous commands every deployment needs:
// session resets, numeric menu selections, one-time codes and yes/no
// confirmations.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: "session_reset", Confidence: 1.0,
			Pattern: regexp.MustCompile(`^(reset|restart|start over|cancelar|reiniciar)$`)},
		{Intent: "one_time_code", Confidence: 0.95,
			Pattern: regexp.MustCompile(`^(?P<code>\d{4,8})$`)},
		{Intent: "menu_select", Confidence: 0.9,
			Pattern: regexp.MustCompile(`^(?P<selection>\d{1,2})$`)},
		{Intent: "confirm_yes", Confidence: 0.9,
			Pattern: regexp.MustCompile(`^(yes|y|si|sí|ok|sure|confirm)$`)},
		{Intent: "confirm_no", Confidence: 0.9,
			Pattern: regexp.MustCompile(`^(no|n|nope|cancel)$`)},
	}
}

func (t *patternTier) Name() string { return "pattern" }

func (t *patternTier) Threshold() float64 { return t.threshold }

func (t *patternTier) Classify(ctx context.Context, text string, hints model.Hints) (model.Classification, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, rule := range t.rules {
		match := rule.Pattern.FindStringSubmatch(normalized)
		if match == nil {
			continue
		}
		entities := make(map[string]string)
		for i, name := range rule.Pattern.SubexpNames() {
			if name != "" && i < len(match) {
				entities[name] = match[i]
			}
		}
		return model.Classification{
			Intent:     rule.Intent,
			Confidence: rule.Confidence,
			Entities:   entities,
		}, nil
	}
	return model.Classification{Intent: model.INTENT_UNKNOWN, Confidence: 0}, nil
}
