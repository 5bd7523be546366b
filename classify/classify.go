package classify

import (
	"context"
	"time"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/telemetry"
	"go.uber.org/zap"
)

// Tier is one stage of the classifier. Tiers are tried in a fixed
// trust order; the first tier clearing its own confidence bar wins,
// even when a later tier would score higher.
type Tier interface {
	Name() string
	Threshold() float64
	Classify(ctx context.Context, text string, hints model.Hints) (model.Classification, error)
}

type Classifier struct {
	tiers       []Tier
	tierTimeout time.Duration
	sink        telemetry.Sink
	metrics     *telemetry.Metrics
}

func NewClassifier(tiers []Tier, tierTimeout time.Duration, sink telemetry.Sink, metrics *telemetry.Metrics) *Classifier {
	if sink == nil {
		sink = telemetry.NewNopSink()
	}
	return &Classifier{
		tiers:       tiers,
		tierTimeout: tierTimeout,
		sink:        sink,
		metrics:     metrics,
	}
}

// Classify runs the tiers in order. A tier failure (timeout or
// transport error) falls through to the next tier rather than
// propagating; the keyword tier guarantees a result, possibly unknown.
func (c *Classifier) Classify(ctx context.Context, text string, hints model.Hints) model.Classification {
	result := model.Classification{Intent: model.INTENT_UNKNOWN, Method: "none"}
	for _, tier := range c.tiers {
		res, err := c.classifyTier(ctx, tier, text, hints)
		if err != nil {
			logger.Debug("classifier tier failed, falling through",
				zap.String("tier", tier.Name()), zap.Error(err))
			if c.metrics != nil {
				c.metrics.TierFailures.WithLabelValues(tier.Name()).Inc()
			}
			continue
		}
		if res.Confidence >= tier.Threshold() {
			result = res
			break
		}
	}
	c.sink.RecordClassification(result)
	return result
}

func (c *Classifier) classifyTier(ctx context.Context, tier Tier, text string, hints model.Hints) (model.Classification, error) {
	if c.tierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.tierTimeout)
		defer cancel()
	}
	res, err := tier.Classify(ctx, text, hints)
	if err != nil {
		return model.Classification{}, err
	}
	res.Method = tier.Name()
	return res, nil
}
