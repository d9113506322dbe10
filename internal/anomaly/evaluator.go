// Package anomaly classifies price events as anomalous.
package anomaly

import (
	"fmt"
	"math"

	"market-gateway/internal/domain"
)

// Decision is the result of evaluating a single price event.
type Decision struct {
	IsAnomaly bool
	Message   string
}

// Evaluator classifies price events. It is pure: no storage, no transport.
type Evaluator struct {
	// DeviationThreshold enables independent deviation detection when > 0:
	// an event is anomalous when |price - avg| / avg exceeds the threshold.
	// Zero disables recomputation and only the producer-supplied flag is used.
	DeviationThreshold float64
}

// NewEvaluator creates an evaluator with the given deviation threshold.
func NewEvaluator(deviationThreshold float64) *Evaluator {
	return &Evaluator{DeviationThreshold: deviationThreshold}
}

// Evaluate classifies an event. The producer-supplied anomaly flag is always
// trusted; the deviation check only adds positives, never removes them.
func (e *Evaluator) Evaluate(event *domain.PriceEvent) Decision {
	if event == nil {
		return Decision{}
	}

	if event.IsAnomaly {
		return Decision{
			IsAnomaly: true,
			Message:   fmt.Sprintf("anomaly detected: price deviation on %s", event.Symbol),
		}
	}

	if e.DeviationThreshold > 0 && event.AveragePrice != nil && *event.AveragePrice > 0 {
		avg := *event.AveragePrice
		deviation := math.Abs(event.Price-avg) / avg
		if deviation > e.DeviationThreshold {
			return Decision{
				IsAnomaly: true,
				Message: fmt.Sprintf("anomaly detected: %s deviates %.2f%% from rolling average",
					event.Symbol, deviation*100),
			}
		}
	}

	return Decision{}
}
