package stream

import "strings"

// Complexity buckets reported to the client before streaming begins.
// The classification only picks a client-facing time estimate; it has
// no effect on how the request is executed.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// complexKeywords are domain terms whose presence suggests the request
// needs analysis rather than a short factual answer.
var complexKeywords = []string{
	"analyze", "analysis", "portfolio", "strategy", "backtest",
	"hedge", "volatility", "correlation", "risk", "forecast",
	"compare", "optimize", "rebalance",
}

// EstimateComplexity classifies a prompt and returns the bucket plus an
// estimated response time in seconds.
func EstimateComplexity(content string) (string, int) {
	lower := strings.ToLower(content)

	hits := 0
	for _, kw := range complexKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}

	switch {
	case len(content) > 2000 || hits >= 3:
		return ComplexityComplex, 30
	case len(content) > 500 || hits >= 1:
		return ComplexityModerate, 15
	default:
		return ComplexitySimple, 5
	}
}
