package generate

import (
	"math"

	"github.com/raphaelgruber/toolbrief/internal/config"
	"github.com/raphaelgruber/toolbrief/internal/llm"
	"github.com/raphaelgruber/toolbrief/internal/models"
)

// ComputeCost prices one generation run. The search invocation count is
// not observable from the provider, so it is estimated from citation
// density: max(1, ceil(citations/divisor)). An approximation, not a
// verified cost.
func ComputeCost(pricing config.ModelPricing, usage llm.Usage, citationCount, searchDivisor int) models.Cost {
	if searchDivisor <= 0 {
		searchDivisor = 3
	}

	modelCost := float64(usage.InputTokens)*pricing.InputPerMTok/1e6 +
		float64(usage.OutputTokens)*pricing.OutputPerMTok/1e6

	searches := int(math.Ceil(float64(citationCount) / float64(searchDivisor)))
	if searches < 1 {
		searches = 1
	}
	searchCost := float64(searches) * pricing.SearchPerCall

	return models.Cost{
		Model:  roundMoney(modelCost),
		Search: roundMoney(searchCost),
		Total:  roundMoney(modelCost + searchCost),
	}
}

// roundMoney rounds to 4 decimal places.
func roundMoney(v float64) float64 {
	return math.Round(v*10000) / 10000
}
