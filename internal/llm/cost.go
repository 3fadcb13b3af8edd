package llm

import "strings"

// Prices in USD per 1K tokens: [input, output].
var costPerToken = map[string][2]float64{
	"gpt-4o":                 {0.0025, 0.01},
	"gpt-4o-mini":            {0.00015, 0.0006},
	"gpt-4.1":                {0.002, 0.008},
	"gpt-4.1-mini":           {0.0004, 0.0016},
	"text-embedding-3-small": {0.00002, 0},
	"text-embedding-3-large": {0.00013, 0},
	"text-embedding-ada-002": {0.0001, 0},

	"claude-3-5-haiku":  {0.0008, 0.004},
	"claude-sonnet-4":   {0.003, 0.015},
	"claude-sonnet-4-5": {0.003, 0.015},
	"claude-opus-4":     {0.015, 0.075},
}

// CalculateCost prices a call. Dated model names ("claude-sonnet-4-20250514")
// match their undated entry. Unknown and local models cost nothing.
func CalculateCost(model string, inputTokens, outputTokens int) float64 {
	prices, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return float64(inputTokens)/1000.0*prices[0] + float64(outputTokens)/1000.0*prices[1]
}

func lookupPrice(model string) ([2]float64, bool) {
	if p, ok := costPerToken[model]; ok {
		return p, true
	}
	best := ""
	for name := range costPerToken {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return [2]float64{}, false
	}
	return costPerToken[best], true
}
