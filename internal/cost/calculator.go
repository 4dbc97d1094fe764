// Package cost prices AI provider calls and tracks what a request spent.
package cost

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// ModelRate holds per-model token pricing in USD per million tokens. The
// cache multipliers scale the input rate.
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerplexityRate holds Perplexity pricing: a flat request fee plus token
// rates per million tokens.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
	Input    float64 `yaml:"input" mapstructure:"input"`
	Output   float64 `yaml:"output" mapstructure:"output"`
}

// Usage is the token count of one call.
type Usage struct {
	Input      int
	Output     int
	CacheWrite int
	CacheRead  int
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude prices an Anthropic Messages call. A model missing from the table
// is priced at the most expensive configured Anthropic rate.
func (c *Calculator) Claude(model string, u Usage) float64 {
	rate, ok := lookup(c.rates.Anthropic, model)
	if !ok {
		return 0
	}
	return perMillion(u.Input, rate.Input) +
		perMillion(u.Output, rate.Output) +
		perMillion(u.CacheWrite, rate.Input*rate.CacheWriteMul) +
		perMillion(u.CacheRead, rate.Input*rate.CacheReadMul)
}

// OpenAI prices a chat completion. Unknown models are priced like Claude's.
func (c *Calculator) OpenAI(model string, u Usage) float64 {
	rate, ok := lookup(c.rates.OpenAI, model)
	if !ok {
		return 0
	}
	return perMillion(u.Input, rate.Input) + perMillion(u.Output, rate.Output)
}

// Perplexity prices one Perplexity query.
func (c *Calculator) Perplexity(u Usage) float64 {
	r := c.rates.Perplexity
	return r.PerQuery + perMillion(u.Input, r.Input) + perMillion(u.Output, r.Output)
}

// Known reports whether model has its own rate for provider ("anthropic" or
// "openai"). Perplexity is priced per query and always known.
func (c *Calculator) Known(provider, model string) bool {
	switch provider {
	case "anthropic":
		_, ok := c.rates.Anthropic[model]
		return ok
	case "openai":
		_, ok := c.rates.OpenAI[model]
		return ok
	case "perplexity":
		return true
	}
	return false
}

// lookup returns the rate for model, or the rate with the highest output
// price so a cost ceiling still holds for unpriced models. ok is false only
// when the table is empty.
func lookup(table map[string]ModelRate, model string) (ModelRate, bool) {
	if r, ok := table[model]; ok {
		return r, true
	}
	var worst ModelRate
	found := false
	for _, r := range table {
		if !found || r.Output > worst.Output || (r.Output == worst.Output && r.Input > worst.Input) {
			worst = r
			found = true
		}
	}
	return worst, found
}

func perMillion(tokens int, usd float64) float64 {
	return float64(tokens) / 1e6 * usd
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60},
			"gpt-4o":      {Input: 2.50, Output: 10.00},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005, Input: 1.00, Output: 1.00},
	}
}
