// Package extract turns free-form trade messages into structured entries via
// an LLM with an OpenAI-compatible chat API, gated by a cheap keyword check.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// RawEntry is one offer as returned by the model, before boundary
// validation. PriceForOne stays a json.Number so non-integer prices can be
// rejected instead of silently rounded.
type RawEntry struct {
	ItemName     string      `json:"item_name"`
	Quantity     *int        `json:"quantity"`
	ItemGrade    string      `json:"item_grade"`
	ItemDuration string      `json:"item_duration"`
	PriceForOne  json.Number `json:"price_for_one"`
	OfferType    string      `json:"offer_type"`
	Currency     string      `json:"currency"`
}

// Buy/sell keywords the gate fuzzes against. Messages without any of them
// never reach the model.
var tradeKeywords = []string{
	"продам", "продажа", "продаю", "куплю", "скупка", "покупаю", "покупка",
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

const gateThreshold = 85

// ContainsTradeKeywords reports whether the text mentions buying or selling,
// tolerating typos via partial-ratio scoring per word.
func ContainsTradeKeywords(text string) bool {
	words := wordPattern.FindAllString(strings.ToLower(text), -1)
	for _, kw := range tradeKeywords {
		for _, w := range words {
			if fuzzy.PartialRatio(kw, w) >= gateThreshold {
				return true
			}
		}
	}
	return false
}
