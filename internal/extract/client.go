package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Client calls an OpenAI-compatible chat-completions API in JSON mode.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewClient creates an extraction client for the given endpoint and model.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
	Messages       []chatMessage  `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends a trade message through the keyword gate and, if it passes,
// to the model. Returns the valid entries, or nil when the message carries
// no usable offers.
func (c *Client) Extract(ctx context.Context, message string) ([]RawEntry, error) {
	if !ContainsTradeKeywords(message) {
		log.Debug().Msg("No buy/sell keywords in message, skipping extraction")
		return nil, nil
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Temperature:    1.0,
		ResponseFormat: responseFormat{Type: "json_object"},
		Messages: []chatMessage{
			{Role: "system", Content: extractionPrompt},
			{Role: "user", Content: message},
		},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction API returned status %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("extraction response has no choices")
	}

	entries, err := NormalizeResponse(chat.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	log.Info().Int("entries", len(entries)).Msg("Parsed offers from message")
	return entries, nil
}

// NormalizeResponse accepts the model content in any of its observed shapes:
// a bare array, a single object, or an object wrapping the array under
// "items" or "offers". Entries without an integer price or a recognized
// currency are dropped.
func NormalizeResponse(content string) ([]RawEntry, error) {
	trimmed := strings.TrimSpace(content)
	// The prompt tells the model to answer None when nothing is extractable.
	if strings.EqualFold(strings.Trim(trimmed, `"`), "none") {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()

	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON from model: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var raw []any
	switch v := data.(type) {
	case []any:
		raw = v
	case map[string]any:
		if items, ok := v["items"].([]any); ok {
			raw = items
		} else if offers, ok := v["offers"].([]any); ok {
			raw = offers
		} else {
			raw = []any{v}
		}
	default:
		return nil, fmt.Errorf("unexpected JSON structure from model")
	}

	var entries []RawEntry
	for _, obj := range raw {
		buf, err := json.Marshal(obj)
		if err != nil {
			continue
		}
		var entry RawEntry
		if err := json.Unmarshal(buf, &entry); err != nil {
			log.Debug().Err(err).Msg("Dropping malformed extraction entry")
			continue
		}
		if !entry.Valid() {
			log.Debug().Str("item", entry.ItemName).Msg("Dropping invalid extraction entry")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Valid applies the extraction contract: integer unit price and one of the
// two recognized currencies.
func (e *RawEntry) Valid() bool {
	if _, err := e.PriceForOne.Int64(); err != nil {
		return false
	}
	return e.Currency == "cookies" || e.Currency == "money"
}
