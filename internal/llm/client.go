package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"webresearch/internal/errs"
)

// SentinelAnswer is returned without model inference when the assembled
// context is too short to be worth synthesizing over.
const SentinelAnswer = "Not enough context. I cannot provide a comprehensive answer based on the available information. Additional research or sources would be needed to address this query effectively."

const insufficiencyMarker = "Not enough context"

const systemPrompt = "You are a helpful assistant. Carefully evaluate the available context and be transparent about its comprehensiveness. If the context is insufficient, start your response with 'Not enough context'."

// lowConfidenceIndicators flag replies where the model hedged without using
// the canonical marker; such replies get the marker prepended so downstream
// phrase matching stays reliable.
var lowConfidenceIndicators = []string{
	"i cannot provide",
	"there is not enough",
	"insufficient information",
	"cannot find",
	"no information",
}

// Options configures the synthesizer client.
type Options struct {
	BaseURL     string // OpenAI-compatible API root, e.g. https://api.groq.com/openai/v1
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	MinContext  int // contexts shorter than this return SentinelAnswer
}

// Client synthesizes answers over an OpenAI-compatible chat completions API.
type Client struct {
	opts       Options
	httpClient *http.Client
}

// NewClient creates a synthesizer client.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MinContext <= 0 {
		opts.MinContext = 100
	}
	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Answer synthesizes an answer to question over the given context. A context
// below MinContext usable characters returns SentinelAnswer without any model
// call. Model failures are synthesis errors, fatal to the query.
func (c *Client) Answer(ctx context.Context, contextText, question string) (string, error) {
	if len(strings.TrimSpace(contextText)) < c.opts.MinContext {
		return SentinelAnswer, nil
	}

	reqBody := chatRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "system", Content: "Context: " + contextText},
			{Role: "user", Content: "Question: " + question},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", errs.Synthesis(fmt.Errorf("failed to encode request: %w", err))
	}

	url := strings.TrimSuffix(c.opts.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", errs.Synthesis(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Synthesis(fmt.Errorf("completion request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", errs.Synthesis(fmt.Errorf("failed to read completion response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ [LLM] Completion failed with status %d: %s", resp.StatusCode, truncate(string(body), 300))
		return "", errs.Synthesis(fmt.Errorf("completion failed with status %d", resp.StatusCode))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", errs.Synthesis(fmt.Errorf("failed to parse completion response: %w", err))
	}
	if parsed.Error != nil {
		return "", errs.Synthesis(fmt.Errorf("provider error: %s", parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return "", errs.Synthesis(fmt.Errorf("completion returned no choices"))
	}

	answer := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if answer == "" {
		return "", errs.Synthesis(fmt.Errorf("completion returned an empty answer"))
	}

	// The model does not always honor the marker instruction; prepend it when
	// the reply hedges so the caller's phrase matching stays reliable.
	if c.looksLowConfidence(answer) && !strings.HasPrefix(strings.ToLower(answer), strings.ToLower(insufficiencyMarker)) {
		answer = insufficiencyMarker + ", " + answer
	}

	return answer, nil
}

func (c *Client) looksLowConfidence(answer string) bool {
	lower := strings.ToLower(answer)
	for _, indicator := range lowConfidenceIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
