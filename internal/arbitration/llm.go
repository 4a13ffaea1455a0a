package arbitration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultLLMEndpoint points to a local OpenAI-compatible chat completions server.
	DefaultLLMEndpoint = "http://127.0.0.1:8845/v1"
	DefaultLLMModel    = "gpt-4o-mini"
	DefaultLLMTimeout  = 30 * time.Second
)

// LLMArbiter asks a chat completions model which candidate pairs are duplicates.
type LLMArbiter struct {
	endpointURL string
	model       string
	apiKey      string
	client      *http.Client
}

func NewLLMArbiter(endpoint, model, apiKey string, timeout time.Duration) *LLMArbiter {
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultLLMModel
	}
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	return &LLMArbiter{
		endpointURL: chatCompletionsURL(normalizeEndpoint(endpoint)),
		model:       trimmedModel,
		apiKey:      strings.TrimSpace(apiKey),
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (a *LLMArbiter) Name() string {
	return "llm"
}

func (a *LLMArbiter) Judge(ctx context.Context, pairs []Pair) ([]bool, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: llm arbiter is nil", ErrUnavailable)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	prompt, err := buildPrompt(pairs)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model: a.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal arbitration request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build arbitration request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: send arbitration request: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read arbitration response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload chatErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Error.Message); msg != "" {
				return nil, fmt.Errorf("%w: arbitration endpoint status %d: %s", ErrUnavailable, resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("%w: arbitration endpoint status %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode arbitration response: %v", ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%w: arbitration response missing choices", ErrUnavailable)
	}

	return parseVerdicts(parsed.Choices[0].Message.Content, len(pairs))
}

const systemPrompt = "You deduplicate event listings. Two listings are duplicates when they describe the same performance: " +
	"same performer or show, same day, same venue, even if spelled differently or in another language. " +
	"Answer with JSON only."

type promptPair struct {
	Pair  int    `json:"pair"`
	Left  Record `json:"a"`
	Right Record `json:"b"`
}

func buildPrompt(pairs []Pair) (string, error) {
	items := make([]promptPair, 0, len(pairs))
	for i, pair := range pairs {
		items = append(items, promptPair{Pair: i + 1, Left: pair.Left, Right: pair.Right})
	}
	encoded, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal candidate pairs: %w", err)
	}
	return fmt.Sprintf(
		"Which of these candidate pairs are duplicates?\n\n%s\n\nReply as {\"duplicates\": [pair numbers]}. Use an empty list when none are.",
		encoded,
	), nil
}

type verdictPayload struct {
	Duplicates []int `json:"duplicates"`
}

// parseVerdicts accepts bare JSON or JSON wrapped in a markdown code fence.
func parseVerdicts(content string, pairCount int) ([]bool, error) {
	text := stripCodeFence(content)
	if text == "" {
		return nil, fmt.Errorf("%w: arbitration response was empty", ErrUnavailable)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: parse arbitration verdict: %v", ErrUnavailable, err)
	}

	verdicts := make([]bool, pairCount)
	for _, number := range payload.Duplicates {
		if number < 1 || number > pairCount {
			return nil, fmt.Errorf("%w: verdict references pair %d of %d", ErrUnavailable, number, pairCount)
		}
		verdicts[number-1] = true
	}
	return verdicts, nil
}

func stripCodeFence(content string) string {
	text := strings.TrimSpace(content)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if newline := strings.IndexByte(text, '\n'); newline >= 0 {
		text = text[newline+1:]
	} else {
		text = strings.TrimPrefix(text, "json")
	}
	if end := strings.LastIndex(text, "```"); end >= 0 {
		text = text[:end]
	}
	return strings.TrimSpace(text)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
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

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return DefaultLLMEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultLLMEndpoint
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/v1"
	}
	return parsed.String()
}

func chatCompletionsURL(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultLLMEndpoint + "/chat/completions"
	}

	path := strings.TrimRight(parsed.Path, "/")
	switch {
	case strings.HasSuffix(path, "/chat/completions"):
		parsed.Path = path
	case strings.HasSuffix(path, "/v1"):
		parsed.Path = path + "/chat/completions"
	default:
		parsed.Path = path + "/v1/chat/completions"
	}
	return parsed.String()
}
