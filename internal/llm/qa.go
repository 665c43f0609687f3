package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// QAClient talks to the plain question-answering fallback service: a simpler
// LLM-backed endpoint used when the structured pipeline finds nothing and
// the user has opted in.
type QAClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewQAClient creates a QA fallback client.
func NewQAClient(baseURL string, timeout time.Duration) *QAClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &QAClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type qaRequest struct {
	Question string `json:"question"`
}

type qaResponse struct {
	Answer string `json:"answer"`
}

// Ask posts a free-form question and returns the service's answer.
func (c *QAClient) Ask(ctx context.Context, question string) (string, error) {
	jsonData, err := json.Marshal(qaRequest{Question: question})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("QA request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var parsed qaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	return strings.TrimSpace(parsed.Answer), nil
}
