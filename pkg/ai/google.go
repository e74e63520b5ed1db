package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// generateGoogle calls the Google AI Studio generateContent API.
// The API is used single-turn here: only the new user text is sent,
// never the chat history.
func (c *Client) generateGoogle(ctx context.Context, model ModelConfig, userText string) (string, error) {
	reqBody := googleGenerateRequest{
		Contents: []googleContent{
			{Parts: []googlePart{{Text: userText}}},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := model.Endpoint
	if model.APIKey != "" {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "key=" + model.APIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("google request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp googleErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("google api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("google api error: %s", resp.Status)
	}

	var genResp googleGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("google decode: %w", err)
	}
	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from google api")
	}
	text := strings.TrimSpace(genResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return "", fmt.Errorf("empty response from google api")
	}
	return text, nil
}

// Google generateContent request/response types.

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleGenerateRequest struct {
	Contents []googleContent `json:"contents"`
}

type googleGenerateResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

type googleErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
