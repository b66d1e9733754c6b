package extraction

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

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

// Client talks to the Gemini REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 90 * time.Second},
	}
}

// ListModels returns model names usable for extraction: flash or pro
// models that are neither vision nor experimental builds.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var body struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	var names []string
	for _, m := range body.Models {
		name := strings.TrimPrefix(m.Name, "models/")
		if !strings.Contains(name, "flash") && !strings.Contains(name, "pro") {
			continue
		}
		if strings.Contains(name, "vision") || strings.Contains(name, "experimental") {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends the instruction and the source text to one model and
// returns the text of the first candidate.
func (c *Client) Generate(ctx context.Context, model, version, instruction, text string) (string, error) {
	payload := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: instruction},
			{Text: "HIER IST DER TEXT:\n" + text},
		}}},
		GenerationConfig: generationConfig{Temperature: 0.1},
	}
	// v1 rejects the mime type field
	if version != "v1" {
		payload.GenerationConfig.ResponseMIMEType = "application/json"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/%s/models/%s:generateContent?key=%s", c.baseURL, version, url.PathEscape(model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &APIError{Message: err.Error(), Kind: KindOther}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", readAPIError(resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &APIError{Status: resp.StatusCode, Message: "empty response", Kind: KindOther}
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	message := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Message != "" {
		message = body.Error.Message
		if body.Error.Status != "" {
			message = body.Error.Status + ": " + message
		}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Message: message,
		Kind:    classify(resp.StatusCode, message),
	}
}
