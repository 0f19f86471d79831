// Package art talks to an OpenAI-compatible images API to generate and edit
// card artwork, and dispatches those calls off the interaction loop.
package art

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/ayusman/mudra/internal/config"
)

var (
	// ErrUpstream wraps any failure reported by the image service.
	ErrUpstream = errors.New("art service error")
	// ErrEmptyImage is returned when the service answers without an image.
	ErrEmptyImage = errors.New("art service returned no image")
	// ErrUnsupportedRef is returned when an edit source cannot be loaded.
	ErrUnsupportedRef = errors.New("unsupported artwork reference")
)

// Prompt describes the card to illustrate.
type Prompt struct {
	Name     string
	Meaning  string
	Reversed bool
}

// Client implements Generator over HTTP.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	size       string
	logger     *slog.Logger
}

// NewClient creates a Client. A nil httpClient uses one with the configured
// timeout.
func NewClient(httpClient *http.Client, cfg config.Art, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		size:       cfg.Size,
		logger:     logger,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate creates new artwork for a card and returns its reference: a URL or
// a data: URI.
func (c *Client) Generate(ctx context.Context, p Prompt) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: buildPrompt(p),
		Size:   c.size,
		N:      1,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Edit applies instruction to the image at ref and returns the new reference.
func (c *Client) Edit(ctx context.Context, ref, instruction string) (string, error) {
	img, err := c.load(ctx, ref)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"model": c.model, "prompt": instruction, "size": c.size} {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return "", fmt.Errorf("write field: %w", err)
		}
	}
	fw, err := mw.CreateFormFile("image", "card.png")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(img); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/edits", &buf)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, error) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: http call: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUpstream, err)
	}

	var out imageResponse
	decodeErr := json.Unmarshal(respBody, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		if decodeErr == nil && out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpstream, decodeErr)
	}

	if len(out.Data) == 0 {
		return "", ErrEmptyImage
	}
	img := out.Data[0]
	switch {
	case img.URL != "":
		return img.URL, nil
	case img.B64JSON != "":
		return "data:image/png;base64," + img.B64JSON, nil
	}
	return "", ErrEmptyImage
}

// load fetches the bytes behind an artwork reference.
func (c *Client) load(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		_, payload, ok := strings.Cut(ref, ",")
		if !ok || !strings.Contains(ref[:len(ref)-len(payload)], ";base64") {
			return nil, fmt.Errorf("%w: malformed data URI", ErrUnsupportedRef)
		}
		img, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupportedRef, err)
		}
		return img, nil

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: fetch source: %w", ErrUpstream, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: fetch source: status %d", ErrUpstream, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedRef, ref)
}

func buildPrompt(p Prompt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A tarot card illustration of %s", p.Name)
	if p.Reversed {
		b.WriteString(", drawn reversed")
	}
	b.WriteString(". Ornate border, rich symbolic detail, portrait orientation, no text.")
	if p.Meaning != "" {
		fmt.Fprintf(&b, " Themes: %s.", p.Meaning)
	}
	return b.String()
}
