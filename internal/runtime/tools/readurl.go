package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// maxPageChars caps the page text fed back into a reply. Replies may be
// synthesized to audio, so the result has to stay short enough to speak.
const maxPageChars = 6000

// maxPageBytes bounds how much of a response body is read at all.
const maxPageBytes = 2 << 20

var (
	imagePattern = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern  = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	blankRuns    = regexp.MustCompile(`\n{3,}`)
)

// ReadURL fetches a web page and returns its text in a form that reads
// well both on screen and aloud.
type ReadURL struct {
	client *http.Client
}

// NewReadURL creates a new ReadURL tool.
func NewReadURL() *ReadURL {
	return &ReadURL{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (r *ReadURL) Name() string { return "read_url" }
func (r *ReadURL) Description() string {
	return "Fetch a web page and return its readable text"
}
func (r *ReadURL) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (r *ReadURL) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.URL == "" {
		return "", fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Voxchat/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(string(body))
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}

	return speakable(md), nil
}

// speakable trims converted markdown down to text that works when read
// aloud. Images and link targets carry no meaning in audio, so images are
// dropped and links collapse to their anchor text.
func speakable(md string) string {
	md = imagePattern.ReplaceAllString(md, "")
	md = linkPattern.ReplaceAllString(md, "$1")
	md = blankRuns.ReplaceAllString(md, "\n\n")
	md = strings.TrimSpace(md)
	if len(md) <= maxPageChars {
		return md
	}
	cut := md[:maxPageChars]
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return cut + "\n\n[Content truncated]"
}
