package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/promptline-ai/promptline/internal/permission"
	"github.com/promptline-ai/promptline/internal/value"
)

const (
	maxFetchSize     = 5 * 1024 * 1024
	fetchTimeout     = 30 * time.Second
	maxFetchedOutput = 100 * 1024
)

const webfetchDescription = `Fetches content from a URL.

Usage:
- url must start with http:// or https://; http is upgraded to https
- format "markdown" (default) converts HTML to markdown, "text" strips
  tags, "html" returns the raw body
- This tool is read-only and does not modify any files`

// WebFetchTool fetches web content.
type WebFetchTool struct {
	client *http.Client
}

// WebFetchInput is the web_fetch argument shape.
type WebFetchInput struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
}

// NewWebFetchTool creates the web_fetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client: &http.Client{Timeout: fetchTimeout},
	}
}

func (t *WebFetchTool) Name() string        { return "web_fetch" }
func (t *WebFetchTool) Description() string { return webfetchDescription }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "URL to fetch"},
			"format": {"type": "string", "description": "markdown, text or html", "enum": ["markdown", "text", "html"]}
		},
		"required": ["url"]
	}`)
}

func (t *WebFetchTool) Classify(args *value.Map) permission.DangerClass {
	return permission.Safe
}

// Key scopes decisions to the host, so one grant covers a site rather than
// a single URL or the whole web.
func (t *WebFetchTool) Key(args *value.Map) permission.Key {
	var in WebFetchInput
	_ = args.DecodeInto(&in)
	scope := in.URL
	if u, err := url.Parse(in.URL); err == nil && u.Host != "" {
		scope = u.Host
	}
	return permission.Key{Tool: t.Name(), Scope: scope}
}

func (t *WebFetchTool) Timeout() time.Duration { return fetchTimeout }

func (t *WebFetchTool) Execute(ctx context.Context, args *value.Map, toolCtx *Context) (*Result, error) {
	var in WebFetchInput
	if err := args.DecodeInto(&in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	target := in.URL
	if strings.HasPrefix(target, "http://") {
		target = "https://" + strings.TrimPrefix(target, "http://")
	}
	if !strings.HasPrefix(target, "https://") {
		return nil, fmt.Errorf("url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "promptline/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchSize))
	if err != nil {
		return nil, err
	}

	format := in.Format
	if format == "" {
		format = "markdown"
	}

	output := string(body)
	contentType := resp.Header.Get("Content-Type")
	isHTML := strings.Contains(contentType, "text/html")

	switch format {
	case "markdown":
		if isHTML {
			converted, err := md.NewConverter("", true, nil).ConvertString(output)
			if err == nil {
				output = converted
			}
		}
	case "text":
		if isHTML {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(output))
			if err == nil {
				doc.Find("script,style").Remove()
				output = strings.TrimSpace(doc.Text())
			}
		}
	case "html":
		// raw body
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	return &Result{
		Title:  fmt.Sprintf("Fetched %s", target),
		Output: truncateOutput(output, maxFetchedOutput),
		Metadata: map[string]any{
			"url":    target,
			"status": resp.StatusCode,
			"bytes":  len(body),
		},
	}, nil
}
