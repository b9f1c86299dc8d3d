package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

const webfetchDescription = `Fetches a URL and returns its content in the requested format.

Usage:
- url must start with http:// or https://
- format is one of "text", "markdown", "html"
- Responses over 5MB are rejected`

const (
	maxResponseSize     = 5 * 1024 * 1024
	webfetchDefaultTime = 30 * time.Second
	webfetchMaxTime     = 120 * time.Second
)

// WebFetchTool fetches a URL and optionally converts HTML to markdown
// or plain text.
type WebFetchTool struct {
	workDir string
	client  *http.Client
}

type webfetchInput struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Timeout int    `json:"timeout,omitempty"`
}

func NewWebFetchTool(workDir string) *WebFetchTool {
	return &WebFetchTool{workDir: workDir, client: &http.Client{Timeout: webfetchDefaultTime}}
}

func (t *WebFetchTool) ID() string          { return "webfetch" }
func (t *WebFetchTool) Description() string { return webfetchDescription }

func (t *WebFetchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch content from"},
			"format": {"type": "string", "enum": ["text", "markdown", "html"], "description": "Return format"},
			"timeout": {"type": "integer", "description": "Optional timeout in seconds (max 120)"}
		},
		"required": ["url", "format"]
	}`)
}

func (t *WebFetchTool) Execute(ctx context.Context, args json.RawMessage, _ *Context) (Result, error) {
	var params webfetchInput
	if err := json.Unmarshal(args, &params); err != nil {
		return errResult(fmt.Errorf("invalid input: %w", err))
	}
	if !strings.HasPrefix(params.URL, "http://") && !strings.HasPrefix(params.URL, "https://") {
		return errResult(fmt.Errorf("url must start with http:// or https://"))
	}
	switch params.Format {
	case "text", "markdown", "html":
	default:
		return errResult(fmt.Errorf("format must be text, markdown, or html"))
	}

	timeout := webfetchDefaultTime
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > webfetchMaxTime {
			timeout = webfetchMaxTime
		}
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, params.URL, nil)
	if err != nil {
		return errResult(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := t.client.Do(req)
	if err != nil {
		return errResult(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errResult(fmt.Errorf("request failed with status code: %d", resp.StatusCode))
	}
	if resp.ContentLength > maxResponseSize {
		return errResult(fmt.Errorf("response too large (exceeds 5MB limit)"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return errResult(fmt.Errorf("failed to read response: %w", err))
	}
	if len(body) > maxResponseSize {
		return errResult(fmt.Errorf("response too large (exceeds 5MB limit)"))
	}

	content := string(body)
	contentType := resp.Header.Get("Content-Type")

	var output string
	switch params.Format {
	case "markdown":
		if strings.Contains(contentType, "text/html") {
			if output, err = convertHTMLToMarkdown(content); err != nil {
				return errResult(fmt.Errorf("failed to convert HTML to markdown: %w", err))
			}
		} else {
			output = content
		}
	case "text":
		if strings.Contains(contentType, "text/html") {
			if output, err = extractTextFromHTML(content); err != nil {
				return errResult(fmt.Errorf("failed to extract text from HTML: %w", err))
			}
		} else {
			output = content
		}
	default:
		output = content
	}

	meta, _ := json.Marshal(map[string]any{"url": params.URL, "content_type": contentType})
	return Result{Output: output, Metadata: meta}, nil
}

func extractTextFromHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, iframe, object, embed").Remove()
	return strings.TrimSpace(doc.Text()), nil
}

func convertHTMLToMarkdown(html string) (string, error) {
	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("script", "style", "meta", "link")
	return converter.ConvertString(html)
}
