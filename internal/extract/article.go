package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const maxArticleBytes = 5 << 20

// Elements whose text is never part of an article body.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"form": true, "button": true, "iframe": true, "svg": true,
}

// Elements that form one paragraph of output text.
var blockElements = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "blockquote": true, "pre": true, "figcaption": true,
}

// HTTPArticles downloads a page and extracts its main text.
type HTTPArticles struct {
	client    *http.Client
	userAgent string
}

func NewHTTPArticles(client *http.Client) *HTTPArticles {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPArticles{client: client, userAgent: "Mozilla/5.0 (compatible; ResumeAI/1.0)"}
}

func (a *HTTPArticles) FetchAndParse(ctx context.Context, rawURL string) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArticleFetch, err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArticleFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrArticleFetch, resp.StatusCode)
	}

	// Pages are decoded to UTF-8 from the declared or sniffed charset.
	body, err := charset.NewReader(io.LimitReader(resp.Body, maxArticleBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArticleParse, err)
	}
	return ExtractArticleText(body)
}

// ExtractArticleText returns the readable text of an HTML page. The search root is the
// first <article>, else <main>, else <body>; paragraphs are separated by blank lines.
func ExtractArticleText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrArticleParse, err)
	}

	root := findElement(doc, "article")
	if root == nil {
		root = findElement(doc, "main")
	}
	if root == nil {
		root = findElement(doc, "body")
	}
	if root == nil {
		root = doc
	}

	var blocks []string
	collectBlocks(root, &blocks)
	if len(blocks) == 0 {
		if text := collapseSpace(textOf(root)); text != "" {
			blocks = append(blocks, text)
		}
	}
	if len(blocks) == 0 {
		return "", ErrNoText
	}
	return strings.Join(blocks, "\n\n"), nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

func collectBlocks(n *html.Node, out *[]string) {
	if n.Type == html.ElementNode {
		if skippedElements[n.Data] {
			return
		}
		if blockElements[n.Data] {
			if text := collapseSpace(textOf(n)); text != "" {
				*out = append(*out, text)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectBlocks(c, out)
	}
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "br" {
				b.WriteString(" ")
			}
		case html.TextNode:
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}
