package api

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmlrenderer "github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in model output is dropped by the renderer.
var markdownEngine = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Typographer,
	),
	goldmark.WithRendererOptions(
		htmlrenderer.WithHardWraps(),
	),
)

// Markdown is model output in both its source form and rendered HTML.
type Markdown struct {
	Markdown string `json:"markdown"`
	HTML     string `json:"html"`
}

func renderMarkdown(text string) Markdown {
	out := Markdown{Markdown: text}
	if strings.TrimSpace(text) == "" {
		return out
	}
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(text), &buf); err != nil {
		return out
	}
	out.HTML = buf.String()
	return out
}
