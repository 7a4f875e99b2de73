// Package extract turns a source chosen by the user into plain text. Each source kind fails
// with its own sentinel error so callers can show a specific message; a failed extraction
// never returns partial text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

type Kind string

const (
	KindDocument Kind = "document"
	KindArticle  Kind = "article"
	KindVideo    Kind = "video"
)

var (
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrInvalidEncoding  = errors.New("text file is not valid UTF-8")
	ErrNoText           = errors.New("no text could be extracted")
	ErrInvalidURL       = errors.New("invalid url")
	ErrArticleFetch     = errors.New("article could not be downloaded")
	ErrArticleParse     = errors.New("article could not be parsed")
	ErrInvalidVideoURL  = errors.New("invalid video url")
	ErrCaptionsDisabled = errors.New("captions are disabled or unavailable")
	ErrCaptionsBlocked  = errors.New("caption requests are rate limited or blocked")
)

// DefaultCaptionLanguages is the caption preference order.
var DefaultCaptionLanguages = []string{"pt", "en"}

type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type PDFReader interface {
	// ExtractPages returns the text of every page in document order.
	ExtractPages(data []byte) ([]string, error)
}

type ArticleFetcher interface {
	FetchAndParse(ctx context.Context, url string) (string, error)
}

type CaptionFetcher interface {
	Captions(ctx context.Context, videoID string, languages []string) ([]Segment, error)
}

type Extractor struct {
	pdf       PDFReader
	articles  ArticleFetcher
	captions  CaptionFetcher
	languages []string
}

func New(pdf PDFReader, articles ArticleFetcher, captions CaptionFetcher) *Extractor {
	return &Extractor{
		pdf:       pdf,
		articles:  articles,
		captions:  captions,
		languages: DefaultCaptionLanguages,
	}
}

// Document extracts the text of one uploaded PDF or plain-text file.
func (e *Extractor) Document(f File) (string, error) {
	var text string
	switch documentType(f) {
	case "pdf":
		pages, err := e.pdf.ExtractPages(f.Data)
		if err != nil {
			return "", fmt.Errorf("%s: %w", f.Name, err)
		}
		text = validText(strings.Join(pages, "\n"))
	case "text":
		if !utf8.Valid(f.Data) {
			return "", fmt.Errorf("%s: %w", f.Name, ErrInvalidEncoding)
		}
		text = string(f.Data)
	default:
		return "", fmt.Errorf("%s: %w", f.Name, ErrUnsupportedFile)
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s: %w", f.Name, ErrNoText)
	}
	return text, nil
}

type FileFailure struct {
	Name string
	Err  error
}

type MultiResult struct {
	Text      string
	Processed []string
	Failures  []FileFailure
}

// Documents extracts every file in upload order and concatenates the successes, each one
// wrapped in its own BEGIN/END markers. Failed files are reported and skipped.
func (e *Extractor) Documents(files []File) MultiResult {
	var res MultiResult
	var b strings.Builder
	for _, f := range files {
		text, err := e.Document(f)
		if err != nil {
			res.Failures = append(res.Failures, FileFailure{Name: f.Name, Err: err})
			continue
		}
		b.WriteString(WrapDocument(f.Name, text))
		res.Processed = append(res.Processed, f.Name)
	}
	res.Text = b.String()
	return res
}

// WrapDocument delimits one document inside a combined multi-document text.
func WrapDocument(name, text string) string {
	return fmt.Sprintf("\n\n--- BEGIN DOCUMENT: %s ---\n\n%s\n\n--- END DOCUMENT: %s ---\n\n", name, text, name)
}

func (e *Extractor) Article(ctx context.Context, rawURL string) (string, error) {
	if _, err := parseHTTPURL(rawURL); err != nil {
		return "", err
	}
	text, err := e.articles.FetchAndParse(ctx, rawURL)
	if err != nil {
		return "", err
	}
	text = validText(text)
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Video joins the preferred caption track of a video into one text, in timeline order.
func (e *Extractor) Video(ctx context.Context, rawURL string) (string, error) {
	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return "", err
	}
	segments, err := e.captions.Captions(ctx, videoID, e.languages)
	if err != nil {
		return "", err
	}
	text := validText(JoinSegments(segments))
	if text == "" {
		return "", ErrCaptionsDisabled
	}
	return text, nil
}

// UserMessage maps an extraction error to the message shown for that source kind.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFile):
		return "Only PDF and TXT files are supported."
	case errors.Is(err, ErrInvalidEncoding):
		return "The text file must be UTF-8 encoded."
	case errors.Is(err, ErrInvalidURL):
		return "Please enter a valid http(s) URL."
	case errors.Is(err, ErrArticleFetch), errors.Is(err, ErrArticleParse):
		return "The article could not be processed. Check the URL and try again."
	case errors.Is(err, ErrInvalidVideoURL):
		return "Invalid YouTube URL."
	case errors.Is(err, ErrCaptionsDisabled):
		return "This video has no captions available in Portuguese or English."
	case errors.Is(err, ErrCaptionsBlocked):
		return "YouTube is currently blocking caption requests. Save the transcript as a PDF or TXT file and upload it instead."
	case errors.Is(err, ErrNoText):
		return "No text could be extracted from this source."
	default:
		return "The content could not be extracted. Please try again."
	}
}

// validText drops byte sequences that are not UTF-8; the model API rejects them.
func validText(s string) string {
	return strings.ToValidUTF8(s, "")
}

func documentType(f File) string {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch ct {
	case "application/pdf":
		return "pdf"
	case "text/plain":
		return "text"
	}
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".pdf":
		return "pdf"
	case ".txt":
		return "text"
	}
	return ""
}
