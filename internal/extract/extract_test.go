package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

type fakePDF struct {
	pages []string
	err   error
}

func (f fakePDF) ExtractPages([]byte) ([]string, error) { return f.pages, f.err }

type fakeArticles struct {
	text string
	err  error
	urls []string
}

func (f *fakeArticles) FetchAndParse(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

type fakeCaptions struct {
	segments  []Segment
	err       error
	videoID   string
	languages []string
}

func (f *fakeCaptions) Captions(_ context.Context, videoID string, languages []string) ([]Segment, error) {
	f.videoID = videoID
	f.languages = languages
	return f.segments, f.err
}

func TestDocument(t *testing.T) {
	e := New(fakePDF{pages: []string{"page one", "page two"}}, nil, nil)

	tests := []struct {
		name    string
		file    File
		want    string
		wantErr error
	}{
		{"pdf by content type", File{Name: "a.bin", ContentType: "application/pdf"}, "page one\npage two", nil},
		{"pdf by extension", File{Name: "Report.PDF"}, "page one\npage two", nil},
		{"text", File{Name: "notes.txt", ContentType: "text/plain; charset=utf-8", Data: []byte("olá mundo")}, "olá mundo", nil},
		{"invalid utf8", File{Name: "bad.txt", Data: []byte{0xff, 0xfe, 0x00}}, "", ErrInvalidEncoding},
		{"unsupported", File{Name: "image.png", ContentType: "image/png"}, "", ErrUnsupportedFile},
		{"blank text", File{Name: "empty.txt", Data: []byte("  \n ")}, "", ErrNoText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Document(tt.file)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Document() error = %v, want %v", err, tt.wantErr)
				}
				if got != "" {
					t.Errorf("Document() returned partial text %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Document() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Document() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocument_PDFError(t *testing.T) {
	e := New(fakePDF{err: errors.New("broken xref")}, nil, nil)
	_, err := e.Document(File{Name: "x.pdf"})
	if err == nil || !strings.Contains(err.Error(), "x.pdf") {
		t.Fatalf("error = %v, want wrapped with file name", err)
	}
}

func TestDocuments_OrderAndMarkers(t *testing.T) {
	e := New(fakePDF{}, nil, nil)
	files := []File{
		{Name: "A.txt", Data: []byte("alpha")},
		{Name: "bad.doc", Data: []byte("ignored")},
		{Name: "B.txt", Data: []byte("beta")},
	}

	res := e.Documents(files)

	want := WrapDocument("A.txt", "alpha") + WrapDocument("B.txt", "beta")
	if res.Text != want {
		t.Errorf("Text = %q, want %q", res.Text, want)
	}
	if strings.Index(res.Text, "BEGIN DOCUMENT: A.txt") > strings.Index(res.Text, "BEGIN DOCUMENT: B.txt") {
		t.Error("documents not in upload order")
	}
	if len(res.Processed) != 2 || res.Processed[0] != "A.txt" || res.Processed[1] != "B.txt" {
		t.Errorf("Processed = %v", res.Processed)
	}
	if len(res.Failures) != 1 || res.Failures[0].Name != "bad.doc" || !errors.Is(res.Failures[0].Err, ErrUnsupportedFile) {
		t.Errorf("Failures = %+v", res.Failures)
	}
}

func TestDocuments_AllFail(t *testing.T) {
	e := New(fakePDF{}, nil, nil)
	res := e.Documents([]File{{Name: "a.png"}, {Name: "b.txt", Data: []byte{0xff}}})
	if res.Text != "" || len(res.Processed) != 0 || len(res.Failures) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestWrapDocument(t *testing.T) {
	got := WrapDocument("A", "x")
	want := "\n\n--- BEGIN DOCUMENT: A ---\n\nx\n\n--- END DOCUMENT: A ---\n\n"
	if got != want {
		t.Errorf("WrapDocument = %q, want %q", got, want)
	}
}

func TestArticle(t *testing.T) {
	ctx := context.Background()

	fa := &fakeArticles{text: "Body text"}
	e := New(nil, fa, nil)
	got, err := e.Article(ctx, "https://example.com/post")
	if err != nil || got != "Body text" {
		t.Fatalf("Article = %q, %v", got, err)
	}

	if _, err := e.Article(ctx, "not a url"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("invalid url error = %v", err)
	}
	if len(fa.urls) != 1 {
		t.Errorf("fetcher called %d times, invalid url must not be fetched", len(fa.urls))
	}

	empty := New(nil, &fakeArticles{text: "   "}, nil)
	if _, err := empty.Article(ctx, "https://example.com"); !errors.Is(err, ErrNoText) {
		t.Errorf("empty article error = %v", err)
	}

	failing := New(nil, &fakeArticles{err: ErrArticleFetch}, nil)
	if _, err := failing.Article(ctx, "https://example.com"); !errors.Is(err, ErrArticleFetch) {
		t.Errorf("fetch error = %v", err)
	}
}

func TestExtractArticleText(t *testing.T) {
	page := `<html><head><title>T</title><script>var x = 1;</script></head>
<body>
  <nav><p>Menu</p></nav>
  <header><h1>Site</h1></header>
  <article>
    <h1>Headline</h1>
    <p>First   paragraph
       continues.</p>
    <aside><p>Related</p></aside>
    <ul><li>one</li><li>two</li></ul>
    <style>p{}</style>
  </article>
  <footer><p>Copyright</p></footer>
</body></html>`

	got, err := ExtractArticleText(strings.NewReader(page))
	if err != nil {
		t.Fatalf("ExtractArticleText: %v", err)
	}
	want := "Headline\n\nFirst paragraph continues.\n\none\n\ntwo"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtractArticleText_FallsBackToBody(t *testing.T) {
	got, err := ExtractArticleText(strings.NewReader(`<html><body><div>Just some text</div></body></html>`))
	if err != nil || got != "Just some text" {
		t.Errorf("got %q, %v", got, err)
	}

	if _, err := ExtractArticleText(strings.NewReader(`<html><body><script>x()</script></body></html>`)); !errors.Is(err, ErrNoText) {
		t.Errorf("empty page error = %v", err)
	}
}

func TestHTTPArticles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<main><p>Served paragraph.</p></main>`))
	}))
	defer srv.Close()

	a := NewHTTPArticles(srv.Client())
	got, err := a.FetchAndParse(context.Background(), srv.URL+"/post")
	if err != nil || got != "Served paragraph." {
		t.Fatalf("FetchAndParse = %q, %v", got, err)
	}
	if _, err := a.FetchAndParse(context.Background(), srv.URL+"/missing"); !errors.Is(err, ErrArticleFetch) {
		t.Errorf("404 error = %v, want ErrArticleFetch", err)
	}
	if _, err := a.FetchAndParse(context.Background(), "ftp://example.com"); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("ftp error = %v, want ErrInvalidURL", err)
	}
}

func TestHTTPArticles_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write([]byte("<article><p>Informa\xe7\xe3o \xe9 essencial.</p></article>"))
	}))
	defer srv.Close()

	got, err := NewHTTPArticles(srv.Client()).FetchAndParse(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchAndParse: %v", err)
	}
	if want := "Informação é essencial."; got != want {
		t.Errorf("FetchAndParse = %q, want %q", got, want)
	}
}

func TestExtractor_DropsInvalidUTF8(t *testing.T) {
	ctx := context.Background()

	e := New(fakePDF{pages: []string{"p\xe1gina um"}}, &fakeArticles{text: "Informa\xe7\xe3o"}, nil)
	article, err := e.Article(ctx, "https://example.com/post")
	if err != nil {
		t.Fatalf("Article: %v", err)
	}
	if !utf8.ValidString(article) || article != "Informao" {
		t.Errorf("Article = %q, want valid UTF-8 %q", article, "Informao")
	}

	doc, err := e.Document(File{Name: "a.pdf", ContentType: "application/pdf"})
	if err != nil {
		t.Fatalf("Document: %v", err)
	}
	if !utf8.ValidString(doc) {
		t.Errorf("Document returned invalid UTF-8: %q", doc)
	}

	garbage := New(nil, &fakeArticles{text: "\xff\xfe"}, nil)
	if _, err := garbage.Article(ctx, "https://example.com"); !errors.Is(err, ErrNoText) {
		t.Errorf("undecodable article error = %v, want ErrNoText", err)
	}
}

func TestParseVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=10", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/channel/xyz", "", true},
		{"https://youtu.be/", "", true},
		{"not a url", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseVideoID(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVideoID error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidVideoURL) {
				t.Errorf("error = %v, want ErrInvalidVideoURL", err)
			}
			if got != tt.want {
				t.Errorf("ParseVideoID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJoinSegments(t *testing.T) {
	segments := []Segment{
		{Start: 5, Text: "world"},
		{Start: 0, Text: "hello\n"},
		{Start: 9, Text: "  "},
		{Start: 12, Text: "again"},
	}
	if got := JoinSegments(segments); got != "hello world again" {
		t.Errorf("JoinSegments = %q", got)
	}
	if segments[0].Text != "world" {
		t.Error("JoinSegments reordered its input")
	}
}

func TestVideo(t *testing.T) {
	ctx := context.Background()

	fc := &fakeCaptions{segments: []Segment{{Start: 1, Text: "b"}, {Start: 0, Text: "a"}}}
	e := New(nil, nil, fc)
	got, err := e.Video(ctx, "https://youtu.be/abcdefghijk")
	if err != nil || got != "a b" {
		t.Fatalf("Video = %q, %v", got, err)
	}
	if fc.videoID != "abcdefghijk" || strings.Join(fc.languages, ",") != "pt,en" {
		t.Errorf("Captions called with %q %v", fc.videoID, fc.languages)
	}

	if _, err := New(nil, nil, &fakeCaptions{}).Video(ctx, "https://youtu.be/abcdefghijk"); !errors.Is(err, ErrCaptionsDisabled) {
		t.Errorf("empty captions error = %v", err)
	}
	if _, err := New(nil, nil, &fakeCaptions{err: ErrCaptionsBlocked}).Video(ctx, "https://youtu.be/abcdefghijk"); !errors.Is(err, ErrCaptionsBlocked) {
		t.Errorf("blocked error = %v", err)
	}
	if _, err := e.Video(ctx, "https://example.com"); !errors.Is(err, ErrInvalidVideoURL) {
		t.Errorf("invalid url error = %v", err)
	}
}

func TestYouTubeCaptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("v") {
		case "blocked":
			w.WriteHeader(http.StatusTooManyRequests)
		case "english":
			if r.URL.Query().Get("lang") != "en" {
				w.WriteHeader(http.StatusOK)
				return
			}
			w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?><transcript>` +
				`<text start="0.5" dur="1.2">it&amp;#39;s here</text>` +
				`<text start="2" dur="1">second</text></transcript>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	y := NewYouTubeCaptions(srv.Client())
	y.baseURL = srv.URL
	ctx := context.Background()

	segments, err := y.Captions(ctx, "english", []string{"pt", "en"})
	if err != nil {
		t.Fatalf("Captions: %v", err)
	}
	if len(segments) != 2 || segments[0].Text != "it's here" || segments[0].Start != 0.5 || segments[1].Duration != 1 {
		t.Errorf("segments = %+v", segments)
	}

	if _, err := y.Captions(ctx, "blocked", []string{"pt"}); !errors.Is(err, ErrCaptionsBlocked) {
		t.Errorf("blocked error = %v", err)
	}
	if _, err := y.Captions(ctx, "none", []string{"pt", "en"}); !errors.Is(err, ErrCaptionsDisabled) {
		t.Errorf("missing captions error = %v", err)
	}
}

func TestUserMessage(t *testing.T) {
	if msg := UserMessage(ErrCaptionsBlocked); !strings.Contains(msg, "PDF or TXT") {
		t.Errorf("blocked message = %q", msg)
	}
	if UserMessage(ErrInvalidVideoURL) == UserMessage(ErrArticleFetch) {
		t.Error("video and article errors share a message")
	}
	if UserMessage(errors.New("other")) == "" {
		t.Error("fallback message empty")
	}
}
