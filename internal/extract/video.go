package extract

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{6,}$`)

// Segment is one caption cue.
type Segment struct {
	Start    float64
	Duration float64
	Text     string
}

// ParseVideoID accepts the two YouTube URL shapes: a `v=` query parameter and the
// youtu.be/<id> short path.
func ParseVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, rawURL)
	}

	var id string
	if v := u.Query().Get("v"); v != "" {
		id = v
	} else if host := strings.TrimPrefix(strings.ToLower(u.Host), "www."); host == "youtu.be" {
		id = strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)[0]
	}

	if !videoIDPattern.MatchString(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidVideoURL, rawURL)
	}
	return id, nil
}

// JoinSegments orders cues by start time and joins their text with single spaces.
func JoinSegments(segments []Segment) string {
	ordered := make([]Segment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start < ordered[j].Start })

	parts := make([]string, 0, len(ordered))
	for _, s := range ordered {
		if t := collapseSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// YouTubeCaptions reads caption tracks from the public timedtext endpoint.
type YouTubeCaptions struct {
	client  *http.Client
	baseURL string
}

func NewYouTubeCaptions(client *http.Client) *YouTubeCaptions {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &YouTubeCaptions{client: client, baseURL: "https://www.youtube.com"}
}

type timedText struct {
	Texts []struct {
		Start string `xml:"start,attr"`
		Dur   string `xml:"dur,attr"`
		Body  string `xml:",chardata"`
	} `xml:"text"`
}

// Captions returns the first non-empty track among languages, in preference order.
func (y *YouTubeCaptions) Captions(ctx context.Context, videoID string, languages []string) ([]Segment, error) {
	for _, lang := range languages {
		segments, err := y.track(ctx, videoID, lang)
		if err != nil {
			return nil, err
		}
		if len(segments) > 0 {
			return segments, nil
		}
	}
	return nil, ErrCaptionsDisabled
}

func (y *YouTubeCaptions) track(ctx context.Context, videoID, lang string) ([]Segment, error) {
	q := url.Values{"v": {videoID}, "lang": {lang}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/api/timedtext?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrCaptionsBlocked, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("caption request failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read captions: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, nil
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("failed to decode captions: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		start, _ := strconv.ParseFloat(t.Start, 64)
		dur, _ := strconv.ParseFloat(t.Dur, 64)
		segments = append(segments, Segment{
			Start:    start,
			Duration: dur,
			// Cue text arrives entity-encoded a second time inside the XML.
			Text: html.UnescapeString(t.Body),
		})
	}
	return segments, nil
}
