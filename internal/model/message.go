package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Search stages recorded by this backend. SearchInfo.Stages accepts any label.
const (
	StageStarted  = "started"
	StageCached   = "cached"
	StageFetching = "fetching"
	StageDone     = "done"
	StageFailed   = "failed"
)

// Message is one entry of a chat transcript.
type Message struct {
	ID         int64       `json:"id"`
	Content    string      `json:"content"`
	IsUser     bool        `json:"isUser"`
	Type       string      `json:"type"`
	IsLoading  *bool       `json:"isLoading,omitempty"`
	SearchInfo *SearchInfo `json:"searchInfo,omitempty"`
}

// Loading reports whether the message content is still being produced.
func (m *Message) Loading() bool {
	return m.IsLoading != nil && *m.IsLoading
}

// Clone returns a deep copy. A message exclusively owns its search info.
func (m Message) Clone() Message {
	out := m
	if m.IsLoading != nil {
		out.IsLoading = Bool(*m.IsLoading)
	}
	if m.SearchInfo != nil {
		info := m.SearchInfo.Clone()
		out.SearchInfo = &info
	}
	return out
}

// SearchInfo records the progress of a search tied to an assistant message.
type SearchInfo struct {
	Stages []string   `json:"stages"`
	Query  string     `json:"query"`
	URLs   []URLEntry `json:"urls" validate:"dive"`
	Error  *string    `json:"error,omitempty"`
}

// NewSearchInfo starts an empty search for query.
func NewSearchInfo(query string) SearchInfo {
	return SearchInfo{
		Stages: []string{},
		Query:  query,
		URLs:   []URLEntry{},
	}
}

// AddStage appends a stage label. Stages are chronological.
func (s *SearchInfo) AddStage(stage string) {
	s.Stages = append(s.Stages, stage)
}

// AddURL appends a bare locator.
func (s *SearchInfo) AddURL(u string) {
	s.URLs = append(s.URLs, TextURL(u))
}

// AddResult appends a full search result record.
func (s *SearchInfo) AddResult(r SearchResult) {
	s.URLs = append(s.URLs, ResultURL(r))
}

// Fail records msg as the search error and appends the failed stage.
func (s *SearchInfo) Fail(msg string) {
	s.Error = String(msg)
	s.AddStage(StageFailed)
}

// Failed reports whether the search ended with an error.
func (s *SearchInfo) Failed() bool {
	return s.Error != nil
}

// Clone returns a deep copy of s.
func (s SearchInfo) Clone() SearchInfo {
	out := s
	if s.Stages != nil {
		out.Stages = make([]string, len(s.Stages))
		copy(out.Stages, s.Stages)
	}
	if s.URLs != nil {
		out.URLs = make([]URLEntry, len(s.URLs))
		for i, e := range s.URLs {
			out.URLs[i] = e.Clone()
		}
	}
	if s.Error != nil {
		out.Error = String(*s.Error)
	}
	return out
}

// MarshalJSON always writes stages and urls as arrays.
func (s SearchInfo) MarshalJSON() ([]byte, error) {
	type alias SearchInfo
	a := alias(s)
	if a.Stages == nil {
		a.Stages = []string{}
	}
	if a.URLs == nil {
		a.URLs = []URLEntry{}
	}
	return json.Marshal(a)
}

// SearchResult is one item returned by a search. Keys other than title and url
// are kept in Extra so unknown attributes survive a round trip.
type SearchResult struct {
	Title *string
	URL   *string
	Extra map[string]any
}

const (
	resultTitleKey = "title"
	resultURLKey   = "url"
)

// NewSearchResult builds a result with both named fields set.
func NewSearchResult(title, url string) SearchResult {
	return SearchResult{Title: String(title), URL: String(url)}
}

// Set stores an additional attribute.
func (r *SearchResult) Set(key string, value any) {
	if r.Extra == nil {
		r.Extra = make(map[string]any)
	}
	r.Extra[key] = value
}

// Clone returns a deep copy of r.
func (r SearchResult) Clone() SearchResult {
	out := SearchResult{}
	if r.Title != nil {
		out.Title = String(*r.Title)
	}
	if r.URL != nil {
		out.URL = String(*r.URL)
	}
	if r.Extra != nil {
		out.Extra = cloneValue(r.Extra).(map[string]any)
	}
	return out
}

// MarshalJSON flattens Extra next to title and url. Named fields win over
// Extra keys of the same name.
func (r SearchResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+2)
	for k, v := range r.Extra {
		out[k] = v
	}
	delete(out, resultTitleKey)
	delete(out, resultURLKey)
	if r.Title != nil {
		out[resultTitleKey] = *r.Title
	}
	if r.URL != nil {
		out[resultURLKey] = *r.URL
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits the object into the named fields and Extra. Numbers in
// Extra are kept as json.Number to preserve their exact text.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SearchResult{}
	for key, value := range raw {
		switch key {
		case resultTitleKey:
			s, err := decodeOptionalString(value)
			if err != nil {
				return fmt.Errorf("search result title: %w", err)
			}
			r.Title = s
		case resultURLKey:
			s, err := decodeOptionalString(value)
			if err != nil {
				return fmt.Errorf("search result url: %w", err)
			}
			r.URL = s
		default:
			dec := json.NewDecoder(bytes.NewReader(value))
			dec.UseNumber()
			var v any
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("search result attribute %q: %w", key, err)
			}
			r.Set(key, v)
		}
	}
	return nil
}

// URLEntry is one element of SearchInfo.URLs: either a bare locator (Text) or a
// full SearchResult. Exactly one variant is set.
type URLEntry struct {
	Text   string
	Result *SearchResult
}

// TextURL returns the locator variant.
func TextURL(u string) URLEntry {
	return URLEntry{Text: u}
}

// ResultURL returns the record variant.
func ResultURL(r SearchResult) URLEntry {
	return URLEntry{Result: &r}
}

// IsResult reports whether e holds a SearchResult.
func (e URLEntry) IsResult() bool {
	return e.Result != nil
}

// Href returns the locator of either variant, or "" when the record has none.
func (e URLEntry) Href() string {
	if e.Result == nil {
		return e.Text
	}
	if e.Result.URL == nil {
		return ""
	}
	return *e.Result.URL
}

// Clone returns a deep copy of e.
func (e URLEntry) Clone() URLEntry {
	if e.Result == nil {
		return e
	}
	r := e.Result.Clone()
	return URLEntry{Text: e.Text, Result: &r}
}

func (e URLEntry) MarshalJSON() ([]byte, error) {
	if e.Result != nil {
		return json.Marshal(*e.Result)
	}
	return json.Marshal(e.Text)
}

func (e *URLEntry) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("url entry is empty")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*e = TextURL(s)
	case '{':
		var r SearchResult
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return err
		}
		*e = ResultURL(r)
	default:
		return fmt.Errorf("url entry must be a string or an object, got %s", trimmed)
	}
	return nil
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// String returns a pointer to s.
func String(s string) *string { return &s }

func decodeOptionalString(raw json.RawMessage) (*string, error) {
	if string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
