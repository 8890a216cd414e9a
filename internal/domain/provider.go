package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// SearchResponse represents the response from the product search provider
type SearchResponse struct {
	OrganicResults []RawResult `json:"organic_results,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// RawResult is one organic result as the provider sends it. Every field is
// optional; nil means the provider omitted it or sent something unusable.
type RawResult struct {
	Title       *string      `json:"title,omitempty"`
	URL         *string      `json:"url,omitempty"`
	Description *string      `json:"description,omitempty"`
	Domain      *string      `json:"domain,omitempty"`
	Thumbnail   *string      `json:"thumbnail,omitempty"`
	Rating      *float64     `json:"rating,omitempty"`
	Reviews     *int         `json:"reviews,omitempty"`
	RichSnippet *RichSnippet `json:"rich_snippet,omitempty"`
}

// RichSnippet carries the provider's structured annotations for a result
type RichSnippet struct {
	Top *RichSnippetBlock `json:"top,omitempty"`
}

// RichSnippetBlock holds free-text extensions such as "$10 to $20"
type RichSnippetBlock struct {
	Extensions []string `json:"extensions,omitempty"`
}

// Extensions returns the top rich-snippet extensions, or nil when absent
func (r RawResult) Extensions() []string {
	if r.RichSnippet == nil || r.RichSnippet.Top == nil {
		return nil
	}
	return r.RichSnippet.Top.Extensions
}

// UnmarshalJSON decodes the response, treating a non-array organic_results as absent.
func (s *SearchResponse) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*s = SearchResponse{}

	if raw, ok := fields["organic_results"]; ok {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err == nil {
			s.OrganicResults = make([]RawResult, 0, len(items))
			for _, item := range items {
				var result RawResult
				_ = json.Unmarshal(item, &result)
				s.OrganicResults = append(s.OrganicResults, result)
			}
		}
	}

	if raw, ok := fields["error"]; ok {
		s.Error = errorMessage(raw)
	}

	return nil
}

// UnmarshalJSON never fails: fields with the wrong JSON type are left nil and
// a non-object result decodes to an empty RawResult.
func (r *RawResult) UnmarshalJSON(data []byte) error {
	*r = RawResult{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil
	}

	r.Title = optionalString(fields["title"])
	r.URL = optionalString(fields["url"])
	r.Description = optionalString(fields["description"])
	r.Domain = optionalString(fields["domain"])
	r.Thumbnail = optionalString(fields["thumbnail"])
	r.Rating = optionalNumber(fields["rating"])
	r.Reviews = optionalCount(fields["reviews"])

	if extensions, ok := topExtensions(fields["rich_snippet"]); ok {
		r.RichSnippet = &RichSnippet{Top: &RichSnippetBlock{Extensions: extensions}}
	}

	return nil
}

func optionalString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return nil
	}
	return &s
}

func optionalNumber(raw json.RawMessage) *float64 {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	return &f
}

func optionalCount(raw json.RawMessage) *int {
	f := optionalNumber(raw)
	if f == nil {
		return nil
	}
	// keep the float to int conversion in range; negative counts mean none
	v := math.Trunc(*f)
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > math.MaxInt32:
		v = math.MaxInt32
	}
	n := int(v)
	return &n
}

// topExtensions digs out rich_snippet.top.extensions, keeping only string entries
func topExtensions(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}

	var snippet map[string]json.RawMessage
	if err := json.Unmarshal(raw, &snippet); err != nil {
		return nil, false
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(snippet["top"], &top); err != nil {
		return nil, false
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(top["extensions"], &entries); err != nil {
		return nil, false
	}

	extensions := make([]string, 0, len(entries))
	for _, entry := range entries {
		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			extensions = append(extensions, s)
		}
	}
	return extensions, true
}

// errorMessage flattens a provider error field which may be a string or an object
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(raw)
}
