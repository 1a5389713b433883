// Package wire holds the JSON boundary helpers shared by the HTTP adapters.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ID accepts both numeric and string identifiers; the backend uses integer
// primary keys but nothing above the adapters should care.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes numeric ids back as numbers. Digit strings with a
// leading zero stay strings; they are not valid JSON numbers.
func (id ID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if s != "" && isDigits(s) && (s == "0" || s[0] != '0') {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

func (id ID) String() string { return string(id) }

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OrderedValues decodes a JSON array or a JSON object into its element
// values, keeping document order for objects. encoding/json maps would
// lose the key order, so objects are streamed token by token.
func OrderedValues(raw json.RawMessage) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	switch raw[0] {
	case '[':
		var out []json.RawMessage
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, err
		}
		return out, nil
	case '{':
		dec := json.NewDecoder(bytes.NewReader(raw))
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var out []json.RawMessage
		for dec.More() {
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			var v json.RawMessage
			if err := dec.Decode(&v); err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, errors.New("expected array or object")
	}
}

// ErrorBody is the union of error shapes the backend produces: DRF's
// {"detail", "code"}, hand-written {"error"} / {"message"}, and field
// validation maps like {"email": ["This field is required."]}.
type ErrorBody struct {
	Detail  string
	Code    string
	Error   string
	Message string
	Fields  map[string][]string
}

func ParseErrorBody(b []byte) ErrorBody {
	var body ErrorBody

	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		body.Message = strings.TrimSpace(string(b))
		return body
	}

	for k, v := range m {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			switch k {
			case "detail":
				body.Detail = s
			case "code":
				body.Code = s
			case "error":
				body.Error = s
			case "message":
				body.Message = s
			}
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			if body.Fields == nil {
				body.Fields = make(map[string][]string)
			}
			body.Fields[k] = list
		}
	}
	return body
}

// Summary picks the most useful human-readable text.
func (b ErrorBody) Summary() string {
	for _, s := range []string{b.Error, b.Detail, b.Message} {
		if s != "" {
			return s
		}
	}
	if len(b.Fields) == 0 {
		return ""
	}
	parts := make([]string, 0, len(b.Fields))
	for k, v := range b.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v, " ")))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
