package export

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Structured is the AI collaborator's keyed payload split into the fields
// the document understands and everything else, in payload order.
type Structured struct {
	Known KnownFields
	Extra []ExtraField
}

// KnownFields are recognised keys, with aliases already folded in.
type KnownFields struct {
	Title      string
	Theme      string
	Summary    string
	Kind       string
	Outline    []OutlineSection
	Scriptures []Passage
	Questions  []string
}

// OutlineSection is a titled list of points.
type OutlineSection struct {
	Title  string   `json:"title"`
	Points []string `json:"points,omitempty"`
}

// Passage is a scripture reference with optional quoted text.
type Passage struct {
	Ref  string `json:"ref"`
	Text string `json:"text,omitempty"`
}

// ExtraField is an unrecognised key rendered generically: a list when the
// value was an array, otherwise Text.
type ExtraField struct {
	Key  string
	Text string
	List []string
}

// IsList reports whether the field renders as bullets.
func (f ExtraField) IsList() bool { return f.List != nil }

// UnmarshalJSON never fails on odd field values; a malformed field is
// skipped so one bad key cannot drop the whole result.
func (s *Structured) UnmarshalJSON(data []byte) error {
	*s = Structured{}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	// Aliases: the first non-empty key in each list wins.
	var scriptures, questions [3][]json.RawMessage
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil
		}

		switch key {
		case "title":
			s.Known.Title = rawString(raw)
		case "theme":
			s.Known.Theme = rawString(raw)
		case "summary":
			s.Known.Summary = rawString(raw)
		case "kind":
			s.Known.Kind = rawString(raw)
		case "outline":
			s.Known.Outline = decodeOutline(raw)
		case "scriptures":
			scriptures[0] = rawArray(raw)
		case "passages":
			scriptures[1] = rawArray(raw)
		case "bijbelteksten":
			scriptures[2] = rawArray(raw)
		case "questions":
			questions[0] = rawArray(raw)
		case "vragen":
			questions[1] = rawArray(raw)
		default:
			if f, ok := decodeExtra(key, raw); ok {
				s.Extra = append(s.Extra, f)
			}
		}
	}

	for _, items := range scriptures {
		if len(items) == 0 {
			continue
		}
		for _, item := range items {
			if p, ok := decodePassage(item); ok {
				s.Known.Scriptures = append(s.Known.Scriptures, p)
			}
		}
		break
	}
	for _, items := range questions {
		if len(items) == 0 {
			continue
		}
		for _, item := range items {
			if q := strings.TrimSpace(rawText(item)); q != "" {
				s.Known.Questions = append(s.Known.Questions, q)
			}
		}
		break
	}
	return nil
}

func (s Structured) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for _, f := range s.Extra {
		if f.IsList() {
			out[f.Key] = f.List
		} else {
			out[f.Key] = f.Text
		}
	}
	setIf := func(k string, v any, ok bool) {
		if ok {
			out[k] = v
		}
	}
	k := s.Known
	setIf("title", k.Title, k.Title != "")
	setIf("theme", k.Theme, k.Theme != "")
	setIf("summary", k.Summary, k.Summary != "")
	setIf("kind", k.Kind, k.Kind != "")
	setIf("outline", k.Outline, len(k.Outline) > 0)
	setIf("scriptures", k.Scriptures, len(k.Scriptures) > 0)
	setIf("questions", k.Questions, len(k.Questions) > 0)
	return json.Marshal(out)
}

func decodeOutline(raw json.RawMessage) []OutlineSection {
	var out []OutlineSection
	for _, item := range rawArray(raw) {
		if s := rawString(item); s != "" {
			out = append(out, OutlineSection{Title: s})
			continue
		}
		var obj map[string]json.RawMessage
		if json.Unmarshal(item, &obj) != nil {
			continue
		}
		sec := OutlineSection{Title: firstNonEmpty(rawString(obj["kop"]), rawString(obj["title"]))}
		for _, k := range []string{"opsomming", "punten", "inhoud", "points"} {
			points := rawArray(obj[k])
			if len(points) == 0 {
				continue
			}
			for _, p := range points {
				if t := strings.TrimSpace(rawText(p)); t != "" {
					sec.Points = append(sec.Points, t)
				}
			}
			break
		}
		if sec.Title == "" && len(sec.Points) == 0 {
			continue
		}
		out = append(out, sec)
	}
	return out
}

func decodePassage(raw json.RawMessage) (Passage, bool) {
	if s := rawString(raw); s != "" {
		return Passage{Ref: s}, true
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(raw, &obj) != nil {
		return Passage{}, false
	}
	p := Passage{Ref: strings.TrimSpace(rawString(obj["ref"])), Text: rawString(obj["text"])}
	if p.Ref == "" && strings.TrimSpace(p.Text) == "" {
		return Passage{}, false
	}
	if p.Ref == "" {
		p.Ref = "-"
	}
	return p, true
}

func decodeExtra(key string, raw json.RawMessage) (ExtraField, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ExtraField{}, false
	}
	switch trimmed[0] {
	case '[':
		items := rawArray(raw)
		if len(items) == 0 {
			return ExtraField{}, false
		}
		f := ExtraField{Key: key, List: []string{}}
		for _, item := range items {
			f.List = append(f.List, rawText(item))
		}
		return f, true
	case '"':
		s := rawString(raw)
		if strings.TrimSpace(s) == "" {
			return ExtraField{}, false
		}
		return ExtraField{Key: key, Text: s}, true
	case '{', 'n':
		return ExtraField{}, false
	default:
		// numbers and booleans
		return ExtraField{Key: key, Text: string(trimmed)}, true
	}
}

func rawString(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func rawArray(raw json.RawMessage) []json.RawMessage {
	var items []json.RawMessage
	if json.Unmarshal(raw, &items) != nil {
		return nil
	}
	return items
}

// rawText renders a list item: strings as-is, anything else as compact JSON.
func rawText(raw json.RawMessage) string {
	if s := rawString(raw); s != "" {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return strconv.Quote(string(raw))
	}
	if buf.String() == `""` {
		return ""
	}
	return buf.String()
}
