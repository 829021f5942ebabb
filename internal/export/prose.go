package export

import (
	"regexp"
	"strings"
)

// ParsedProse is what ParseProse recovers from free AI prose.
type ParsedProse struct {
	Summary    string
	Sections   []OutlineSection
	Scriptures []Passage
	Questions  []string
	// Other holds lines that appear before the first recognised header.
	Other []string
}

type proseState int

const (
	stateNone proseState = iota
	stateSummary
	stateStructure
	stateScriptures
	stateQuestions
)

var (
	headerTrim   = regexp.MustCompile(`^(?:#+|[-•*]|\d+[.)])\s*`)
	bulletPrefix = regexp.MustCompile(`^[-•*]\s*`)
	numberPrefix = regexp.MustCompile(`^\d+[.)]\s*`)
	scriptureRef = regexp.MustCompile(`^[1-3]?\s*[\p{L}.]+(?:\s+[\p{L}.]+)*\s+\d+:\d+(?:-\d+)?`)
	startsLetter = regexp.MustCompile(`^\p{L}`)
)

// ParseProse scans text line by line. Header lines ("Samenvatting",
// "Structuur", "Centrale gedeelten", "Gespreksvragen", matched
// case-insensitively, with markdown and list markers ignored) switch the
// state; every other line accumulates into the current state.
func ParseProse(text string) ParsedProse {
	var (
		out     ParsedProse
		state   = stateNone
		current *OutlineSection
		summary []string
	)
	flush := func() {
		if current != nil {
			out.Sections = append(out.Sections, *current)
			current = nil
		}
	}

	for _, raw := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if next, ok := proseHeader(line); ok {
			state = next
			continue
		}

		switch state {
		case stateSummary:
			summary = append(summary, line)

		case stateStructure:
			if !bulletPrefix.MatchString(line) && startsLetter.MatchString(line) {
				flush()
				current = &OutlineSection{Title: strings.TrimSuffix(line, ":")}
				continue
			}
			if current == nil {
				current = &OutlineSection{Title: "Structuur"}
			}
			current.Points = append(current.Points, stripListMarker(line))

		case stateScriptures:
			ref := stripListMarker(line)
			if scriptureRef.MatchString(ref) || len(out.Scriptures) == 0 {
				out.Scriptures = append(out.Scriptures, Passage{Ref: ref})
				continue
			}
			last := &out.Scriptures[len(out.Scriptures)-1]
			if last.Text != "" {
				last.Text += "\n"
			}
			last.Text += line

		case stateQuestions:
			out.Questions = append(out.Questions, stripListMarker(line))

		default:
			out.Other = append(out.Other, line)
		}
	}
	flush()

	out.Summary = strings.Join(summary, "\n")
	return out
}

func proseHeader(line string) (proseState, bool) {
	h := headerTrim.ReplaceAllString(line, "")
	h = strings.Trim(h, "*_ ")
	h = strings.TrimSuffix(h, ":")
	h = strings.ToLower(strings.TrimSpace(h))

	switch {
	case h == "samenvatting":
		return stateSummary, true
	case strings.HasPrefix(h, "structuur"):
		return stateStructure, true
	case strings.HasPrefix(h, "centrale gedeelten"):
		return stateScriptures, true
	case strings.HasPrefix(h, "gespreksvragen"):
		return stateQuestions, true
	}
	return stateNone, false
}

func stripListMarker(line string) string {
	line = bulletPrefix.ReplaceAllString(line, "")
	return numberPrefix.ReplaceAllString(line, "")
}
