package codeblock

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

// Kind is the Telegram entity type of a code region.
type Kind string

const (
	KindPre  Kind = "pre"
	KindCode Kind = "code"
)

// AutoLanguage lets the render service detect the language itself.
const AutoLanguage = "auto"

// Entity is a message annotation. Offset and Length are UTF-16 code units,
// as Telegram reports them.
type Entity struct {
	Type     string
	Offset   int
	Length   int
	Language string
}

// Span is one code region selected from a message.
type Span struct {
	Offset   int
	Length   int
	Kind     Kind
	Language string
	Code     string
}

var languageTagRe = regexp.MustCompile(`^[\p{L}\p{N}_=#/+\-]+`)

// Extract returns the pre/code spans of text in message order.
func Extract(text string, entities []Entity) []Span {
	if len(entities) == 0 || text == "" {
		return nil
	}
	units := utf16.Encode([]rune(text))

	var out []Span
	for _, e := range entities {
		kind := Kind(strings.TrimSpace(e.Type))
		if kind != KindPre && kind != KindCode {
			continue
		}
		if e.Offset < 0 || e.Length <= 0 || e.Offset+e.Length > len(units) {
			continue
		}
		lang := strings.TrimSpace(e.Language)
		if lang == "" {
			lang = languageFromPrefix(units[:e.Offset])
		}
		out = append(out, Span{
			Offset:   e.Offset,
			Length:   e.Length,
			Kind:     kind,
			Language: lang,
			Code:     string(utf16.Decode(units[e.Offset : e.Offset+e.Length])),
		})
	}
	return out
}

// LanguageTag guesses the language of a span from the text written right
// before it, e.g. "py" on the line above a fenced block. Falls back to
// AutoLanguage.
func LanguageTag(text string, offset int) string {
	units := utf16.Encode([]rune(text))
	if offset < 0 {
		offset = 0
	}
	if offset > len(units) {
		offset = len(units)
	}
	return languageFromPrefix(units[:offset])
}

func languageFromPrefix(prefix []uint16) string {
	before := strings.TrimSpace(string(utf16.Decode(prefix)))
	before = strings.TrimLeft(before, "`")
	if tag := languageTagRe.FindString(before); tag != "" {
		return tag
	}
	return AutoLanguage
}
