// Package format builds Telegram messages with entities instead of parse
// modes, so user supplied text never needs escaping.
package format

import (
	"strings"
	"unicode/utf16"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ParseResult contains plain text and message entities
type ParseResult struct {
	Text     string
	Entities []tgbotapi.MessageEntity
}

// UTF16Len returns the length of s in UTF-16 code units, which is what
// Telegram entity offsets are counted in.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Builder appends plain and styled fragments and tracks entity offsets.
type Builder struct {
	sb       strings.Builder
	offset   int
	entities []tgbotapi.MessageEntity
}

func (b *Builder) Plain(s string) *Builder {
	b.sb.WriteString(s)
	b.offset += UTF16Len(s)
	return b
}

func (b *Builder) styled(kind, s string) *Builder {
	if s == "" {
		return b
	}
	n := UTF16Len(s)
	b.entities = append(b.entities, tgbotapi.MessageEntity{Type: kind, Offset: b.offset, Length: n})
	b.sb.WriteString(s)
	b.offset += n
	return b
}

func (b *Builder) Bold(s string) *Builder   { return b.styled("bold", s) }
func (b *Builder) Italic(s string) *Builder { return b.styled("italic", s) }
func (b *Builder) Code(s string) *Builder   { return b.styled("code", s) }

func (b *Builder) Result() ParseResult {
	return ParseResult{Text: b.sb.String(), Entities: b.entities}
}

// Message returns a message for chatID carrying the built text.
func (b *Builder) Message(chatID int64) tgbotapi.MessageConfig {
	return Message(chatID, b.Result())
}

// Message wraps r into a send config for chatID.
func Message(chatID int64, r ParseResult) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	msg.Entities = r.Entities
	return msg
}

var markers = []struct {
	open, kind string
}{
	{"**", "bold"},
	{"`", "code"},
	{"_", "italic"},
}

// ParseMarkdown converts **bold**, `code` and _italic_ spans of a fixed
// template into entities. Markers without a closing pair stay as text.
func ParseMarkdown(text string) ParseResult {
	var b Builder
	for len(text) > 0 {
		start, m := -1, -1
		for i, mk := range markers {
			if idx := strings.Index(text, mk.open); idx >= 0 && (start < 0 || idx < start) {
				start, m = idx, i
			}
		}
		if start < 0 {
			b.Plain(text)
			break
		}
		mk := markers[m]
		rest := text[start+len(mk.open):]
		end := strings.Index(rest, mk.open)
		if end <= 0 {
			b.Plain(text[:start+len(mk.open)])
			text = rest
			continue
		}
		b.Plain(text[:start])
		b.styled(mk.kind, rest[:end])
		text = rest[end+len(mk.open):]
	}
	r := b.Result()
	r.Text = strings.TrimRight(r.Text, " \n")
	return r
}
