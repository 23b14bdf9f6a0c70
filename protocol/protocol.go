// Package protocol names the commands the clippy daemon understands and
// decodes its replies. The request client itself treats both as opaque
// text; this package is an optional layer on top of it.
package protocol

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Commands.
const (
	GetHistory   = "GET_HISTORY"
	ResetHistory = "RESET_HISTORY"
	ClearHistory = "CLEAR_HISTORY"
)

// Replies.
const (
	ReplyOK         = "OK"
	ReplyBadRequest = "BAD_REQUEST"
)

var (
	ErrBadRequest       = errors.New("daemon rejected the request")
	ErrUnexpectedReply  = errors.New("unexpected reply")
	ErrMalformedHistory = errors.New("malformed history")
)

// CheckReply interprets the reply to a command that answers with a status.
func CheckReply(reply string) error {
	switch strings.TrimSpace(reply) {
	case ReplyOK:
		return nil
	case ReplyBadRequest:
		return ErrBadRequest
	default:
		return errors.Wrapf(ErrUnexpectedReply, "%q", reply)
	}
}

// ParseHistory decodes a history reply: a bracketed, comma separated list
// of double quoted strings, optionally followed by a newline. The daemon
// prints its history with debug formatting, so strings use backslash
// escapes: \n \r \t \0 \\ \" \' and \u{XXXX}.
func ParseHistory(reply string) ([]string, error) {
	if strings.TrimSpace(reply) == ReplyBadRequest {
		return nil, ErrBadRequest
	}
	p := &historyParser{src: strings.TrimRight(reply, "\r\n")}
	return p.parse()
}

type historyParser struct {
	src string
	pos int
}

func (p *historyParser) fail(format string, args ...interface{}) error {
	return errors.Wrapf(ErrMalformedHistory, "offset %d: "+format, append([]interface{}{p.pos}, args...)...)
}

func (p *historyParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *historyParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return p.fail("expected %q, got end of input", c)
	}
	if p.src[p.pos] != c {
		return p.fail("expected %q, got %q", c, p.src[p.pos])
	}
	p.pos++
	return nil
}

func (p *historyParser) parse() ([]string, error) {
	if err := p.expect('['); err != nil {
		return nil, err
	}
	entries := []string{}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return entries, p.end()
	}
	for {
		entry, err := p.quoted()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)

		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, p.fail("unterminated list")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return entries, p.end()
		default:
			return nil, p.fail("expected ',' or ']', got %q", p.src[p.pos])
		}
	}
}

func (p *historyParser) end() error {
	p.skipSpace()
	if p.pos != len(p.src) {
		return p.fail("trailing data")
	}
	return nil
}

func (p *historyParser) quoted() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var sb strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '"':
			p.pos++
			return sb.String(), nil
		case '\\':
			if err := p.escape(&sb); err != nil {
				return "", err
			}
		default:
			r, size := utf8.DecodeRuneInString(p.src[p.pos:])
			if r == utf8.RuneError && size <= 1 {
				return "", p.fail("invalid utf-8")
			}
			sb.WriteString(p.src[p.pos : p.pos+size])
			p.pos += size
		}
	}
	return "", p.fail("unterminated string")
}

func (p *historyParser) escape(sb *strings.Builder) error {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return p.fail("dangling escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case 'n':
		sb.WriteByte('\n')
	case 'r':
		sb.WriteByte('\r')
	case 't':
		sb.WriteByte('\t')
	case '0':
		sb.WriteByte(0)
	case '\\', '"', '\'':
		sb.WriteByte(c)
	case 'u':
		if p.pos >= len(p.src) || p.src[p.pos] != '{' {
			return p.fail("expected '{' after \\u")
		}
		end := strings.IndexByte(p.src[p.pos:], '}')
		if end < 0 {
			return p.fail("unterminated unicode escape")
		}
		hex := p.src[p.pos+1 : p.pos+end]
		v, err := strconv.ParseUint(hex, 16, 32)
		if err != nil || hex == "" || len(hex) > 6 || !utf8.ValidRune(rune(v)) {
			return p.fail("invalid unicode escape %q", hex)
		}
		sb.WriteRune(rune(v))
		p.pos += end + 1
	default:
		return p.fail("unknown escape \\%c", c)
	}
	return nil
}

// FormatHistory renders entries the way the daemon sends them, including
// the trailing newline. Code points that are neither letters, marks,
// numbers, punctuation, symbols nor spaces (controls, format characters
// such as U+00AD or U+200B, unassigned runes) become \u{..} escapes.
func FormatHistory(entries []string) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('"')
		for _, r := range e {
			switch r {
			case '\n':
				sb.WriteString(`\n`)
			case '\r':
				sb.WriteString(`\r`)
			case '\t':
				sb.WriteString(`\t`)
			case 0:
				sb.WriteString(`\0`)
			case '\\':
				sb.WriteString(`\\`)
			case '"':
				sb.WriteString(`\"`)
			default:
				if !unicode.IsGraphic(r) {
					sb.WriteString(`\u{` + strconv.FormatInt(int64(r), 16) + `}`)
					continue
				}
				sb.WriteRune(r)
			}
		}
		sb.WriteByte('"')
	}
	sb.WriteString("]\n")
	return sb.String()
}
