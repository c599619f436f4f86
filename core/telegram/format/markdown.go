package format

import (
	"fmt"
	"regexp"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const mdV2Specials = "_*[]()~`>#+-=|{}.!\\"

var (
	mdV1Re = regexp.MustCompile("([_*`\\[])")
	mdV2Re = regexp.MustCompile("([" + regexp.QuoteMeta(mdV2Specials) + "])")
	// inside `code` spans only the backtick and backslash need escaping
	mdV2CodeRe = regexp.MustCompile("([`\\\\])")
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
// entityType "code" or "pre" applies the narrower V2 escaping used inside code entities.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllString(text, `\$1`), nil
	case MarkdownV2:
		if entityType == "code" || entityType == "pre" {
			return mdV2CodeRe.ReplaceAllString(text, `\$1`), nil
		}
		return mdV2Re.ReplaceAllString(text, `\$1`), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// Code wraps text in a Markdown (V1) inline code span. Backticks are dropped
// because V1 offers no escape inside code.
func Code(text string) string {
	return "`" + stripBackticks(text) + "`"
}

// Bold wraps escaped text in Markdown (V1) bold markers.
func Bold(text string) string {
	escaped, _ := EscapeMarkdown(text, MarkdownV1, "")
	return "*" + escaped + "*"
}

func stripBackticks(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r != '`' {
			out = append(out, r)
		}
	}
	return string(out)
}
