package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/timmy/doclens/internal/domain"
)

var (
	mdFence      = regexp.MustCompile("(?m)^```.*$")
	mdImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading    = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	mdBlockquote = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	mdRule       = regexp.MustCompile(`(?m)^[ \t]*[-*_]([ \t]*[-*_]){2,}[ \t]*$`)
	mdBullet     = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+`)
	mdNumbered   = regexp.MustCompile(`(?m)^([ \t]*)\d+[.)][ \t]+`)
	mdStrong     = regexp.MustCompile(`(\*\*|__)(\S.*?\S|\S)(\*\*|__)`)
	mdEmphasis   = regexp.MustCompile(`(^|[^\w*])[*_](\S[^*_\n]*?)[*_]([^\w*]|$)`)
	mdInlineCode = regexp.MustCompile("`([^`\n]+)`")
	mdHTMLTag    = regexp.MustCompile(`</?[a-zA-Z][^>\n]*>`)
	mdBlankRun   = regexp.MustCompile(`\n{3,}`)
)

// MarkdownExtractor strips Markdown syntax and keeps the readable text.
// Code block contents are kept since they are often what users ask about.
type MarkdownExtractor struct{}

func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{}
}

func (e *MarkdownExtractor) Extract(_ context.Context, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: markdown is not valid UTF-8", domain.ErrExtractionFailure)
	}
	return StripMarkdown(string(data)), nil
}

// StripMarkdown converts Markdown source into plain text.
func StripMarkdown(src string) string {
	s := strings.ReplaceAll(src, "\r\n", "\n")
	s = mdFence.ReplaceAllString(s, "")
	s = mdImage.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	s = mdRule.ReplaceAllString(s, "")
	s = mdHeading.ReplaceAllString(s, "")
	s = mdBlockquote.ReplaceAllString(s, "")
	s = mdBullet.ReplaceAllString(s, "$1")
	s = mdNumbered.ReplaceAllString(s, "$1")
	s = mdStrong.ReplaceAllString(s, "$2")
	s = mdEmphasis.ReplaceAllString(s, "$1$2$3")
	s = mdInlineCode.ReplaceAllString(s, "$1")
	s = mdHTMLTag.ReplaceAllString(s, "")
	s = mdBlankRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
