package source

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/russross/blackfriday/v2"
)

// StripHTML returns the visible text of an HTML fragment with whitespace collapsed.
func StripHTML(raw string) string {
	if !strings.ContainsAny(raw, "<&") {
		return collapseSpace(raw)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return collapseSpace(raw)
	}

	// Keep paragraph and line boundaries as word separators.
	doc.Find("br").ReplaceWithHtml(" ")
	doc.Find("p, li, div, blockquote").AppendHtml(" ")

	return collapseSpace(doc.Text())
}

// MarkdownToText renders Markdown and returns its plain text.
func MarkdownToText(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	html := blackfriday.Run([]byte(md), blackfriday.WithNoExtensions())
	return StripHTML(string(html))
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n < 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
