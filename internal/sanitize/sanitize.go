// Package sanitize renders admin-authored markdown and strips dangerous HTML
// (script tags, event handlers, javascript: URLs) from the result.
package sanitize

import (
	"bytes"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once

	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Typographer),
		// Raw HTML in the source is allowed through and then sanitized.
		goldmark.WithRendererOptions(html.WithUnsafe(), html.WithHardWraps()),
	)
)

// getPolicy returns the shared sanitization policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.UGCPolicy()

		// Devotional texts carry Arabic and Lisan ud-Dawat passages.
		policy.AllowAttrs("dir").Matching(bluemonday.Direction).Globally()
		policy.AllowAttrs("lang").Globally()
		policy.AllowAttrs("class").OnElements("span", "p", "div")

		policy.AllowElements("table", "thead", "tbody", "tr", "td", "th")
		policy.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
		policy.AllowAttrs("align").OnElements("td", "th")

		policy.RequireNoFollowOnLinks(true)
		policy.AddTargetBlankToFullyQualifiedLinks(true)
	})
	return policy
}

// HTML sanitizes untrusted HTML. The output is safe to write into a page
// unescaped.
func HTML(input string) string {
	if input == "" {
		return ""
	}
	return getPolicy().Sanitize(input)
}

// Markdown renders src as GitHub-flavored markdown and sanitizes the result.
func Markdown(src string) (string, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return HTML(buf.String()), nil
}
