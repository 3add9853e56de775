package web

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
)

// Meta is the metadata extracted from a page head.
type Meta struct {
	Title        string
	Description  string
	ThumbnailURL string
}

// ParseMeta extracts title, description and preview image from html.
// Relative image URLs are resolved against baseURL.
func ParseMeta(html, baseURL string) (*Meta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Meta{
		Title:        extractTitle(doc),
		Description:  extractDescription(doc),
		ThumbnailURL: resolve(baseURL, firstAttr(doc, "content", "meta[property='og:image']", "meta[name='twitter:image']")),
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	if t := firstAttr(doc, "content", "meta[property='og:title']"); t != "" {
		return t
	}
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := firstAttr(doc, "content", "meta[name='twitter:title']"); t != "" {
		return t
	}
	return collapse(doc.Find("h1").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	return firstAttr(doc, "content",
		"meta[name='description']",
		"meta[property='og:description']",
		"meta[name='twitter:description']")
}

func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok {
			if v = collapse(v); v != "" {
				return v
			}
		}
	}
	return ""
}

var spaces = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

func resolve(base, ref string) string {
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// boilerplate is removed before converting a page to text.
const boilerplate = "script, style, noscript, nav, footer, aside, form, iframe"

// ToMarkdown converts the main content of html to Markdown. Links are made
// absolute against baseURL.
func ToMarkdown(html, baseURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find(boilerplate).Remove()

	content := doc.Find("main, article, #content, .content").First()
	if content.Length() == 0 {
		content = doc.Find("body")
	}
	if content.Length() == 0 {
		content = doc.Selection
	}
	inner, err := goquery.OuterHtml(content)
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}

	domain := ""
	if u, err := url.Parse(baseURL); err == nil {
		domain = u.Host
	}
	converter := md.NewConverter(domain, true, nil)
	markdown, err := converter.ConvertString(inner)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML to markdown: %w", err)
	}
	return strings.TrimSpace(markdown) + "\n", nil
}

// StripHTML returns the visible text of html, one block per line.
func StripHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}
	doc.Find("script, style, noscript").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, pre, blockquote").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var lines []string
	for _, line := range strings.Split(root.Text(), "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n") + "\n", nil
}
