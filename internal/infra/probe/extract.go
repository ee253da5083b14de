package probe

import (
	"bytes"
	"net/url"
	"strings"

	"crawl-dashboard/internal/domain/entity"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
)

const maxDescription = 300

// extractFeed fills title, description and item count from an RSS, Atom or
// JSON feed. It reports false when the body is not a feed.
func extractFeed(body []byte, p *entity.Probe) bool {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return false
	}
	p.Title = clean(feed.Title)
	p.Description = truncate(clean(feed.Description))
	p.ItemCount = len(feed.Items)
	return true
}

// extractHTML reads the page title, meta description and advertised feed.
// When the page has no meta description, the readability excerpt is used.
func extractHTML(body []byte, base *url.URL, p *entity.Probe) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return
	}

	p.Title = clean(doc.Find("title").First().Text())
	if p.Title == "" {
		p.Title = clean(doc.Find(`meta[property="og:title"]`).AttrOr("content", ""))
	}
	p.Description = truncate(clean(doc.Find(`meta[name="description"]`).AttrOr("content", "")))
	if p.Description == "" {
		p.Description = truncate(clean(doc.Find(`meta[property="og:description"]`).AttrOr("content", "")))
	}

	doc.Find(`link[rel="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ := strings.ToLower(s.AttrOr("type", ""))
		if !strings.Contains(typ, "rss") && !strings.Contains(typ, "atom") {
			return true
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return true
		}
		if ref, err := url.Parse(href); err == nil {
			if base != nil {
				ref = base.ResolveReference(ref)
			}
			p.FeedURL = ref.String()
			return false
		}
		return true
	})

	if p.Description != "" && p.Title != "" {
		return
	}
	article, err := readability.FromReader(bytes.NewReader(body), base)
	if err != nil {
		return
	}
	if p.Title == "" {
		p.Title = clean(article.Title)
	}
	if p.Description == "" {
		p.Description = truncate(clean(article.Excerpt))
	}
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxDescription {
		return s
	}
	return strings.TrimSpace(string(r[:maxDescription-1])) + "…"
}
