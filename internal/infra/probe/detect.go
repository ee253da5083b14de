package probe

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"crawl-dashboard/internal/domain/entity"
)

// DetectType classifies a seed URL from its response content type and URL,
// using the same rules the backend applies when a source is created with
// an "auto" source type. The first matching rule wins:
//
//	pdf  application/pdf, or a .pdf path
//	xml  application/xml or text/xml
//	txt  text/plain, or a .txt path
//	rss  a content type mentioning rss or atom, or "feed" in the URL
//	html anything else
func DetectType(contentType string, u *url.URL) string {
	media := strings.ToLower(strings.TrimSpace(contentType))
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		media = parsed
	}

	var ext, full string
	if u != nil {
		ext = strings.ToLower(path.Ext(u.Path))
		full = strings.ToLower(u.String())
	}

	switch {
	case media == "application/pdf" || ext == ".pdf":
		return entity.ContentPDF
	case media == "application/xml" || media == "text/xml":
		return entity.ContentXML
	case media == "text/plain" || ext == ".txt":
		return entity.ContentTXT
	case strings.Contains(media, "rss") || strings.Contains(media, "atom") || strings.Contains(full, "feed"):
		return entity.ContentRSS
	default:
		return entity.ContentHTML
	}
}
