package entity

// Content types the backend distinguishes when it auto-detects a source.
const (
	ContentHTML = "html"
	ContentRSS  = "rss"
	ContentXML  = "xml"
	ContentPDF  = "pdf"
	ContentTXT  = "txt"
)

// Probe is a preview of what the backend will find at a seed URL.
// It is used to suggest a name, description and source type before creating a source.
type Probe struct {
	URL          string `json:"url" yaml:"url"`
	FinalURL     string `json:"final_url" yaml:"final_url"`
	ContentType  string `json:"content_type" yaml:"content_type"`
	DetectedType string `json:"detected_type" yaml:"detected_type"`
	Title        string `json:"title,omitempty" yaml:"title,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	// FeedURL is an alternate feed advertised by an HTML page.
	FeedURL   string `json:"feed_url,omitempty" yaml:"feed_url,omitempty"`
	ItemCount int    `json:"item_count,omitempty" yaml:"item_count,omitempty"`
}

// Suggest fills empty name, description and source type fields of req from the probe.
func (p Probe) Suggest(req CreateRequest) CreateRequest {
	if req.Name == "" {
		req.Name = p.Title
	}
	if req.Description == "" {
		req.Description = p.Description
	}
	if req.SourceType == "" || req.SourceType == SourceTypeAuto {
		req.SourceType = p.DetectedType
	}
	return req
}
