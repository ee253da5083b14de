package entity

import (
	"strings"

	"github.com/robfig/cron/v3"
)

// SourceTypeAuto asks the backend to detect the source type on first crawl.
const SourceTypeAuto = "auto"

// Source enablement flags sent on create.
const (
	SourceActive   = "active"
	SourceInactive = "inactive"
)

// CreateRequest holds the fields of the create-source form.
type CreateRequest struct {
	Name        string `json:"name" yaml:"name"`
	URL         string `json:"url" yaml:"url"`
	SourceType  string `json:"source_type" yaml:"source_type"`
	Description string `json:"description" yaml:"description"`
	// Frequency is an optional 5-field cron expression stored by the backend.
	Frequency     string        `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	KeywordFilter KeywordFilter `json:"keyword_filter" yaml:"keyword_filter"`
	Status        string        `json:"status" yaml:"status"`
	Options       RunOptions    `json:"options" yaml:"options"`
}

// NewCreateRequest returns a request pre-filled with the form defaults.
func NewCreateRequest(name, url string) CreateRequest {
	return CreateRequest{
		Name:          name,
		URL:           url,
		SourceType:    "html",
		KeywordFilter: FilterNone,
		Status:        SourceActive,
		Options:       DefaultRunOptions(),
	}
}

var frequencyParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the request before anything is sent to the backend.
// Name and url are required; everything else has a usable default.
func (r CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if strings.TrimSpace(r.URL) == "" {
		return &ValidationError{Field: "url", Message: "is required"}
	}
	if err := ValidateURL(strings.TrimSpace(r.URL)); err != nil {
		return err
	}
	if r.Frequency != "" {
		if _, err := frequencyParser.Parse(r.Frequency); err != nil {
			return &ValidationError{Field: "frequency", Message: "invalid cron expression: " + err.Error()}
		}
	}
	switch r.Status {
	case "", SourceActive, SourceInactive:
	default:
		return &ValidationError{Field: "status", Message: "must be active or inactive"}
	}
	return r.Options.Validate()
}

// Payload builds the create-source request body.
// An empty or "auto" source type is sent as null, a blank description as null,
// and the tunables are duplicated under a nested "options" object.
func (r CreateRequest) Payload() map[string]any {
	filter := r.KeywordFilter
	if filter == "" {
		filter = FilterNone
	}
	status := r.Status
	if status == "" {
		status = SourceActive
	}

	var sourceType any
	if st := strings.TrimSpace(r.SourceType); st != "" && st != SourceTypeAuto {
		sourceType = st
	}
	var description any
	if d := strings.TrimSpace(r.Description); d != "" {
		description = d
	}

	nested := r.Options.Map()
	nested["keyword_filter"] = string(filter)

	payload := r.Options.Map()
	payload["name"] = strings.TrimSpace(r.Name)
	payload["url"] = strings.TrimSpace(r.URL)
	payload["source_type"] = sourceType
	payload["description"] = description
	payload["keyword_filter"] = string(filter)
	payload["status"] = status
	payload["options"] = nested
	if r.Frequency != "" {
		payload["frequency"] = r.Frequency
	}
	return payload
}
