package entity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCreateRequest_Defaults(t *testing.T) {
	req := NewCreateRequest("CNN", "https://edition.cnn.com")

	assert.Equal(t, "html", req.SourceType)
	assert.Equal(t, FilterNone, req.KeywordFilter)
	assert.Equal(t, SourceActive, req.Status)
	assert.Equal(t, DefaultRunOptions(), req.Options)
	assert.NoError(t, req.Validate())
}

func TestCreateRequest_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"missing name", func(r *CreateRequest) { r.Name = "" }, "name"},
		{"blank name", func(r *CreateRequest) { r.Name = "   " }, "name"},
		{"missing url", func(r *CreateRequest) { r.URL = "" }, "url"},
		{"ftp url", func(r *CreateRequest) { r.URL = "ftp://example.com" }, "url"},
		{"url without host", func(r *CreateRequest) { r.URL = "https://" }, "url"},
		{"bad frequency", func(r *CreateRequest) { r.Frequency = "every day" }, "frequency"},
		{"bad status", func(r *CreateRequest) { r.Status = "paused" }, "status"},
		{"bad options", func(r *CreateRequest) { r.Options.MaxHits = 0 }, "max_hits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewCreateRequest("CNN", "https://edition.cnn.com")
			tt.mutate(&req)

			err := req.Validate()
			var vErr *ValidationError
			require.True(t, errors.As(err, &vErr), "got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestCreateRequest_ValidFrequency(t *testing.T) {
	req := NewCreateRequest("CNN", "https://edition.cnn.com")
	req.Frequency = "0 */6 * * *"
	assert.NoError(t, req.Validate())
}

func TestCreateRequest_Payload(t *testing.T) {
	req := NewCreateRequest(" CNN ", "https://edition.cnn.com")
	req.Description = "  world news  "
	req.KeywordFilter = FilterPolitics
	req.Options.MaxHits = 50

	p := req.Payload()

	assert.Equal(t, "CNN", p["name"])
	assert.Equal(t, "https://edition.cnn.com", p["url"])
	assert.Equal(t, "html", p["source_type"])
	assert.Equal(t, "world news", p["description"])
	assert.Equal(t, "politics", p["keyword_filter"])
	assert.Equal(t, "active", p["status"])
	assert.Equal(t, 50, p["max_hits"])
	assert.Equal(t, 2, p["max_depth"])
	assert.Equal(t, 3, p["concurrency"])
	assert.Equal(t, true, p["respect_robots"])
	assert.Equal(t, DefaultUserAgent, p["user_agent"])
	assert.Equal(t, true, p["include_subdomains"])
	assert.Equal(t, 0.0, p["request_delay"])
	assert.NotContains(t, p, "frequency")

	nested, ok := p["options"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 50, nested["max_hits"])
	assert.Equal(t, "politics", nested["keyword_filter"])
}

func TestCreateRequest_Payload_NullableFields(t *testing.T) {
	for _, st := range []string{"", "auto"} {
		req := NewCreateRequest("CNN", "https://edition.cnn.com")
		req.SourceType = st
		req.Description = "   "

		p := req.Payload()

		assert.Contains(t, p, "source_type")
		assert.Nil(t, p["source_type"], "source type %q should be sent as null", st)
		assert.Contains(t, p, "description")
		assert.Nil(t, p["description"])
	}
}

func TestCreateRequest_Payload_Inactive(t *testing.T) {
	req := NewCreateRequest("CNN", "https://edition.cnn.com")
	req.Status = SourceInactive
	req.Frequency = "30 5 * * *"

	p := req.Payload()
	assert.Equal(t, "inactive", p["status"])
	assert.Equal(t, "30 5 * * *", p["frequency"])
}

func TestProbe_Suggest(t *testing.T) {
	probe := Probe{Title: "Example News", Description: "Daily news", DetectedType: ContentRSS}

	req := probe.Suggest(CreateRequest{URL: "https://example.com/feed", SourceType: SourceTypeAuto})
	assert.Equal(t, "Example News", req.Name)
	assert.Equal(t, "Daily news", req.Description)
	assert.Equal(t, "rss", req.SourceType)

	kept := probe.Suggest(CreateRequest{Name: "Mine", SourceType: "html"})
	assert.Equal(t, "Mine", kept.Name)
	assert.Equal(t, "html", kept.SourceType)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "url", Message: "URL is required"}
	assert.Equal(t, "validation error on field 'url': URL is required", err.Error())
	assert.ErrorIs(t, err, ErrInvalidInput)
}
