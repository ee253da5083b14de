package source

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"crawl-dashboard/internal/domain/entity"
)

// maxFormMemory bounds the in-memory part of a multipart import upload.
const maxFormMemory = 1 << 20

// OptionsRequest is the body of the save-options command. Fields left out
// keep the source's current values.
type OptionsRequest struct {
	KeywordFilter entity.KeywordFilter `json:"keyword_filter"`
	Options       entity.RunOptions    `json:"options"`
}

// StartResponse is returned by the start command.
type StartResponse struct {
	SourceID string `json:"source_id"`
	RunID    string `json:"run_id,omitempty"`
}

// ImportFailureDTO describes one entry the backend refused.
type ImportFailureDTO struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Error string `json:"error"`
}

// ImportResponse summarizes a bulk import.
type ImportResponse struct {
	Created []entity.Source    `json:"created"`
	Failed  []ImportFailureDTO `json:"failed"`
}

// ProbeResponse carries a probe and the create form it suggests.
type ProbeResponse struct {
	Probe     entity.Probe         `json:"probe"`
	Suggested entity.CreateRequest `json:"suggested"`
}

func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

func parseForm(r *http.Request) error {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var err error
	if ct == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return &entity.ValidationError{Field: "body", Message: "invalid form: " + err.Error()}
	}
	return nil
}

// formValue returns the last value posted for key. Checkboxes are paired
// with a hidden "false" input, so the last value is the checkbox state.
func formValue(r *http.Request, key string) (string, bool) {
	vs := r.PostForm[key]
	if len(vs) == 0 {
		return "", false
	}
	return strings.TrimSpace(vs[len(vs)-1]), true
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &entity.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// decodeCreate reads a create request, filling anything left out with the
// create-form defaults.
func decodeCreate(r *http.Request) (entity.CreateRequest, error) {
	req := entity.NewCreateRequest("", "")
	if !isForm(r) {
		err := decodeJSON(r, &req)
		return req, err
	}
	if err := parseForm(r); err != nil {
		return req, err
	}
	for key, dst := range map[string]*string{
		"name":        &req.Name,
		"url":         &req.URL,
		"source_type": &req.SourceType,
		"description": &req.Description,
		"frequency":   &req.Frequency,
		"status":      &req.Status,
	} {
		if v, ok := formValue(r, key); ok {
			*dst = v
		}
	}
	if v, ok := formValue(r, "keyword_filter"); ok && v != "" {
		req.KeywordFilter = entity.KeywordFilter(v)
	}
	opts, err := runOptionsFromForm(r, req.Options)
	req.Options = opts
	return req, err
}

// decodeOptions reads a save-options request on top of the source's
// current filter and options.
func decodeOptions(r *http.Request, current entity.Source) (OptionsRequest, error) {
	req := OptionsRequest{
		KeywordFilter: current.KeywordFilter,
		Options:       current.Options.Run(),
	}
	if !isForm(r) {
		err := decodeJSON(r, &req)
		return req, err
	}
	if err := parseForm(r); err != nil {
		return req, err
	}
	if v, ok := formValue(r, "keyword_filter"); ok && v != "" {
		req.KeywordFilter = entity.KeywordFilter(v)
	}
	opts, err := runOptionsFromForm(r, req.Options)
	req.Options = opts
	return req, err
}

func runOptionsFromForm(r *http.Request, opts entity.RunOptions) (entity.RunOptions, error) {
	ints := []struct {
		key string
		dst *int
	}{
		{"max_hits", &opts.MaxHits},
		{"max_depth", &opts.MaxDepth},
		{"concurrency", &opts.Concurrency},
	}
	for _, f := range ints {
		v, ok := formValue(r, f.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &entity.ValidationError{Field: f.key, Message: "must be a whole number"}
		}
		*f.dst = n
	}

	if v, ok := formValue(r, "request_delay"); ok && v != "" {
		d, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, &entity.ValidationError{Field: "request_delay", Message: "must be a number"}
		}
		opts.RequestDelay = d
	}
	if v, ok := formValue(r, "user_agent"); ok {
		opts.UserAgent = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"respect_robots", &opts.RespectRobots},
		{"include_subdomains", &opts.IncludeSubdomains},
	}
	for _, f := range bools {
		v, ok := formValue(r, f.key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &entity.ValidationError{Field: f.key, Message: fmt.Sprintf("invalid boolean %q", v)}
		}
		*f.dst = b
	}
	return opts, nil
}
