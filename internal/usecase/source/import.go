package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"crawl-dashboard/internal/domain/entity"
	"crawl-dashboard/internal/observability/metrics"

	"gopkg.in/yaml.v3"
)

// ImportFailure records one entry the backend refused.
type ImportFailure struct {
	Index int
	Name  string
	Err   error
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Created []entity.Source
	Failed  []ImportFailure
}

// ParseImport reads create requests from a YAML (or JSON) document.
//
// The document is either a list of sources or a mapping with a "sources"
// list. Fields an entry leaves out take the create-form defaults.
//
//	sources:
//	  - name: Example
//	    url: https://example.com
//	    keyword_filter: include_only
//	    options:
//	      max_hits: 200
func ParseImport(r io.Reader) ([]entity.CreateRequest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrImportEmpty
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse import: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrImportEmpty
	}

	list := doc.Content[0]
	if list.Kind == yaml.MappingNode {
		list = mappingValue(list, "sources")
		if list == nil {
			return nil, ErrImportFormat
		}
	}
	if list.Kind != yaml.SequenceNode {
		return nil, ErrImportFormat
	}
	if len(list.Content) == 0 {
		return nil, ErrImportEmpty
	}

	reqs := make([]entity.CreateRequest, 0, len(list.Content))
	for i, item := range list.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("entry %d (line %d): %w", i+1, item.Line, ErrImportFormat)
		}
		req := entity.NewCreateRequest("", "")
		if err := item.Decode(&req); err != nil {
			return nil, fmt.Errorf("entry %d (line %d): %w", i+1, item.Line, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// Import validates every request and then creates them one by one.
//
// Nothing is sent when any entry fails validation. Backend failures do not
// stop the import; they are reported in the result. One refresh is requested
// at the end if anything was created.
func (s *Service) Import(ctx context.Context, reqs []entity.CreateRequest) (ImportResult, error) {
	if len(reqs) == 0 {
		return ImportResult{}, ErrImportEmpty
	}

	var invalid []error
	for i, req := range reqs {
		if err := req.Validate(); err != nil {
			invalid = append(invalid, fmt.Errorf("entry %d: %w", i+1, err))
		}
	}
	if len(invalid) > 0 {
		return ImportResult{}, errors.Join(invalid...)
	}

	var res ImportResult
	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		created, err := s.Backend.CreateSource(ctx, req)
		metrics.RecordCommand("import", err)
		if err != nil {
			s.logger().Warn("import entry failed",
				slog.Int("index", i+1),
				slog.String("name", req.Name),
				slog.Any("error", err))
			res.Failed = append(res.Failed, ImportFailure{Index: i + 1, Name: req.Name, Err: err})
			continue
		}
		res.Created = append(res.Created, created)
	}

	s.logger().Info("import finished",
		slog.Int("created", len(res.Created)),
		slog.Int("failed", len(res.Failed)))
	if len(res.Created) > 0 {
		s.refresh(false)
	}
	return res, nil
}
