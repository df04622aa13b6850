// Package settings loads the status→days deadline document.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/folio/pkg/deadline"
	"github.com/dukex/folio/pkg/persistence"
	"github.com/xeipuuv/gojsonschema"
)

var ErrInvalidDocument = errors.New("invalid deadline settings document")

// deadlineSchema accepts keys written as status names or window kinds.
const deadlineSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "integer",
    "minimum": 1,
    "maximum": 365
  }
}`

// Provider resolves the deadline windows currently in force.
type Provider interface {
	Windows(ctx context.Context) (deadline.Windows, error)
}

// Validate checks a raw settings document against the schema.
func Validate(raw []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(deadlineSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}

	return nil
}

// Parse validates and decodes a settings document.
func Parse(raw []byte) (map[string]int, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}

	var days map[string]int
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return days, nil
}

// Static always returns the same windows.
type Static deadline.Windows

func (s Static) Windows(context.Context) (deadline.Windows, error) {
	return deadline.Resolve(toSettings(deadline.Windows(s))), nil
}

func toSettings(w deadline.Windows) map[string]int {
	out := make(map[string]int, len(w))
	for kind, days := range w {
		out[string(kind)] = days
	}

	return out
}

// FileProvider reads a JSON document from disk on every call so edits apply
// without a restart. A missing file means defaults.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Windows(_ context.Context) (deadline.Windows, error) {
	if p.path == "" {
		return deadline.DefaultWindows(), nil
	}

	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return deadline.DefaultWindows(), nil
		}

		return nil, err
	}

	days, err := Parse(raw)
	if err != nil {
		return nil, err
	}

	return deadline.Resolve(days), nil
}

// RepositoryProvider reads the document stored through persistence.
type RepositoryProvider struct {
	repo persistence.SettingsRepository
}

func NewRepositoryProvider(repo persistence.SettingsRepository) *RepositoryProvider {
	return &RepositoryProvider{repo: repo}
}

func (p *RepositoryProvider) Windows(ctx context.Context) (deadline.Windows, error) {
	days, err := p.repo.DeadlineDays(ctx)
	if err != nil {
		return nil, err
	}

	return deadline.Resolve(days), nil
}

// Save validates days before storing them.
func (p *RepositoryProvider) Save(ctx context.Context, days map[string]int) error {
	raw, err := json.Marshal(days)
	if err != nil {
		return err
	}

	if err := Validate(raw); err != nil {
		return err
	}

	return p.repo.SaveDeadlineDays(ctx, days)
}
