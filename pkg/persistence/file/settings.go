package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// SettingsRepository reads the deadline settings document from settings/deadlines.json.
type SettingsRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *SettingsRepository) path() string {
	return filepath.Join(r.root, "settings", "deadlines.json")
}

func (r *SettingsRepository) DeadlineDays(_ context.Context) (map[string]int, error) {
	var days map[string]int

	err := readJSON(r.path(), &days)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return days, nil
}

func (r *SettingsRepository) SaveDeadlineDays(_ context.Context, days map[string]int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(r.path(), days)
}
