// Package file provides a file-based persistence implementation intended for
// development and tests. All writes in one process are serialized by a
// shared lock and land through an atomic rename.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/folio/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root             string
	mu               *sync.Mutex
	manuscriptRepo   *ManuscriptRepository
	notificationRepo *NotificationRepository
	userRepo         *UserRepository
	settingsRepo     *SettingsRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)
	mu := &sync.Mutex{}

	return &Persistence{
		root:             cleanRoot,
		mu:               mu,
		manuscriptRepo:   &ManuscriptRepository{root: cleanRoot, mu: mu},
		notificationRepo: &NotificationRepository{root: cleanRoot, mu: mu},
		userRepo:         &UserRepository{root: cleanRoot, mu: mu},
		settingsRepo:     &SettingsRepository{root: cleanRoot, mu: mu},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) ManuscriptRepository() persistence.ManuscriptRepository {
	return fp.manuscriptRepo
}

// OutboxRepository shares storage with the manuscripts because pending
// events are kept inside the manuscript's own file.
func (fp *Persistence) OutboxRepository() persistence.OutboxRepository {
	return fp.manuscriptRepo
}

func (fp *Persistence) NotificationRepository() persistence.NotificationRepository {
	return fp.notificationRepo
}

func (fp *Persistence) UserRepository() persistence.UserRepository {
	return fp.userRepo
}

func (fp *Persistence) SettingsRepository() persistence.SettingsRepository {
	return fp.settingsRepo
}

// validName rejects identifiers that would escape their directory.
func validName(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

func readJSON(path string, v any) error {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return nil
}

// writeJSON replaces path atomically through a temp file in the same directory.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()

		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

// jsonFiles lists the *.json files of dir, ignoring a missing directory.
func jsonFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	return matches, nil
}
