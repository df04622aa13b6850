package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
)

// UserRepository keeps identity records as users/<id>.json.
type UserRepository struct {
	root string
	mu   *sync.Mutex
}

func (r *UserRepository) dir() string {
	return filepath.Join(r.root, "users")
}

func (r *UserRepository) GetByID(_ context.Context, id string) (*models.User, error) {
	if !validName(id) {
		return nil, persistence.NewUserError("GetByID", id, persistence.ErrUserNotFound)
	}

	var u models.User

	err := readJSON(filepath.Join(r.dir(), id+".json"), &u)
	if errors.Is(err, os.ErrNotExist) {
		return nil, persistence.NewUserError("GetByID", id, persistence.ErrUserNotFound)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", id, err)
	}

	return &u, nil
}

func (r *UserRepository) ListByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	files, err := jsonFiles(r.dir())
	if err != nil {
		return nil, err
	}

	out := make([]*models.User, 0)

	for _, f := range files {
		var u models.User
		if err := readJSON(f, &u); err != nil {
			return nil, err
		}

		if u.Role == role {
			out = append(out, &u)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (r *UserRepository) Save(_ context.Context, u *models.User) error {
	if !validName(u.ID) {
		return persistence.NewUserError("Save", u.ID, errors.New("invalid user id"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return writeJSON(filepath.Join(r.dir(), u.ID+".json"), u)
}
