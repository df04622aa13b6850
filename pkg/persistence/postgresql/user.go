package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/folio/pkg/models"
	"github.com/dukex/folio/pkg/persistence"
)

// UserRepository reads the identity collaborator's user records.
type UserRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewUserRepository(db *sql.DB, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var (
		u           models.User
		role        string
		email, name sql.NullString
	)

	err := r.db.QueryRowContext(ctx, "SELECT id, role, email, display_name FROM users WHERE id = $1", id).
		Scan(&u.ID, &role, &email, &name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewUserError("GetByID", id, persistence.ErrUserNotFound)
		}

		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = models.Role(role)
	u.Email = email.String
	u.DisplayName = name.String

	return &u, nil
}

func (r *UserRepository) ListByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, role, email, display_name FROM users WHERE role = $1 ORDER BY id", string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	out := make([]*models.User, 0)

	for rows.Next() {
		var (
			u           models.User
			roleValue   string
			email, name sql.NullString
		)

		if err := rows.Scan(&u.ID, &roleValue, &email, &name); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		u.Role = models.Role(roleValue)
		u.Email = email.String
		u.DisplayName = name.String
		out = append(out, &u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return out, nil
}

func (r *UserRepository) Save(ctx context.Context, u *models.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, role, email, display_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name
	`, u.ID, string(u.Role), u.Email, u.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", u.ID, err)
	}

	return nil
}
