package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/simaogato/fundfolio-backend/internal/domain"
)

// subjectRepository implements domain.SubjectRepository
type subjectRepository struct {
	db *DB
}

// NewSubjectRepository creates a new subject repository
func NewSubjectRepository(db *DB) domain.SubjectRepository {
	return &subjectRepository{db: db}
}

const userColumns = `id, name, email, family_id, created_at`

// GetUser retrieves a user by ID
func (r *subjectRepository) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers retrieves every user
func (r *subjectRepository) ListUsers(ctx context.Context) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC`
	return r.listUsers(ctx, query)
}

// GetFamily retrieves a family by ID
func (r *subjectRepository) GetFamily(ctx context.Context, id uuid.UUID) (*domain.Family, error) {
	query := `SELECT id, name FROM families WHERE id = $1`

	var family domain.Family
	err := r.db.QueryRowContext(ctx, query, id).Scan(&family.ID, &family.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("family %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get family: %w", err)
	}
	return &family, nil
}

// ListFamilies retrieves every family
func (r *subjectRepository) ListFamilies(ctx context.Context) ([]*domain.Family, error) {
	query := `SELECT id, name FROM families ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query families: %w", err)
	}
	defer rows.Close()

	families := []*domain.Family{}
	for rows.Next() {
		var family domain.Family
		if err := rows.Scan(&family.ID, &family.Name); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, &family)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating families: %w", err)
	}

	return families, nil
}

// ListFamilyMembers retrieves the users that belong to a family
func (r *subjectRepository) ListFamilyMembers(ctx context.Context, familyID uuid.UUID) ([]*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE family_id = $1 ORDER BY created_at ASC, id ASC`
	return r.listUsers(ctx, query, familyID)
}

func (r *subjectRepository) listUsers(ctx context.Context, query string, args ...interface{}) ([]*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var familyID uuid.NullUUID

	if err := row.Scan(&user.ID, &user.Name, &user.Email, &familyID, &user.CreatedAt); err != nil {
		return nil, err
	}
	if familyID.Valid {
		id := familyID.UUID
		user.FamilyID = &id
	}

	return &user, nil
}
