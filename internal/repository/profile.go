package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lumina/internal/models"

	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, username, full_name, avatar_url, cover_photo_url, bio, work, location, website, mobile`

// ProfileRepository handles database operations for profiles
type ProfileRepository struct {
	db DBTX
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Create inserts a profile row for a freshly registered auth user
func (r *ProfileRepository) Create(ctx context.Context, p *models.Identity) error {
	query := `
		INSERT INTO profiles (id, username, full_name, mobile, avatar_url)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Exec(ctx, query, p.ID, p.Username, p.FullName, p.Mobile, p.Avatar)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Identity, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("profile not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// Update applies the non-nil fields of the update to a profile
func (r *ProfileRepository) Update(ctx context.Context, id string, u models.ProfileUpdate) error {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)
	add := func(column string, v *string) {
		if v == nil {
			return
		}
		args = append(args, *v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("full_name", u.FullName)
	add("bio", u.Bio)
	add("avatar_url", u.Avatar)
	add("cover_photo_url", u.CoverPhoto)
	add("work", u.Work)
	add("location", u.Location)
	add("website", u.Website)
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE profiles SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("profile not found: %w", ErrNotFound)
	}
	return nil
}

// ListByIDs retrieves the profiles for the given IDs in no particular order
func (r *ProfileRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Identity, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id::text = ANY($1)`
	return r.list(ctx, query, ids)
}

// ListExcept retrieves up to limit profiles other than the given one
func (r *ProfileRepository) ListExcept(ctx context.Context, excludeID string, limit int) ([]models.Identity, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id <> $1 ORDER BY created_at DESC LIMIT $2`
	return r.list(ctx, query, excludeID, limit)
}

// Search matches username or full name case-insensitively, excluding one profile
func (r *ProfileRepository) Search(ctx context.Context, term, excludeID string, limit int) ([]models.Identity, error) {
	query := `
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE (username ILIKE $1 OR full_name ILIKE $1) AND id <> $2
		ORDER BY username
		LIMIT $3
	`
	return r.list(ctx, query, "%"+term+"%", excludeID, limit)
}

func (r *ProfileRepository) list(ctx context.Context, query string, args ...any) ([]models.Identity, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []models.Identity
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

func scanProfile(row pgx.Row) (*models.Identity, error) {
	var p models.Identity
	var avatar, cover, bio, work, location, website, mobile *string
	err := row.Scan(
		&p.ID, &p.Username, &p.FullName, &avatar, &cover,
		&bio, &work, &location, &website, &mobile,
	)
	if err != nil {
		return nil, err
	}
	p.Avatar = deref(avatar)
	p.CoverPhoto = deref(cover)
	p.Bio = deref(bio)
	p.Work = deref(work)
	p.Location = deref(location)
	p.Website = deref(website)
	p.Mobile = deref(mobile)
	return &p, nil
}
