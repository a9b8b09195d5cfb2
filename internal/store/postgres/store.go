package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MinWook6457/Re-cord/internal/models"
	"github.com/MinWook6457/Re-cord/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

const uniqueViolation = "23505"

type Store struct {
	pool       *pgxpool.Pool
	bcryptCost int
}

type Options struct {
	BcryptCost int
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	cost := options.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Store{pool: pool, bcryptCost: cost}
}

func (s *Store) Register(ctx context.Context, input store.RegisterInput) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.bcryptCost)
	if err != nil {
		return models.User{}, err
	}

	var user models.User
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, email, password_hash, name, created_at)
		VALUES ($1, lower($2), $3, $4, NOW())
		RETURNING user_id, email, name, created_at
	`, uuid.NewString(), strings.TrimSpace(input.Email), string(hash), input.Name)
	if err := row.Scan(&user.UserID, &user.Email, &user.Name, &user.Created); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return models.User{}, store.ErrDuplicateEmail
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) Login(ctx context.Context, email, password string) (models.User, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, email, name, password_hash, created_at
		FROM users
		WHERE email = lower($1)
	`, strings.TrimSpace(email))
	if err := row.Scan(&user.UserID, &user.Email, &user.Name, &passwordHash, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return models.User{}, store.ErrInvalidCredentials
	}
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, email, name, created_at
		FROM users
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&user.UserID, &user.Email, &user.Name, &user.Created); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) ListRetrospectives(ctx context.Context, userID string, filter store.ListFilter) ([]models.Retrospective, error) {
	query := `
		SELECT id, user_id, entry_date, title, category, content, tags, created_at, updated_at
		FROM retrospectives
		WHERE user_id = $1
	`
	args := []interface{}{userID}
	if filter.Category != "" {
		query += ` AND category = $2`
		args = append(args, filter.Category)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.Retrospective{}
	for rows.Next() {
		entry, err := scanRetrospectiveRow(rows)
		if err != nil {
			return nil, err
		}
		if filter.Tag != "" && !containsTag(entry.Tags, filter.Tag) {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) GetRetrospective(ctx context.Context, userID, id string) (models.Retrospective, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, entry_date, title, category, content, tags, created_at, updated_at
		FROM retrospectives
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	entry, err := scanRetrospectiveRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Retrospective{}, store.ErrNotFound
		}
		return models.Retrospective{}, err
	}
	return entry, nil
}

func (s *Store) CreateRetrospective(ctx context.Context, userID string, input store.RetrospectiveInput) (models.Retrospective, error) {
	tags, err := encodeTags(input.Tags)
	if err != nil {
		return models.Retrospective{}, err
	}

	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO retrospectives (id, user_id, entry_date, title, category, content, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id, user_id, entry_date, title, category, content, tags, created_at, updated_at
	`, uuid.NewString(), userID, input.Date, input.Title, input.Category, input.Content, tags, now)
	return scanRetrospectiveRow(row)
}

func (s *Store) UpdateRetrospective(ctx context.Context, userID, id string, input store.RetrospectiveInput) (models.Retrospective, error) {
	tags, err := encodeTags(input.Tags)
	if err != nil {
		return models.Retrospective{}, err
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE retrospectives
		SET entry_date = $1, title = $2, category = $3, content = $4, tags = $5, updated_at = $6
		WHERE id = $7 AND user_id = $8
		RETURNING id, user_id, entry_date, title, category, content, tags, created_at, updated_at
	`, input.Date, input.Title, input.Category, input.Content, tags, time.Now().UTC(), id, userID)
	entry, err := scanRetrospectiveRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Retrospective{}, store.ErrNotFound
		}
		return models.Retrospective{}, err
	}
	return entry, nil
}

func (s *Store) DeleteRetrospective(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM retrospectives
		WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetStats(ctx context.Context, userID string) (store.Stats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT category, COUNT(*), MAX(updated_at)
		FROM retrospectives
		WHERE user_id = $1
		GROUP BY category
	`, userID)
	if err != nil {
		return store.Stats{}, err
	}
	defer rows.Close()

	stats := store.Stats{ByCategory: map[string]int{}}
	for _, category := range models.Categories() {
		stats.ByCategory[category] = 0
	}
	for rows.Next() {
		var category string
		var count int
		var updated time.Time
		if err := rows.Scan(&category, &count, &updated); err != nil {
			return store.Stats{}, err
		}
		stats.ByCategory[category] = count
		stats.Total += count
		if stats.LastUpdated == nil || updated.After(*stats.LastUpdated) {
			u := updated
			stats.LastUpdated = &u
		}
	}
	if err := rows.Err(); err != nil {
		return store.Stats{}, err
	}
	return stats, nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRetrospectiveRow(row scannable) (models.Retrospective, error) {
	var entry models.Retrospective
	var rawTags string
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Date, &entry.Title, &entry.Category, &entry.Content, &rawTags, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return models.Retrospective{}, err
	}
	tags, err := decodeTags(rawTags)
	if err != nil {
		return models.Retrospective{}, err
	}
	entry.Tags = tags
	return entry, nil
}

func containsTag(tags []string, tag string) bool {
	for _, item := range tags {
		if item == tag {
			return true
		}
	}
	return false
}
