// Package post persists saved posts.
package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SavedPost is one row of the saved_posts table.
type SavedPost struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Channel   string    `db:"channel"`
	MessageID int64     `db:"message_id"`
	Link      string    `db:"link"`
	Content   string    `db:"content"`
	Private   bool      `db:"private"`
	FetchID   string    `db:"fetch_id"`
	SavedAt   time.Time `db:"saved_at"`
}

// Repository stores and queries saved posts for users.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an open database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Save inserts a saved post and returns its id.
func (r *Repository) Save(ctx context.Context, p SavedPost) (int64, error) {
	const q = `
		INSERT INTO saved_posts (user_id, channel, message_id, link, content, private, fetch_id, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	var id int64
	err := r.db.QueryRowxContext(ctx, q,
		p.UserID, p.Channel, p.MessageID, p.Link, p.Content, p.Private, p.FetchID, p.SavedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert saved post: %w", err)
	}
	return id, nil
}

// ListRecent returns the user's newest posts, most recent first.
func (r *Repository) ListRecent(ctx context.Context, userID int64, limit int) ([]SavedPost, error) {
	const q = `
		SELECT id, user_id, channel, message_id, link, content, private, fetch_id, saved_at
		FROM saved_posts
		WHERE user_id = $1
		ORDER BY saved_at DESC, id DESC
		LIMIT $2`
	var posts []SavedPost
	if err := r.db.SelectContext(ctx, &posts, q, userID, limit); err != nil {
		return nil, fmt.Errorf("list saved posts: %w", err)
	}
	return posts, nil
}

// CountTotal reports how many posts the user has saved overall.
func (r *Repository) CountTotal(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM saved_posts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("count saved posts: %w", err)
	}
	return n, nil
}

// CountSince reports how many posts the user saved at or after the cutoff.
func (r *Repository) CountSince(ctx context.Context, userID int64, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM saved_posts WHERE user_id = $1 AND saved_at >= $2`, userID, cutoff)
	if err != nil {
		return 0, fmt.Errorf("count saved posts since: %w", err)
	}
	return n, nil
}

// FirstSavedAt reports when the user saved their first post. Returns a
// zero time when nothing is saved yet.
func (r *Repository) FirstSavedAt(ctx context.Context, userID int64) (time.Time, error) {
	var first time.Time
	err := r.db.GetContext(ctx, &first,
		`SELECT MIN(saved_at) FROM saved_posts WHERE user_id = $1 HAVING MIN(saved_at) IS NOT NULL`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("first saved at: %w", err)
	}
	return first, nil
}

// Delete removes one of the user's posts. The user id is part of the
// predicate so one user cannot delete another's rows.
func (r *Repository) Delete(ctx context.Context, userID, postID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM saved_posts WHERE id = $1 AND user_id = $2`, postID, userID)
	if err != nil {
		return false, fmt.Errorf("delete saved post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete saved post: %w", err)
	}
	return n > 0, nil
}

// Clear removes all of the user's posts and reports how many were removed.
func (r *Repository) Clear(ctx context.Context, userID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_posts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear saved posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear saved posts: %w", err)
	}
	return n, nil
}
