package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/comments/domain"
)

type CommentRepository struct {
	db *sql.DB
}

func NewCommentRepository(db *sql.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

const selectComment = `
	SELECT c.id, c.project_id, c.user_id, c.parent_id, c.content,
	       coalesce(u.display_name, u.email, ''), c.created_at, c.updated_at
	FROM comments c
	LEFT JOIN users u ON u.id = c.user_id
`

// ListTopLevel returns the project's top-level comments, newest first.
func (r *CommentRepository) ListTopLevel(ctx context.Context, projectID string) ([]domain.Comment, error) {
	if !isUUID(projectID) {
		return []domain.Comment{}, nil
	}
	return r.query(ctx, selectComment+`
	WHERE c.project_id = $1 AND c.parent_id IS NULL
	ORDER BY c.created_at DESC, c.id
	`, projectID)
}

// ListReplies returns every reply in the project, oldest first.
func (r *CommentRepository) ListReplies(ctx context.Context, projectID string) ([]domain.Comment, error) {
	if !isUUID(projectID) {
		return []domain.Comment{}, nil
	}
	return r.query(ctx, selectComment+`
	WHERE c.project_id = $1 AND c.parent_id IS NOT NULL
	ORDER BY c.created_at ASC, c.id
	`, projectID)
}

func (r *CommentRepository) Get(ctx context.Context, id string) (domain.Comment, error) {
	if !isUUID(id) {
		return domain.Comment{}, apperr.ErrNotFound
	}
	c, err := scanComment(r.db.QueryRowContext(ctx, selectComment+`WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Comment{}, apperr.ErrNotFound
	}
	return c, err
}

// Insert stores a comment. For replies the project is taken from the parent,
// which must exist and be top level.
func (r *CommentRepository) Insert(ctx context.Context, nc domain.NewComment) (domain.Comment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Comment{}, err
	}
	defer tx.Rollback()

	if nc.ParentID != nil {
		if !isUUID(*nc.ParentID) {
			return domain.Comment{}, apperr.ErrNotFound
		}
		var grandparent sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT project_id, parent_id FROM comments WHERE id = $1`, *nc.ParentID,
		).Scan(&nc.ProjectID, &grandparent)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Comment{}, apperr.ErrNotFound
		}
		if err != nil {
			return domain.Comment{}, err
		}
		if grandparent.Valid {
			return domain.Comment{}, fmt.Errorf("%w: replies can only be added to top-level comments", apperr.ErrInvalidInput)
		}
	}

	c := domain.Comment{
		ID:        uuid.NewString(),
		ProjectID: nc.ProjectID,
		AuthorID:  nc.AuthorID,
		ParentID:  nc.ParentID,
		Content:   nc.Content,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO comments (id, project_id, user_id, parent_id, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, c.ID, c.ProjectID, c.AuthorID, nc.ParentID, c.Content).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Comment{}, apperr.FromPg(err)
	}

	var name sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT coalesce(display_name, email, '') FROM users WHERE id = $1`, c.AuthorID,
	).Scan(&name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.Comment{}, err
	}
	c.AuthorName = name.String

	if err := tx.Commit(); err != nil {
		return domain.Comment{}, err
	}
	if c.ParentID == nil {
		c.Replies = []domain.Comment{}
	}
	return c, nil
}

// Update rewrites the content of a comment owned by authorID.
func (r *CommentRepository) Update(ctx context.Context, id, authorID, content string) (time.Time, error) {
	if !isUUID(id) {
		return time.Time{}, apperr.ErrNotFound
	}
	var updatedAt time.Time
	err := r.db.QueryRowContext(ctx, `
		UPDATE comments
		SET content = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`, id, authorID, content).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, apperr.ErrNotFound
	}
	if err != nil {
		return time.Time{}, apperr.FromPg(err)
	}
	return updatedAt, nil
}

// Delete removes a comment owned by authorID. Under DeleteCascade its
// replies go in the same transaction; otherwise the foreign key nulls their
// parent_id and they surface as top-level comments.
func (r *CommentRepository) Delete(ctx context.Context, id, authorID string, policy domain.DeletePolicy) error {
	if !isUUID(id) {
		return apperr.ErrNotFound
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if policy == domain.DeleteCascade {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM comments
			WHERE parent_id = $1
			  AND EXISTS (SELECT 1 FROM comments p WHERE p.id = $1 AND p.user_id = $2)
		`, id, authorID)
		if err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id = $1 AND user_id = $2`, id, authorID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrNotFound
	}
	return tx.Commit()
}

func (r *CommentRepository) query(ctx context.Context, q string, args ...any) ([]domain.Comment, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(s scanner) (domain.Comment, error) {
	var c domain.Comment
	var parentID sql.NullString
	if err := s.Scan(
		&c.ID,
		&c.ProjectID,
		&c.AuthorID,
		&parentID,
		&c.Content,
		&c.AuthorName,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return domain.Comment{}, err
	}
	if parentID.Valid {
		c.ParentID = &parentID.String
	}
	return c, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
