package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ShipLog-Showcase/showcase-backend/internal/apperr"
	"github.com/ShipLog-Showcase/showcase-backend/internal/projects/domain"
)

// ProjectRepository is the Postgres gateway for projects and votes.
type ProjectRepository struct {
	db *pgxpool.Pool
}

func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `
p.id::text, p.user_id::text, p.title, p.description, p.url, p.thumbnail_url,
coalesce(p.media_urls, '{}'), p.vote_count, coalesce(u.display_name, u.email, ''),
p.created_at, p.updated_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Title, &p.Description, &p.URL, &p.ThumbnailURL,
		&p.MediaURLs, &p.VoteCount, &p.OwnerName, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func collectProjects(rows pgx.Rows) ([]domain.Project, error) {
	defer rows.Close()

	out := make([]domain.Project, 0, 32)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListProjects returns every project, most voted first. Equal counts are
// ordered newest first.
func (r *ProjectRepository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	q := `
select` + projectColumns + `
from projects p
left join users u on u.id = p.user_id
order by p.vote_count desc, p.created_at desc;
`
	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

func (r *ProjectRepository) GetProject(ctx context.Context, projectID string) (*domain.Project, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, apperr.ErrNotFound
	}

	q := `
select` + projectColumns + `
from projects p
left join users u on u.id = p.user_id
where p.id = $1::uuid;
`
	p, err := scanProject(r.db.QueryRow(ctx, q, projectID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByOwner returns the owner's projects, newest first.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Project, error) {
	q := `
select` + projectColumns + `
from projects p
left join users u on u.id = p.user_id
where p.user_id = $1::uuid
order by p.created_at desc;
`
	rows, err := r.db.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// ListVotedBy returns the projects a user has voted for, most recent vote first.
func (r *ProjectRepository) ListVotedBy(ctx context.Context, userID string) ([]domain.Project, error) {
	q := `
select` + projectColumns + `
from votes v
join projects p on p.id = v.project_id
left join users u on u.id = p.user_id
where v.user_id = $1::uuid
order by v.created_at desc;
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	return collectProjects(rows)
}

// VotedProjectIDs projects the user's vote rows down to project ids.
func (r *ProjectRepository) VotedProjectIDs(ctx context.Context, userID string) ([]string, error) {
	const q = `select project_id::text from votes where user_id = $1::uuid;`

	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0, 16)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertVote records a vote and bumps the denormalized count in one
// transaction, returning the count after the bump. A second vote for the
// same pair fails with ErrUniqueViolation.
func (r *ProjectRepository) InsertVote(ctx context.Context, userID, projectID string) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var ownerID string
		err := tx.QueryRow(ctx, `select user_id::text from projects where id = $1::uuid for share;`, projectID).Scan(&ownerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrNotFound
		}
		if err != nil {
			return err
		}
		if ownerID == userID {
			return apperr.ErrSelfVoteForbidden
		}

		const ins = `
insert into votes (id, user_id, project_id)
values ($1::uuid, $2::uuid, $3::uuid);
`
		if _, err := tx.Exec(ctx, ins, uuid.NewString(), userID, projectID); err != nil {
			return apperr.FromPg(err)
		}

		return tx.QueryRow(ctx,
			`update projects set vote_count = vote_count + 1 where id = $1::uuid returning vote_count;`, projectID,
		).Scan(&count)
	})
	return count, err
}

// DeleteVote removes the user's vote and returns the stored count.
// Deleting a vote that does not exist is not an error.
func (r *ProjectRepository) DeleteVote(ctx context.Context, userID, projectID string) (int, error) {
	var count int
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `delete from votes where user_id = $1::uuid and project_id = $2::uuid;`, userID, projectID)
		if err != nil {
			return err
		}

		q := `update projects set vote_count = greatest(vote_count - 1, 0) where id = $1::uuid returning vote_count;`
		if ct.RowsAffected() == 0 {
			q = `select vote_count from projects where id = $1::uuid;`
		}
		err = tx.QueryRow(ctx, q, projectID).Scan(&count)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.ErrNotFound
		}
		return err
	})
	return count, err
}

func (r *ProjectRepository) CreateProject(ctx context.Context, np domain.NewProject) (*domain.Project, error) {
	const q = `
insert into projects (id, user_id, title, description, url, thumbnail_url, media_urls)
values ($1::uuid, $2::uuid, $3, $4, $5, $6, $7)
returning id::text;
`
	var id string
	err := r.db.QueryRow(ctx, q, uuid.NewString(), np.OwnerID, np.Title, np.Description, np.URL, np.ThumbnailURL, np.MediaURLs).
		Scan(&id)
	if err != nil {
		return nil, apperr.FromPg(err)
	}
	return r.GetProject(ctx, id)
}

// UpdateProject patches the project only when ownerID owns it.
func (r *ProjectRepository) UpdateProject(ctx context.Context, projectID, ownerID string, patch domain.ProjectPatch) (*domain.Project, error) {
	const q = `
update projects
set title = coalesce($3, title),
    description = coalesce($4, description),
    updated_at = now()
where id = $1::uuid and user_id = $2::uuid
returning id::text;
`
	var id string
	err := r.db.QueryRow(ctx, q, projectID, ownerID, patch.Title, patch.Description).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.FromPg(err)
	}
	return r.GetProject(ctx, id)
}

func (r *ProjectRepository) SetThumbnail(ctx context.Context, projectID, ownerID, thumbnailURL string) error {
	const q = `
update projects
set thumbnail_url = $3, updated_at = now()
where id = $1::uuid and user_id = $2::uuid;
`
	ct, err := r.db.Exec(ctx, q, projectID, ownerID, thumbnailURL)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteProject removes the owner's project. Votes and comments go with it
// through the foreign keys.
func (r *ProjectRepository) DeleteProject(ctx context.Context, projectID, ownerID string) error {
	ct, err := r.db.Exec(ctx, `delete from projects where id = $1::uuid and user_id = $2::uuid;`, projectID, ownerID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// RecountVotes rewrites vote_count from the votes table and reports how
// many projects had drifted.
func (r *ProjectRepository) RecountVotes(ctx context.Context) (int64, error) {
	const q = `
update projects p
set vote_count = c.n
from (
  select p2.id, count(v.id)::int as n
  from projects p2
  left join votes v on v.project_id = p2.id
  group by p2.id
) c
where c.id = p.id and p.vote_count <> c.n;
`
	ct, err := r.db.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("recount votes: %w", err)
	}
	return ct.RowsAffected(), nil
}
