package db

import (
	"context"
	"fmt"
)

// Schema is idempotent; EnsureSchema runs it on every start.
const Schema = `
create table if not exists users (
  id uuid primary key default gen_random_uuid(),
  firebase_uid text not null unique,
  email text,
  display_name text,
  photo_url text,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create table if not exists projects (
  id uuid primary key,
  user_id uuid not null references users(id) on delete cascade,
  title varchar(100) not null,
  description varchar(500) not null default '',
  url text not null unique,
  thumbnail_url text,
  media_urls text[],
  vote_count integer not null default 0,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create index if not exists projects_vote_count_idx on projects (vote_count desc, created_at desc);
create index if not exists projects_user_id_idx on projects (user_id);

create table if not exists votes (
  id uuid primary key,
  user_id uuid not null references users(id) on delete cascade,
  project_id uuid not null references projects(id) on delete cascade,
  created_at timestamptz not null default now(),
  unique (user_id, project_id)
);

create table if not exists comments (
  id uuid primary key,
  project_id uuid not null references projects(id) on delete cascade,
  user_id uuid not null references users(id) on delete cascade,
  parent_id uuid references comments(id) on delete set null,
  content text not null,
  created_at timestamptz not null default now(),
  updated_at timestamptz not null default now()
);

create index if not exists comments_project_idx on comments (project_id, created_at desc) where parent_id is null;
create index if not exists comments_parent_idx on comments (parent_id, created_at);
`

// EnsureSchema creates the tables the gateway relies on.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
