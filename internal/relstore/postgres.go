package relstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	// postgres driver, registered for sqlx.Connect("postgres", ...)
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is the Store implementation backing internal/relstore, grounded
// on internal/db/db.go's sqlx.Connect + golang-migrate wiring and
// internal/storage/database.go's Store method shape, both from
// sevigo-code-warden (the teacher itself has no relational store; see
// DESIGN.md for why this sibling repo's stack was pulled in instead).
type Postgres struct {
	db  *sqlx.DB
	log *zap.Logger
}

// Config is the DSN-building configuration for Open.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (c Config) dsn() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, sslmode)
}

// Open connects to Postgres, pings, and runs pending migrations.
func Open(cfg Config, log *zap.Logger) (*Postgres, error) {
	if log == nil {
		log = zap.NewNop()
	}

	conn, err := sqlx.Connect("postgres", cfg.dsn())
	if err != nil {
		return nil, foldcore.Wrap(foldcore.Storage, fmt.Errorf("connect: %w", err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, foldcore.Wrap(foldcore.Storage, fmt.Errorf("ping: %w", err))
	}

	p := &Postgres{db: conn, log: log}
	if err := p.runMigrations(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) runMigrations() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return foldcore.Wrap(foldcore.Storage, fmt.Errorf("migration source: %w", err))
	}
	dbDriver, err := postgres.WithInstance(p.db.DB, &postgres.Config{})
	if err != nil {
		return foldcore.Wrap(foldcore.Storage, fmt.Errorf("migration driver: %w", err))
	}
	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return foldcore.Wrap(foldcore.Storage, fmt.Errorf("new migrator: %w", err))
	}

	if _, dirty, verr := migrator.Version(); verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return foldcore.Wrap(foldcore.Storage, fmt.Errorf("migration version: %w", verr))
	} else if dirty {
		return foldcore.New(foldcore.Storage, "database is in a dirty migration state; resolve it with golang-migrate's force command against the migrations table before restarting foldd")
	}

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return foldcore.Wrap(foldcore.Storage, fmt.Errorf("apply migrations: %w", err))
	}
	p.log.Info("relstore migrations applied")
	return nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// --- Projects ---

func (p *Postgres) CreateProject(ctx context.Context, proj foldcore.Project) error {
	row := projectToRow(proj)
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO projects (id, slug, root, include_globs, exclude_globs, strength_weight, half_life_days)
		VALUES (:id, :slug, :root, :include_globs, :exclude_globs, :strength_weight, :half_life_days)`, row)
	return wrapWrite(err)
}

func (p *Postgres) GetProject(ctx context.Context, id string) (foldcore.Project, error) {
	var row projectRow
	err := p.db.GetContext(ctx, &row, `SELECT id, slug, root, include_globs, exclude_globs, strength_weight, half_life_days FROM projects WHERE id = $1`, id)
	if err != nil {
		return foldcore.Project{}, wrapRead(err, "project")
	}
	return row.toDomain(), nil
}

func (p *Postgres) GetProjectBySlug(ctx context.Context, slug string) (foldcore.Project, error) {
	var row projectRow
	err := p.db.GetContext(ctx, &row, `SELECT id, slug, root, include_globs, exclude_globs, strength_weight, half_life_days FROM projects WHERE slug = $1`, slug)
	if err != nil {
		return foldcore.Project{}, wrapRead(err, "project")
	}
	return row.toDomain(), nil
}

func (p *Postgres) DeleteProject(ctx context.Context, id string) error {
	// ON DELETE CASCADE on repositories/memories/chunks/memory_links handles
	// §3's "deleting a project cascades to memories, links, jobs, chunks"
	// invariant for every table but jobs, which are project-agnostic
	// work items scoped by payload, not by a foreign key.
	_, err := p.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return wrapWrite(err)
}

// --- Repositories ---

func (p *Postgres) CreateRepository(ctx context.Context, r foldcore.Repository) error {
	row := repositoryToRow(r)
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO repositories (id, project_id, provider, owner, name, branch, last_indexed, local_path)
		VALUES (:id, :project_id, :provider, :owner, :name, :branch, :last_indexed, :local_path)`, row)
	return wrapWrite(err)
}

func (p *Postgres) GetRepository(ctx context.Context, id string) (foldcore.Repository, error) {
	var row repositoryRow
	err := p.db.GetContext(ctx, &row, `SELECT id, project_id, provider, owner, name, branch, last_indexed, local_path FROM repositories WHERE id = $1`, id)
	if err != nil {
		return foldcore.Repository{}, wrapRead(err, "repository")
	}
	return row.toDomain(), nil
}

func (p *Postgres) FindRepository(ctx context.Context, projectID, provider, owner, name, branch string) (foldcore.Repository, error) {
	var row repositoryRow
	err := p.db.GetContext(ctx, &row, `
		SELECT id, project_id, provider, owner, name, branch, last_indexed, local_path
		FROM repositories
		WHERE project_id = $1 AND provider = $2 AND owner = $3 AND name = $4 AND branch = $5`,
		projectID, provider, owner, name, branch)
	if err != nil {
		return foldcore.Repository{}, wrapRead(err, "repository")
	}
	return row.toDomain(), nil
}

func (p *Postgres) UpdateRepositoryLastIndexed(ctx context.Context, id, commit string) error {
	res, err := p.db.ExecContext(ctx, `UPDATE repositories SET last_indexed = $2, updated_at = now() WHERE id = $1`, id, commit)
	return wrapUpdate(err, res)
}

// --- Memories ---

func (p *Postgres) CreateMemory(ctx context.Context, m foldcore.Memory) error {
	row := memoryToRow(m)
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO memories (id, project_id, repository_id, source, type, content_hash, title, author,
			language, file_path, line_start, line_end, keywords, tags, context, content,
			retrieval_count, last_accessed, created_at, updated_at)
		VALUES (:id, :project_id, :repository_id, :source, :type, :content_hash, :title, :author,
			:language, :file_path, :line_start, :line_end, :keywords, :tags, :context, :content,
			:retrieval_count, :last_accessed, :created_at, :updated_at)`, row)
	return wrapWrite(err)
}

func (p *Postgres) UpdateMemory(ctx context.Context, m foldcore.Memory) error {
	row := memoryToRow(m)
	res, err := p.db.NamedExecContext(ctx, `
		UPDATE memories SET
			content_hash = :content_hash, title = :title, author = :author, language = :language,
			file_path = :file_path, line_start = :line_start, line_end = :line_end,
			keywords = :keywords, tags = :tags, context = :context, content = :content,
			updated_at = :updated_at
		WHERE id = :id`, row)
	return wrapUpdate(err, res)
}

func (p *Postgres) GetMemory(ctx context.Context, id string) (foldcore.Memory, error) {
	var row memoryRow
	err := p.db.GetContext(ctx, &row, `SELECT * FROM memories WHERE id = $1`, id)
	if err != nil {
		return foldcore.Memory{}, wrapRead(err, "memory")
	}
	return row.toDomain(), nil
}

func (p *Postgres) FindByID(ctx context.Context, id string) (string, bool, error) {
	var hash string
	err := p.db.GetContext(ctx, &hash, `SELECT content_hash FROM memories WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, foldcore.Wrap(foldcore.Storage, err)
	}
	return hash, true, nil
}

func (p *Postgres) DeleteMemory(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM memories WHERE id = $1`, id)
	return wrapWrite(err)
}

func (p *Postgres) ListMemories(ctx context.Context, filter MemoryFilter) ([]foldcore.Memory, error) {
	query := `SELECT * FROM memories WHERE 1=1`
	var args []interface{}
	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if len(filter.IDs) > 0 {
		args = append(args, pq.Array(filter.IDs))
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}

	var rows []memoryRow
	if err := p.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, foldcore.Wrap(foldcore.Storage, err)
	}
	out := make([]foldcore.Memory, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (p *Postgres) RecordAccess(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE memories SET retrieval_count = retrieval_count + 1, last_accessed = $2
		WHERE id = ANY($1)`, pq.Array(ids), at)
	return wrapWrite(err)
}

// --- Chunks ---

func (p *Postgres) ReplaceChunks(ctx context.Context, memoryID string, chunks []foldcore.Chunk) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return foldcore.Wrap(foldcore.Storage, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE memory_id = $1`, memoryID); err != nil {
		return foldcore.Wrap(foldcore.Storage, err)
	}
	for _, c := range chunks {
		row := chunkToRow(c)
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO chunks (id, memory_id, project_id, content, content_hash, start_line, end_line,
				start_byte, end_byte, node_type, node_name, language)
			VALUES (:id, :memory_id, :project_id, :content, :content_hash, :start_line, :end_line,
				:start_byte, :end_byte, :node_type, :node_name, :language)`, row); err != nil {
			return foldcore.Wrap(foldcore.Storage, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return foldcore.Wrap(foldcore.Storage, err)
	}
	return nil
}

func (p *Postgres) DeleteChunksByMemory(ctx context.Context, memoryID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM chunks WHERE memory_id = $1`, memoryID)
	return wrapWrite(err)
}

func (p *Postgres) ListChunksByMemory(ctx context.Context, memoryID string) ([]foldcore.Chunk, error) {
	var rows []chunkRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT * FROM chunks WHERE memory_id = $1 ORDER BY start_line`, memoryID); err != nil {
		return nil, foldcore.Wrap(foldcore.Storage, err)
	}
	out := make([]foldcore.Chunk, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// --- Links ---

func (p *Postgres) CreateLink(ctx context.Context, l foldcore.Link) error {
	row := linkToRow(l)
	_, err := p.db.NamedExecContext(ctx, `
		INSERT INTO memory_links (id, project_id, source_memory_id, target_memory_id, link_type, confidence, context, created_by, created_at)
		VALUES (:id, :project_id, :source_memory_id, :target_memory_id, :link_type, :confidence, :context, :created_by, :created_at)
		ON CONFLICT (source_memory_id, target_memory_id, link_type) DO NOTHING`, row)
	// P4: creating the same (source, target, type) twice is a no-op, not an
	// error, so ON CONFLICT DO NOTHING absorbs it rather than surfacing
	// foldcore.Conflict here.
	return wrapWrite(err)
}

func (p *Postgres) DeleteLinksForMemory(ctx context.Context, memoryID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM memory_links WHERE source_memory_id = $1 OR target_memory_id = $1`, memoryID)
	return wrapWrite(err)
}

func (p *Postgres) ListLinksFrom(ctx context.Context, memoryID string) ([]foldcore.Link, error) {
	var rows []linkRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT * FROM memory_links WHERE source_memory_id = $1`, memoryID); err != nil {
		return nil, foldcore.Wrap(foldcore.Storage, err)
	}
	return linkRowsToDomain(rows), nil
}

func (p *Postgres) ListLinksTo(ctx context.Context, memoryID string) ([]foldcore.Link, error) {
	var rows []linkRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT * FROM memory_links WHERE target_memory_id = $1`, memoryID); err != nil {
		return nil, foldcore.Wrap(foldcore.Storage, err)
	}
	return linkRowsToDomain(rows), nil
}

func linkRowsToDomain(rows []linkRow) []foldcore.Link {
	out := make([]foldcore.Link, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out
}

// --- Jobs ---

func (p *Postgres) EnqueueJob(ctx context.Context, j foldcore.Job) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, payload, priority, scheduled_at, attempts, max_retries, total_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		j.ID, j.Type, string(j.Status), j.Payload, j.Priority, j.ScheduledAt, j.Attempts, j.MaxRetries, j.TotalItems)
	return wrapWrite(err)
}

func (p *Postgres) GetJob(ctx context.Context, id string) (foldcore.Job, error) {
	var row jobRow
	err := p.db.GetContext(ctx, &row, `SELECT * FROM jobs WHERE id = $1`, id)
	if err != nil {
		return foldcore.Job{}, wrapRead(err, "job")
	}
	return row.toDomain(), nil
}

// Claim is the single atomic transaction of spec §4.10: select the
// highest-priority claimable job with FOR UPDATE SKIP LOCKED so concurrent
// workers never observe or claim the same row (P5), then flip it to
// running in the same statement.
func (p *Postgres) Claim(ctx context.Context, workerID string) (foldcore.Job, error) {
	var row jobRow
	err := p.db.GetContext(ctx, &row, `
		UPDATE jobs SET status = 'running', locked_at = now(), locked_by = $1, updated_at = now()
		WHERE id = (
			SELECT id FROM jobs
			WHERE status IN ('pending', 'retry')
			  AND (scheduled_at IS NULL OR scheduled_at <= now())
			ORDER BY priority DESC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING *`, workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return foldcore.Job{}, foldcore.New(foldcore.NotFound, "no claimable job")
	}
	if err != nil {
		return foldcore.Job{}, foldcore.Wrap(foldcore.Storage, err)
	}
	return row.toDomain(), nil
}

func (p *Postgres) Heartbeat(ctx context.Context, jobID, workerID string, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET locked_at = $3 WHERE id = $1 AND locked_by = $2 AND status = 'running'`,
		jobID, workerID, at)
	return wrapUpdate(err, res)
}

func (p *Postgres) CompleteJob(ctx context.Context, jobID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'completed', locked_at = NULL, locked_by = '', updated_at = now() WHERE id = $1`, jobID)
	return wrapUpdate(err, res)
}

func (p *Postgres) RetryJob(ctx context.Context, jobID, lastError string, scheduledAt time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'retry', attempts = attempts + 1, last_error = $2, scheduled_at = $3,
			locked_at = NULL, locked_by = '', updated_at = now()
		WHERE id = $1`, jobID, lastError, scheduledAt)
	return wrapUpdate(err, res)
}

func (p *Postgres) FailJob(ctx context.Context, jobID, lastError string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', last_error = $2, locked_at = NULL, locked_by = '', updated_at = now()
		WHERE id = $1`, jobID, lastError)
	return wrapUpdate(err, res)
}

func (p *Postgres) CancelJob(ctx context.Context, jobID string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'retry', 'running')`, jobID)
	return wrapUpdate(err, res)
}

func (p *Postgres) SweepStale(ctx context.Context, staleBefore time.Time) (int, error) {
	res, err := p.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'retry', attempts = attempts + 1, last_error = 'heartbeat lost',
			locked_at = NULL, locked_by = '', updated_at = now()
		WHERE status = 'running' AND locked_at < $1`, staleBefore)
	if err != nil {
		return 0, foldcore.Wrap(foldcore.Storage, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- helpers ---

func wrapWrite(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return foldcore.Wrap(foldcore.Conflict, err)
	}
	return foldcore.Wrap(foldcore.Storage, err)
}

func wrapRead(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return foldcore.Newf(foldcore.NotFound, "%s not found", what)
	}
	return foldcore.Wrap(foldcore.Storage, err)
}

func wrapUpdate(err error, res sql.Result) error {
	if err != nil {
		return wrapWrite(err)
	}
	if res == nil {
		return nil
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return foldcore.New(foldcore.NotFound, "no matching row")
	}
	return nil
}
