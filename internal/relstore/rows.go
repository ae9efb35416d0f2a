package relstore

import (
	"database/sql"
	"time"

	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/lib/pq"
)

// The row structs below carry `db:` tags for sqlx scanning, grounded on
// internal/storage/database.go's Repository/FileRecord pattern: the
// domain types in internal/foldcore stay free of storage-layer tags so
// relstore is the only package that knows the schema's column shapes.

type projectRow struct {
	ID             string         `db:"id"`
	Slug           string         `db:"slug"`
	Root           string         `db:"root"`
	IncludeGlobs   pq.StringArray `db:"include_globs"`
	ExcludeGlobs   pq.StringArray `db:"exclude_globs"`
	StrengthWeight float64        `db:"strength_weight"`
	HalfLifeDays   float64        `db:"half_life_days"`
}

func (r projectRow) toDomain() foldcore.Project {
	return foldcore.Project{
		ID:      r.ID,
		Slug:    r.Slug,
		Root:    r.Root,
		Include: append([]string(nil), r.IncludeGlobs...),
		Exclude: append([]string(nil), r.ExcludeGlobs...),
		Decay: foldcore.DecayParams{
			StrengthWeight: r.StrengthWeight,
			HalfLifeDays:   r.HalfLifeDays,
		},
	}
}

func projectToRow(p foldcore.Project) projectRow {
	return projectRow{
		ID:             p.ID,
		Slug:           p.Slug,
		Root:           p.Root,
		IncludeGlobs:   pq.StringArray(p.Include),
		ExcludeGlobs:   pq.StringArray(p.Exclude),
		StrengthWeight: p.Decay.StrengthWeight,
		HalfLifeDays:   p.Decay.HalfLifeDays,
	}
}

type repositoryRow struct {
	ID          string `db:"id"`
	ProjectID   string `db:"project_id"`
	Provider    string `db:"provider"`
	Owner       string `db:"owner"`
	Name        string `db:"name"`
	Branch      string `db:"branch"`
	LastIndexed string `db:"last_indexed"`
	LocalPath   string `db:"local_path"`
}

func (r repositoryRow) toDomain() foldcore.Repository {
	return foldcore.Repository{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Provider:    r.Provider,
		Owner:       r.Owner,
		Name:        r.Name,
		Branch:      r.Branch,
		LastIndexed: r.LastIndexed,
		LocalPath:   r.LocalPath,
	}
}

func repositoryToRow(r foldcore.Repository) repositoryRow {
	return repositoryRow{
		ID:          r.ID,
		ProjectID:   r.ProjectID,
		Provider:    r.Provider,
		Owner:       r.Owner,
		Name:        r.Name,
		Branch:      r.Branch,
		LastIndexed: r.LastIndexed,
		LocalPath:   r.LocalPath,
	}
}

type memoryRow struct {
	ID             string         `db:"id"`
	ProjectID      string         `db:"project_id"`
	RepositoryID   sql.NullString `db:"repository_id"`
	Source         string         `db:"source"`
	Type           string         `db:"type"`
	ContentHash    string         `db:"content_hash"`
	Title          string         `db:"title"`
	Author         string         `db:"author"`
	Language       string         `db:"language"`
	FilePath       string         `db:"file_path"`
	LineStart      sql.NullInt64  `db:"line_start"`
	LineEnd        sql.NullInt64  `db:"line_end"`
	Keywords       pq.StringArray `db:"keywords"`
	Tags           pq.StringArray `db:"tags"`
	Context        string         `db:"context"`
	Content        sql.NullString `db:"content"`
	RetrievalCount int            `db:"retrieval_count"`
	LastAccessed   sql.NullTime   `db:"last_accessed"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r memoryRow) toDomain() foldcore.Memory {
	m := foldcore.Memory{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Source:         foldcore.Source(r.Source),
		Type:           r.Type,
		ContentHash:    r.ContentHash,
		Title:          r.Title,
		Author:         r.Author,
		Language:       r.Language,
		FilePath:       r.FilePath,
		Keywords:       append([]string(nil), r.Keywords...),
		Tags:           append([]string(nil), r.Tags...),
		Context:        r.Context,
		RetrievalCount: r.RetrievalCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.RepositoryID.Valid {
		m.RepositoryID = r.RepositoryID.String
	}
	if r.LineStart.Valid {
		m.LineStart = int(r.LineStart.Int64)
	}
	if r.LineEnd.Valid {
		m.LineEnd = int(r.LineEnd.Int64)
	}
	if r.Content.Valid {
		m.Content = r.Content.String
	}
	if r.LastAccessed.Valid {
		t := r.LastAccessed.Time
		m.LastAccessed = &t
	}
	return m
}

func memoryToRow(m foldcore.Memory) memoryRow {
	row := memoryRow{
		ID:             m.ID,
		ProjectID:      m.ProjectID,
		Source:         string(m.Source),
		Type:           m.Type,
		ContentHash:    m.ContentHash,
		Title:          m.Title,
		Author:         m.Author,
		Language:       m.Language,
		FilePath:       m.FilePath,
		Keywords:       pq.StringArray(m.Keywords),
		Tags:           pq.StringArray(m.Tags),
		Context:        m.Context,
		RetrievalCount: m.RetrievalCount,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	if m.RepositoryID != "" {
		row.RepositoryID = sql.NullString{String: m.RepositoryID, Valid: true}
	}
	if m.LineStart != 0 {
		row.LineStart = sql.NullInt64{Int64: int64(m.LineStart), Valid: true}
	}
	if m.LineEnd != 0 {
		row.LineEnd = sql.NullInt64{Int64: int64(m.LineEnd), Valid: true}
	}
	if m.Source != foldcore.SourceAgent {
		row.Content = sql.NullString{String: m.Content, Valid: true}
	}
	if m.LastAccessed != nil {
		row.LastAccessed = sql.NullTime{Time: *m.LastAccessed, Valid: true}
	}
	return row
}

type chunkRow struct {
	ID          string `db:"id"`
	MemoryID    string `db:"memory_id"`
	ProjectID   string `db:"project_id"`
	Content     string `db:"content"`
	ContentHash string `db:"content_hash"`
	StartLine   int    `db:"start_line"`
	EndLine     int    `db:"end_line"`
	StartByte   int    `db:"start_byte"`
	EndByte     int    `db:"end_byte"`
	NodeType    string `db:"node_type"`
	NodeName    string `db:"node_name"`
	Language    string `db:"language"`
}

func (r chunkRow) toDomain() foldcore.Chunk {
	return foldcore.Chunk{
		ID:          r.ID,
		MemoryID:    r.MemoryID,
		ProjectID:   r.ProjectID,
		Content:     r.Content,
		ContentHash: r.ContentHash,
		StartLine:   r.StartLine,
		EndLine:     r.EndLine,
		StartByte:   r.StartByte,
		EndByte:     r.EndByte,
		NodeType:    r.NodeType,
		NodeName:    r.NodeName,
		Language:    r.Language,
	}
}

func chunkToRow(c foldcore.Chunk) chunkRow {
	return chunkRow{
		ID:          c.ID,
		MemoryID:    c.MemoryID,
		ProjectID:   c.ProjectID,
		Content:     c.Content,
		ContentHash: c.ContentHash,
		StartLine:   c.StartLine,
		EndLine:     c.EndLine,
		StartByte:   c.StartByte,
		EndByte:     c.EndByte,
		NodeType:    c.NodeType,
		NodeName:    c.NodeName,
		Language:    c.Language,
	}
}

type linkRow struct {
	ID             string         `db:"id"`
	ProjectID      string         `db:"project_id"`
	SourceMemoryID string         `db:"source_memory_id"`
	TargetMemoryID string         `db:"target_memory_id"`
	LinkType       string         `db:"link_type"`
	Confidence     sql.NullFloat64 `db:"confidence"`
	Context        string         `db:"context"`
	CreatedBy      string         `db:"created_by"`
	CreatedAt      time.Time      `db:"created_at"`
}

func (r linkRow) toDomain() foldcore.Link {
	l := foldcore.Link{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		SourceMemoryID: r.SourceMemoryID,
		TargetMemoryID: r.TargetMemoryID,
		LinkType:       foldcore.LinkType(r.LinkType),
		Context:        r.Context,
		CreatedBy:      foldcore.CreatedBy(r.CreatedBy),
		CreatedAt:      r.CreatedAt,
	}
	if r.Confidence.Valid {
		v := r.Confidence.Float64
		l.Confidence = &v
	}
	return l
}

func linkToRow(l foldcore.Link) linkRow {
	row := linkRow{
		ID:             l.ID,
		ProjectID:      l.ProjectID,
		SourceMemoryID: l.SourceMemoryID,
		TargetMemoryID: l.TargetMemoryID,
		LinkType:       string(l.LinkType),
		Context:        l.Context,
		CreatedBy:      string(l.CreatedBy),
		CreatedAt:      l.CreatedAt,
	}
	if l.Confidence != nil {
		row.Confidence = sql.NullFloat64{Float64: *l.Confidence, Valid: true}
	}
	return row
}

type jobRow struct {
	ID             string         `db:"id"`
	Type           string         `db:"type"`
	Status         string         `db:"status"`
	Payload        []byte         `db:"payload"`
	Priority       int            `db:"priority"`
	ScheduledAt    sql.NullTime   `db:"scheduled_at"`
	LockedAt       sql.NullTime   `db:"locked_at"`
	LockedBy       string         `db:"locked_by"`
	Attempts       int            `db:"attempts"`
	MaxRetries     int            `db:"max_retries"`
	LastError      string         `db:"last_error"`
	TotalItems     sql.NullInt64  `db:"total_items"`
	ProcessedItems int            `db:"processed_items"`
	FailedItems    int            `db:"failed_items"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r jobRow) toDomain() foldcore.Job {
	j := foldcore.Job{
		ID:             r.ID,
		Type:           r.Type,
		Status:         foldcore.JobStatus(r.Status),
		Payload:        r.Payload,
		Priority:       r.Priority,
		LockedBy:       r.LockedBy,
		Attempts:       r.Attempts,
		MaxRetries:     r.MaxRetries,
		LastError:      r.LastError,
		ProcessedItems: r.ProcessedItems,
		FailedItems:    r.FailedItems,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.ScheduledAt.Valid {
		t := r.ScheduledAt.Time
		j.ScheduledAt = &t
	}
	if r.LockedAt.Valid {
		t := r.LockedAt.Time
		j.LockedAt = &t
	}
	if r.TotalItems.Valid {
		n := int(r.TotalItems.Int64)
		j.TotalItems = &n
	}
	return j
}
