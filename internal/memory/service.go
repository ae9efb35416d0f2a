package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/Generation-One/fold/internal/blobstore"
	"github.com/Generation-One/fold/internal/chunker"
	"github.com/Generation-One/fold/internal/decay"
	"github.com/Generation-One/fold/internal/embed"
	"github.com/Generation-One/fold/internal/fingerprint"
	"github.com/Generation-One/fold/internal/foldcore"
	"github.com/Generation-One/fold/internal/llm"
	"github.com/Generation-One/fold/internal/relstore"
	"github.com/Generation-One/fold/internal/vectorstore"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Generation-One/fold/internal/memory"

// Linker is the async linking collaborator (C8) invoked after a create or
// payload-changing update succeeds and an embedding is available. Propose
// is fire-and-forget; ProposeSync is used when the caller requests
// synchronous linking, per spec §4.8.
type Linker interface {
	Propose(ctx context.Context, memoryID string)
	ProposeSync(ctx context.Context, memoryID string) error
}

// Service is the memory service collaborator boundary (SPEC_FULL.md §4.7),
// grounded on internal/reasoningbank/service.go's ServiceOption
// constructor pattern and collaborator resolution.
type Service struct {
	rel   relstore.Store
	blob  *blobstore.Store
	vec   vectorstore.Store
	embed *embed.Registry
	llm   *llm.Client
	linker Linker

	log    *zap.Logger
	tracer trace.Tracer
	meter  metric.Meter

	createCounter metric.Int64Counter
	searchCounter metric.Int64Counter
	errorCounter  metric.Int64Counter
	searchLatency metric.Float64Histogram
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

// WithTracer overrides the OTel tracer. Defaults to otel.Tracer(instrumentationName).
func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

// WithMeter overrides the OTel meter. Defaults to otel.Meter(instrumentationName).
func WithMeter(meter metric.Meter) ServiceOption {
	return func(s *Service) { s.meter = meter }
}

// WithLinker attaches the A-MEM linker invoked after create/update, per
// spec §4.8. A Service built without WithLinker never proposes links.
func WithLinker(l Linker) ServiceOption {
	return func(s *Service) { s.linker = l }
}

// New builds a memory Service from its required collaborators.
func New(rel relstore.Store, blob *blobstore.Store, vec vectorstore.Store, embedReg *embed.Registry, llmClient *llm.Client, opts ...ServiceOption) (*Service, error) {
	if rel == nil {
		return nil, foldcore.New(foldcore.InvalidInput, "memory: relational store is required")
	}
	if blob == nil {
		return nil, foldcore.New(foldcore.InvalidInput, "memory: blob store is required")
	}

	svc := &Service{
		rel:    rel,
		blob:   blob,
		vec:    vec,
		embed:  embedReg,
		llm:    llmClient,
		log:    zap.NewNop(),
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.log == nil {
		svc.log = zap.NewNop()
	}

	if err := svc.initMetrics(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) initMetrics() error {
	var err error
	if s.createCounter, err = s.meter.Int64Counter("fold.memory.create.count"); err != nil {
		return fmt.Errorf("init create counter: %w", err)
	}
	if s.searchCounter, err = s.meter.Int64Counter("fold.memory.search.count"); err != nil {
		return fmt.Errorf("init search counter: %w", err)
	}
	if s.errorCounter, err = s.meter.Int64Counter("fold.memory.error.count"); err != nil {
		return fmt.Errorf("init error counter: %w", err)
	}
	if s.searchLatency, err = s.meter.Float64Histogram("fold.memory.search.duration_ms"); err != nil {
		return fmt.Errorf("init search histogram: %w", err)
	}
	return nil
}

// Create validates input, computes the memory's id and content hash,
// writes the relational row, blob (for agent sources), vector points, and
// returns the stored memory. Writes are ordered relational -> blob ->
// vector -> links, per spec §4.7; failures past the relational commit
// degrade the memory rather than lose it.
func (s *Service) Create(ctx context.Context, project foldcore.Project, in CreateInput) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "memory.Create")
	defer span.End()

	if !in.Source.Valid() {
		return Result{}, foldcore.Newf(foldcore.InvalidInput, "unknown memory source %q", in.Source)
	}
	if in.Payload == "" {
		return Result{}, foldcore.New(foldcore.InvalidInput, "payload is required")
	}

	id, err := s.computeID(project, in.Source, in.FilePath)
	if err != nil {
		return Result{}, err
	}

	now := time.Now().UTC()
	contentHash := fingerprint.ContentHash([]byte(in.Payload))

	var warnings []string
	keywords, tags, memContext := in.Keywords, in.Tags, in.Context
	if in.AutoMetadata && len(keywords) == 0 && len(tags) == 0 && memContext == "" {
		if s.llm != nil {
			analysis, aerr := s.llm.AnalyseContent(ctx, in.Payload)
			if aerr != nil {
				warnings = append(warnings, fmt.Sprintf("auto_metadata: %s", aerr))
			} else {
				keywords, tags, memContext = analysis.Keywords, analysis.Tags, analysis.Context
			}
		}
	}

	mem := foldcore.Memory{
		ID:             id,
		ProjectID:      project.ID,
		RepositoryID:   in.RepositoryID,
		Source:         in.Source,
		Type:           in.Type,
		ContentHash:    contentHash,
		Title:          in.Title,
		Author:         in.Author,
		Language:       in.Language,
		FilePath:       in.FilePath,
		LineStart:      in.LineStart,
		LineEnd:        in.LineEnd,
		Keywords:       keywords,
		Tags:           tags,
		Context:        memContext,
		RetrievalCount: 0,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Source != foldcore.SourceAgent {
		mem.Content = in.Payload
	}

	if err := s.rel.CreateMemory(ctx, mem); err != nil {
		s.countError("create")
		return Result{}, err
	}

	if in.Source == foldcore.SourceAgent {
		if err := s.writeBlob(mem, in.Payload, nil); err != nil {
			warnings = append(warnings, fmt.Sprintf("blob write: %s", err))
			s.log.Warn("memory create: blob write failed", zap.String("id", id), zap.Error(err))
		}
	}

	chunks, embedWarn := s.reindexVectors(ctx, project, mem, in.Payload)
	warnings = append(warnings, embedWarn...)

	if err := s.rel.ReplaceChunks(ctx, id, chunks); err != nil {
		warnings = append(warnings, fmt.Sprintf("chunk persistence: %s", err))
		s.log.Warn("memory create: chunk persistence failed", zap.String("id", id), zap.Error(err))
	}

	s.createCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(in.Source))))

	if len(embedWarn) == 0 && s.linker != nil {
		if in.LinkSync {
			if err := s.linker.ProposeSync(ctx, id); err != nil {
				warnings = append(warnings, fmt.Sprintf("linker: %s", err))
			}
		} else {
			s.linker.Propose(ctx, id)
		}
	}

	return Result{Memory: mem, Warnings: warnings}, nil
}

// Update mutates a memory's mutable fields and, if Payload changed,
// recomputes its content hash, chunks, and embeddings.
func (s *Service) Update(ctx context.Context, project foldcore.Project, id string, patch UpdatePatch) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "memory.Update")
	defer span.End()

	mem, err := s.rel.GetMemory(ctx, id)
	if err != nil {
		return Result{}, err
	}

	var warnings []string
	payloadChanged := false
	payload := mem.Content

	if patch.Title != nil {
		mem.Title = *patch.Title
	}
	if patch.Type != nil {
		mem.Type = *patch.Type
	}
	if patch.Keywords != nil {
		mem.Keywords = *patch.Keywords
	}
	if patch.Tags != nil {
		mem.Tags = *patch.Tags
	}
	if patch.Context != nil {
		mem.Context = *patch.Context
	}
	if patch.Payload != nil {
		payload = *patch.Payload
		newHash := fingerprint.ContentHash([]byte(payload))
		if newHash != mem.ContentHash {
			payloadChanged = true
			mem.ContentHash = newHash
		}
		if mem.Source != foldcore.SourceAgent {
			mem.Content = payload
		}
	}
	mem.UpdatedAt = time.Now().UTC()

	if err := s.rel.UpdateMemory(ctx, mem); err != nil {
		s.countError("update")
		return Result{}, err
	}

	if mem.Source == foldcore.SourceAgent && patch.Payload != nil {
		related, lerr := s.relatedIDs(ctx, id)
		if lerr != nil {
			warnings = append(warnings, fmt.Sprintf("blob update: %s", lerr))
		} else if err := s.writeBlob(mem, payload, related); err != nil {
			warnings = append(warnings, fmt.Sprintf("blob write: %s", err))
		}
	}

	if payloadChanged {
		// Chunk ids are fresh on every reindex, so the old chunk points are
		// dropped first; the memory-level point is replaced by id.
		if s.vec != nil {
			if old, cerr := s.rel.ListChunksByMemory(ctx, id); cerr == nil && len(old) > 0 {
				oldIDs := make([]string, 0, len(old))
				for _, c := range old {
					oldIDs = append(oldIDs, c.ID)
				}
				if err := s.vec.Delete(ctx, foldcore.CollectionName(project.Slug), oldIDs); err != nil {
					s.log.Warn("memory update: stale chunk vector delete failed", zap.String("id", id), zap.Error(err))
				}
			}
		}
		chunks, embedWarn := s.reindexVectors(ctx, project, mem, payload)
		warnings = append(warnings, embedWarn...)
		if err := s.rel.ReplaceChunks(ctx, id, chunks); err != nil {
			warnings = append(warnings, fmt.Sprintf("chunk persistence: %s", err))
		}
		if len(embedWarn) == 0 && s.linker != nil {
			s.linker.Propose(ctx, id)
		}
	}

	return Result{Memory: mem, Warnings: warnings}, nil
}

// Get reads a memory by id. For agent sources the blob body is read back
// into Memory.Content. Plain Get does not count as retrieval (spec §4.7):
// retrieval_count/last_accessed are only bumped via the search path.
func (s *Service) Get(ctx context.Context, id string) (foldcore.Memory, error) {
	ctx, span := s.tracer.Start(ctx, "memory.Get")
	defer span.End()

	mem, err := s.rel.GetMemory(ctx, id)
	if err != nil {
		return foldcore.Memory{}, err
	}
	if mem.Source == foldcore.SourceAgent {
		doc, rerr := s.blob.Read(id)
		if rerr != nil {
			s.log.Warn("memory get: blob read failed", zap.String("id", id), zap.Error(rerr))
			return mem, foldcore.Wrap(foldcore.Integrity, rerr)
		}
		mem.Content = doc.Body
	}
	return mem, nil
}

// Delete removes a memory's vector points, chunk rows, links, blob (if
// agent-sourced), and relational row, best-effort in that order: vector
// and blob deletion failures are logged but never abort the relational
// delete, per spec §4.7.
func (s *Service) Delete(ctx context.Context, project foldcore.Project, id string) error {
	ctx, span := s.tracer.Start(ctx, "memory.Delete")
	defer span.End()

	mem, err := s.rel.GetMemory(ctx, id)
	if err != nil {
		return err
	}

	if s.vec != nil {
		collection := foldcore.CollectionName(project.Slug)
		chunks, cerr := s.rel.ListChunksByMemory(ctx, id)
		if cerr == nil {
			ids := make([]string, 0, len(chunks)+1)
			ids = append(ids, id)
			for _, c := range chunks {
				ids = append(ids, c.ID)
			}
			if err := s.vec.Delete(ctx, collection, ids); err != nil {
				s.log.Warn("memory delete: vector delete failed", zap.String("id", id), zap.Error(err))
			}
		}
	}

	if err := s.rel.DeleteChunksByMemory(ctx, id); err != nil {
		s.log.Warn("memory delete: chunk delete failed", zap.String("id", id), zap.Error(err))
	}
	if err := s.rel.DeleteLinksForMemory(ctx, id); err != nil {
		s.log.Warn("memory delete: link delete failed", zap.String("id", id), zap.Error(err))
	}
	if mem.Source == foldcore.SourceAgent {
		if err := s.blob.Delete(id); err != nil {
			s.log.Warn("memory delete: blob delete failed", zap.String("id", id), zap.Error(err))
		}
	}

	if err := s.rel.DeleteMemory(ctx, id); err != nil {
		s.countError("delete")
		return err
	}
	return nil
}

// Search embeds the query, over-fetches K*3 memory+chunk vector points,
// dedups/re-ranks them by decay-blended score (C11), and best-effort
// records retrieval_count/last_accessed for every surfaced memory. Never
// fails on a vector-store outage: it returns a degraded, possibly-empty
// page with a warning instead, per spec §7.
func (s *Service) Search(ctx context.Context, project foldcore.Project, params SearchParams) (SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "memory.Search")
	defer span.End()
	start := time.Now()
	defer func() {
		s.searchLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()
	s.searchCounter.Add(ctx, 1)

	limit := params.Limit
	if limit <= 0 {
		limit = 10
	}

	if s.vec == nil || s.embed == nil {
		return SearchResult{Warnings: []string{"vector search unavailable"}}, nil
	}

	embedder, eerr := s.embed.SearchEmbedder()
	if eerr != nil {
		return SearchResult{Warnings: []string{fmt.Sprintf("embedder: %s", eerr)}}, nil
	}
	queryVec, eerr := embedder.EmbedQuery(ctx, params.Query)
	if eerr != nil {
		return SearchResult{Warnings: []string{fmt.Sprintf("embed query: %s", eerr)}}, nil
	}

	filter := map[string]interface{}{"project_id": project.ID}
	for k, v := range params.Filter {
		filter[k] = v
	}

	collection := foldcore.CollectionName(project.Slug)
	hits, serr := s.vec.Search(ctx, collection, queryVec, limit*3, filter)
	if serr != nil {
		s.log.Warn("memory search: vector search failed", zap.Error(serr))
		return SearchResult{Warnings: []string{fmt.Sprintf("vector search: %s", serr)}}, nil
	}
	if len(hits) == 0 {
		return SearchResult{}, nil
	}

	memoryIDs := make(map[string]bool)
	for _, h := range hits {
		memoryIDs[hitMemoryID(h)] = true
	}
	ids := make([]string, 0, len(memoryIDs))
	for id := range memoryIDs {
		ids = append(ids, id)
	}
	memories, merr := s.rel.ListMemories(ctx, relstore.MemoryFilter{ProjectID: project.ID, IDs: ids})
	if merr != nil {
		return SearchResult{Warnings: []string{fmt.Sprintf("memory lookup: %s", merr)}}, nil
	}
	byID := make(map[string]foldcore.Memory, len(memories))
	for _, m := range memories {
		byID[m.ID] = m
	}

	candidates := make([]decay.Candidate, 0, len(hits))
	for _, h := range hits {
		memID := hitMemoryID(h)
		mem, ok := byID[memID]
		if !ok {
			continue
		}
		c := decay.Candidate{
			MemoryID:  memID,
			Relevance: float64(h.Score),
			UpdatedAt: unixSeconds(mem.UpdatedAt),
		}
		if isChunkHit(h) {
			c.IsChunk = true
			c.ChunkInfo = chunkInfoFromMetadata(h.Metadata)
		}
		candidates = append(candidates, c)
	}

	grouped := decay.Group(candidates)
	now := time.Now().UTC()
	ranked := decay.Rerank(grouped, limit, func(r *decay.Ranked) (float64, float64) {
		mem := byID[r.MemoryID]
		strength := decay.Strength(now, mem.UpdatedAt, mem.LastAccessed, mem.RetrievalCount, project.Decay.HalfLifeDays)
		return strength, decay.Combined(r.Relevance, strength, project.Decay.StrengthWeight)
	})

	results := make([]RankedMemory, 0, len(ranked))
	surfaced := make([]string, 0, len(ranked))
	for _, r := range ranked {
		mem := byID[r.MemoryID]
		results = append(results, RankedMemory{
			Memory:        mem,
			Relevance:     r.Relevance,
			Strength:      r.Strength,
			Combined:      r.Combined,
			MatchedChunks: r.MatchedChunks,
		})
		surfaced = append(surfaced, r.MemoryID)
	}

	if len(surfaced) > 0 {
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.rel.RecordAccess(bgCtx, surfaced, time.Now().UTC()); err != nil {
				s.log.Warn("memory search: record access failed", zap.Error(err))
			}
		}()
	}

	return SearchResult{Results: results}, nil
}

// Context walks memory_links breadth-first from id up to depth (capped at
// 3), deduplicated by memory id, per spec §4.7.
func (s *Service) Context(ctx context.Context, id string, depth int) (ContextResult, error) {
	ctx, span := s.tracer.Start(ctx, "memory.Context")
	defer span.End()

	center, err := s.rel.GetMemory(ctx, id)
	if err != nil {
		return ContextResult{}, err
	}
	depth = clampDepth(depth)

	visited := map[string]bool{id: true}
	result := ContextResult{Center: center}

	frontier := []string{id}
	for d := 1; d <= depth; d++ {
		var next []string
		for _, curID := range frontier {
			out, oerr := s.rel.ListLinksFrom(ctx, curID)
			if oerr != nil {
				continue
			}
			in, ierr := s.rel.ListLinksTo(ctx, curID)
			if ierr != nil {
				continue
			}
			for _, l := range out {
				result.Edges = append(result.Edges, ContextEdge{SourceID: l.SourceMemoryID, TargetID: l.TargetMemoryID, Type: l.LinkType})
				if !visited[l.TargetMemoryID] {
					visited[l.TargetMemoryID] = true
					next = append(next, l.TargetMemoryID)
				}
			}
			for _, l := range in {
				result.Edges = append(result.Edges, ContextEdge{SourceID: l.SourceMemoryID, TargetID: l.TargetMemoryID, Type: l.LinkType})
				if !visited[l.SourceMemoryID] {
					visited[l.SourceMemoryID] = true
					next = append(next, l.SourceMemoryID)
				}
			}
		}
		for _, nid := range next {
			nm, nerr := s.rel.GetMemory(ctx, nid)
			if nerr != nil {
				continue
			}
			result.Neighbors = append(result.Neighbors, ContextNeighbor{Memory: nm, Depth: d})
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}

	return result, nil
}

// computeID derives a memory's id per spec §3 invariant 1: a stable
// path-derived hash for file/git sources, a fresh UUIDv4 for agent
// sources.
func (s *Service) computeID(project foldcore.Project, source foldcore.Source, filePath string) (string, error) {
	if source == foldcore.SourceAgent {
		return uuid.NewString(), nil
	}
	key, err := fingerprint.PathKey(project.Slug, filePath)
	if err != nil {
		return "", err
	}
	return fingerprint.MemoryID(key), nil
}

func (s *Service) writeBlob(mem foldcore.Memory, body string, relatedIDs []string) error {
	now := blobstore.NowRFC3339()
	fm := blobstore.Frontmatter{
		ID:         mem.ID,
		Title:      mem.Title,
		Author:     mem.Author,
		Tags:       mem.Tags,
		FilePath:   mem.FilePath,
		Language:   mem.Language,
		MemoryType: mem.Type,
		CreatedAt:  mem.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:  now,
	}
	return s.blob.Write(mem.ID, fm, body, relatedIDs)
}

func (s *Service) relatedIDs(ctx context.Context, id string) ([]string, error) {
	links, err := s.rel.ListLinksFrom(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(links))
	for _, l := range links {
		if l.LinkType == foldcore.LinkRelated {
			ids = append(ids, l.TargetMemoryID)
		}
	}
	return ids, nil
}

// reindexVectors chunks payload, embeds the memory summary and its chunks
// in one batch, and upserts them into the project's collection. Embedder
// or vector-store failures are non-fatal (spec §7's Embed/Vector kinds):
// the memory is committed without a vector and a warning is returned.
func (s *Service) reindexVectors(ctx context.Context, project foldcore.Project, mem foldcore.Memory, payload string) ([]foldcore.Chunk, []string) {
	var warnings []string

	rawChunks, cerr := chunker.Chunk(ctx, []byte(payload), mem.Language)
	if cerr != nil {
		warnings = append(warnings, fmt.Sprintf("chunking: %s", cerr))
		rawChunks = nil
	}

	chunks := make([]foldcore.Chunk, len(rawChunks))
	for i, c := range rawChunks {
		chunks[i] = foldcore.Chunk{
			ID:          uuid.NewString(),
			MemoryID:    mem.ID,
			ProjectID:   project.ID,
			Content:     c.Content,
			ContentHash: fingerprint.ContentHash([]byte(c.Content)),
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			StartByte:   c.StartByte,
			EndByte:     c.EndByte,
			NodeType:    c.NodeType,
			NodeName:    c.NodeName,
			Language:    mem.Language,
		}
	}

	if s.embed == nil || s.vec == nil {
		return chunks, warnings
	}

	embedder, eerr := s.embed.IndexEmbedder()
	if eerr != nil {
		warnings = append(warnings, fmt.Sprintf("embed: %s", eerr))
		return chunks, warnings
	}

	memoryText := memorySummaryText(mem)
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, memoryText)
	for _, c := range chunks {
		texts = append(texts, c.Content)
	}

	vectors, eerr := embedder.EmbedDocuments(ctx, texts)
	if eerr != nil {
		warnings = append(warnings, fmt.Sprintf("embed: %s", eerr))
		return chunks, warnings
	}
	if len(vectors) != len(texts) {
		warnings = append(warnings, "embed: vector count mismatch")
		return chunks, warnings
	}

	collection := foldcore.CollectionName(project.Slug)
	if err := s.vec.EnsureCollection(ctx, collection, embedder.Dimension()); err != nil {
		warnings = append(warnings, fmt.Sprintf("vector collection: %s", err))
		return chunks, warnings
	}

	points := make([]vectorstore.Point, 0, len(texts))
	points = append(points, vectorstore.Point{
		ID:     mem.ID,
		Vector: vectors[0],
		Metadata: map[string]interface{}{
			"kind": "memory", "memory_id": mem.ID, "project_id": project.ID,
			"type": mem.Type, "source": string(mem.Source), "file_path": mem.FilePath, "language": mem.Language,
		},
	})
	for i, c := range chunks {
		points = append(points, vectorstore.Point{
			ID:     c.ID,
			Vector: vectors[i+1],
			Metadata: map[string]interface{}{
				"kind": "chunk", "memory_id": mem.ID, "project_id": project.ID,
				"type": mem.Type, "source": string(mem.Source), "file_path": mem.FilePath, "language": mem.Language,
				"start_line": c.StartLine, "end_line": c.EndLine, "node_type": c.NodeType, "node_name": c.NodeName,
			},
		})
	}

	if err := s.vec.Upsert(ctx, collection, points); err != nil {
		warnings = append(warnings, fmt.Sprintf("vector upsert: %s", err))
	}

	return chunks, warnings
}

func memorySummaryText(mem foldcore.Memory) string {
	if mem.Context != "" {
		return mem.Title + "\n" + mem.Context
	}
	return mem.Title + "\n" + mem.Content
}

func (s *Service) countError(op string) {
	s.errorCounter.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", op)))
}

func hitMemoryID(h vectorstore.SearchHit) string {
	if v, ok := h.Metadata["memory_id"].(string); ok {
		return v
	}
	return h.ID
}

func isChunkHit(h vectorstore.SearchHit) bool {
	kind, _ := h.Metadata["kind"].(string)
	return kind == "chunk"
}

func chunkInfoFromMetadata(meta map[string]interface{}) decay.ChunkMatch {
	info := decay.ChunkMatch{}
	if v, ok := meta["start_line"].(int); ok {
		info.StartLine = v
	}
	if v, ok := meta["end_line"].(int); ok {
		info.EndLine = v
	}
	if v, ok := meta["node_type"].(string); ok {
		info.NodeType = v
	}
	if v, ok := meta["node_name"].(string); ok {
		info.NodeName = v
	}
	return info
}
