package main

import (
	"context"
	"fmt"

	"github.com/Generation-One/fold/internal/blobstore"
	"github.com/Generation-One/fold/internal/config"
	"github.com/Generation-One/fold/internal/embed"
	"github.com/Generation-One/fold/internal/gitsink"
	"github.com/Generation-One/fold/internal/indexer"
	"github.com/Generation-One/fold/internal/jobqueue"
	"github.com/Generation-One/fold/internal/linker"
	"github.com/Generation-One/fold/internal/llm"
	"github.com/Generation-One/fold/internal/memory"
	"github.com/Generation-One/fold/internal/relstore"
	"github.com/Generation-One/fold/internal/vectorstore"
	"go.uber.org/zap"
)

// deps holds every collaborator the core wires together, grounded on
// cmd/contextd/main.go's dependencies/services split (collapsed into one
// struct here since fold's core has no HTTP surface of its own to separate
// from).
type deps struct {
	rel   relstore.Store
	vec   vectorstore.Store
	embed *embed.Registry
	llm   *llm.Client
	blob  *blobstore.Store
	mem   *memory.Service
	link  *linker.Linker
	idx   *indexer.Indexer
	git   *gitsink.Sink
	pool  *jobqueue.Pool
}

// buildDeps wires every collaborator from cfg, per spec.md §6's component
// boundaries. Postgres is opened eagerly (migrations run on connect); the
// LLM client degrades to "unconfigured" (no providers) rather than fail,
// matching the indexer's and memory service's documented non-fatal
// degradation policy (spec §4.9 step 5, §4.7's warnings[] pattern). The
// embed registry does not: buildDeps fails when no embedding provider can
// be built.
func buildDeps(cfg *config.Config, pgCfg relstore.Config, dataPath string, log *zap.Logger) (*deps, error) {
	rel, err := relstore.Open(pgCfg, log)
	if err != nil {
		return nil, fmt.Errorf("opening relational store: %w", err)
	}

	vec, err := vectorstore.NewStore(vectorstore.Config{
		Provider: cfg.VectorStore.Provider,
		Chromem:  cfg.VectorStore.Chromem,
		Qdrant: vectorstore.QdrantConfig{
			Host: cfg.Qdrant.Host,
			Port: cfg.Qdrant.Port,
		},
	}, log)
	if err != nil {
		rel.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	embedReg, err := buildEmbedRegistry(cfg)
	if err != nil {
		rel.Close()
		return nil, fmt.Errorf("building embed registry: %w", err)
	}

	llmClient, err := llm.New(buildLLMProviderConfigs(cfg), log)
	if err != nil {
		rel.Close()
		return nil, fmt.Errorf("building llm client: %w", err)
	}

	blob := blobstore.New(dataPath, log)

	var embedQuery func(ctx context.Context, text string) ([]float32, error)
	if queryEmbedder, serr := embedReg.SearchEmbedder(); serr == nil {
		embedQuery = queryEmbedder.EmbedQuery
	}

	amem := linker.New(rel, vec, blob, llmClient, embedQuery, linker.WithLogger(log))

	svc, err := memory.New(rel, blob, vec, embedReg, llmClient, memory.WithLogger(log), memory.WithLinker(amem))
	if err != nil {
		rel.Close()
		return nil, fmt.Errorf("building memory service: %w", err)
	}

	idx := indexer.New(svc, rel, llmClient, indexer.Options{
		Include:          cfg.Indexing.Include,
		Exclude:          cfg.Indexing.Exclude,
		Concurrency:      cfg.Indexing.Concurrency,
		MaxFileBytes:     cfg.Indexing.MaxFileBytes,
		RespectGitignore: true,
		IgnoreFiles:      cfg.Repository.IgnoreFiles,
		FallbackExcludes: cfg.Repository.FallbackExcludes,
	}, indexer.WithLogger(log))

	sink := gitsink.New(gitsink.WithLogger(log))

	poolCfg := jobqueue.Config{
		Workers:           cfg.Queue.Workers,
		HeartbeatInterval: secToDuration(cfg.Queue.HeartbeatIntervalSec),
		StaleAfter:        secToDuration(cfg.Queue.StaleAfterSec),
		SweepInterval:     secToDuration(cfg.Queue.SweepIntervalSec),
		MaxRetries:        cfg.Queue.MaxRetries,
		BaseBackoff:       secToDuration(cfg.Queue.BaseBackoffSec),
		MaxBackoff:        secToDuration(cfg.Queue.MaxBackoffSec),
	}
	pool := jobqueue.New(rel, poolCfg, log)
	pool.Handle("git_commit", sink.Handler())

	return &deps{
		rel:   rel,
		vec:   vec,
		embed: embedReg,
		llm:   llmClient,
		blob:  blob,
		mem:   svc,
		link:  amem,
		idx:   idx,
		git:   sink,
		pool:  pool,
	}, nil
}

// buildEmbedRegistry wires the local fastembed provider for bulk indexing
// and, when configured, a remote OpenAI-compatible endpoint for query-time
// search, per spec §4.5/§6.4. A deployment with only fastembed available
// uses it for both paths.
func buildEmbedRegistry(cfg *config.Config) (*embed.Registry, error) {
	var entries []embed.Entry

	fe, err := embed.NewFastEmbedProvider(embed.FastEmbedConfig{
		Model:    cfg.Embeddings.Model,
		CacheDir: cfg.Embeddings.CacheDir,
	})
	if err == nil {
		entries = append(entries, embed.Entry{
			Name: "fastembed", Provider: fe, IndexPriority: 10, SearchPriority: 10,
		})
	}

	if cfg.Embeddings.Provider == "tei" || cfg.Embeddings.Provider == "remote" {
		dim := cfg.VectorStore.Chromem.VectorSize
		if err == nil {
			dim = fe.Dimension()
		}
		remote, rerr := embed.NewRemoteProvider(embed.RemoteConfig{
			Endpoint:  cfg.Embeddings.BaseURL,
			Model:     cfg.Embeddings.Model,
			Dimension: dim,
		})
		if rerr == nil {
			entries = append(entries, embed.Entry{
				Name: "remote", Provider: remote, IndexPriority: 0, SearchPriority: 20,
			})
		}
	}

	reg := embed.NewRegistry(entries)
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// buildLLMProviderConfigs maps the single-provider LLM section to the
// priority-ordered list internal/llm.New expects. An empty Kind produces no
// providers, which is a valid configuration: every indexed file then falls
// back to the indexer's synthesized summary (spec §4.9 step 5).
func buildLLMProviderConfigs(cfg *config.Config) []llm.ProviderConfig {
	if cfg.LLM.Kind == "" {
		return nil
	}
	return []llm.ProviderConfig{{
		Name:     cfg.LLM.Kind,
		Kind:     cfg.LLM.Kind,
		Priority: 10,
		Enabled:  true,
		APIKey:   cfg.LLM.APIKey,
		Endpoint: cfg.LLM.Endpoint,
		Model:    cfg.LLM.Model,
		Timeout:  cfg.LLM.Timeout,
	}}
}

func (d *deps) Close() {
	if d.rel != nil {
		_ = d.rel.Close()
	}
}
