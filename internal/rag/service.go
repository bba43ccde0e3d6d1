// Package rag composes the chunker, embedder, vector store, and generator
// into the two pipeline paths: ingestion (split, embed, store) and query
// (embed, retrieve, generate).
package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/finsight/finsight/internal/chunker"
	"github.com/finsight/finsight/internal/embedding"
	"github.com/finsight/finsight/internal/generator"
	"github.com/finsight/finsight/internal/models"
	"github.com/finsight/finsight/internal/vectorstore"
)

// Service coordinates one ingestion or query per call. It holds no mutable
// state of its own; everything durable lives in the vector store, so calls
// may run concurrently. A semaphore bounds how many are in flight at once.
type Service struct {
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	store     vectorstore.Store
	generator *generator.Generator
	topK      int
	sem       *semaphore.Weighted
	logger    *zap.Logger
}

// NewService wires the pipeline together. topK is the number of chunks
// retrieved per question; maxConcurrent caps in-flight Ingest/Ask calls
// (values below 1 mean 16).
func NewService(
	ch *chunker.Chunker,
	embedder embedding.Embedder,
	store vectorstore.Store,
	gen *generator.Generator,
	topK int,
	maxConcurrent int,
	logger *zap.Logger,
) *Service {
	if topK <= 0 {
		topK = 3
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		chunker:   ch,
		embedder:  embedder,
		store:     store,
		generator: gen,
		topK:      topK,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		logger:    logger,
	}
}

// Ingest splits text, embeds every chunk in one batched call, and stores the
// results. base metadata is copied onto each chunk, then tagged with its
// position and the chunk total. The call fails at the first step that errors;
// a failed embedding stores nothing.
func (s *Service) Ingest(ctx context.Context, text string, base models.Metadata) ([]string, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	text = chunker.Preprocess(text)
	if text == "" {
		return nil, models.Validationf("document text is empty")
	}
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, models.Validationf("document produced no chunks")
	}

	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}

	metadatas := make([]models.Metadata, len(chunks))
	for i := range chunks {
		md := base.Clone()
		if md == nil {
			md = models.Metadata{}
		}
		md[models.KeyChunkIndex] = models.Number(float64(i))
		md[models.KeyTotalChunks] = models.Number(float64(len(chunks)))
		metadatas[i] = md
	}

	ids, err := s.store.Add(ctx, chunks, vectors, metadatas)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document ingested",
		zap.Int("chunks", len(ids)),
		zap.String("source", base[models.KeySource].Str))
	return ids, nil
}

// IngestSource ingests text tagged with a source identifier, so the chunks
// can later be replaced or deleted as a group.
func (s *Service) IngestSource(ctx context.Context, source, text string) ([]string, error) {
	return s.Ingest(ctx, text, models.Metadata{models.KeySource: models.String(source)})
}

// ReplaceSource removes any chunks previously stored for source and ingests
// text in their place. Re-uploading a document goes through here so stale
// chunks do not accumulate.
func (s *Service) ReplaceSource(ctx context.Context, source, text string) ([]string, error) {
	removed, err := s.store.DeleteBySource(ctx, source)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		s.logger.Info("replaced stale chunks",
			zap.String("source", source),
			zap.Int("removed", removed))
	}
	return s.IngestSource(ctx, source, text)
}

// Ask answers a question from the indexed corpus. The question is embedded,
// the top chunks retrieved, and the generator produces a grounded answer.
// With an empty store the generator's no-context sentinel is returned rather
// than an error.
func (s *Service) Ask(ctx context.Context, question string) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, models.Validationf("question is empty")
	}
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	queryVec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Search(ctx, queryVec, s.topK, nil)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Content
	}

	generated, err := s.generator.Generate(ctx, question, texts)
	if err != nil {
		return nil, err
	}
	s.logger.Info("question answered",
		zap.String("model", generated.Model),
		zap.Int("chunks", len(results)))
	return &models.Answer{
		Answer:     generated.Answer,
		Model:      generated.Model,
		Chunks:     texts,
		Context:    generator.JoinContext(texts),
		ChunkCount: len(results),
	}, nil
}

// DeleteSource removes all chunks stored for source.
func (s *Service) DeleteSource(ctx context.Context, source string) (int, error) {
	return s.store.DeleteBySource(ctx, source)
}

// Clear wipes the whole index and returns the number of chunks removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	return s.store.Clear(ctx)
}

// Stats reports the current index size and embedding dimension.
func (s *Service) Stats(ctx context.Context) (*vectorstore.Stats, error) {
	return s.store.Stats(ctx)
}
