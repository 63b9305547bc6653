package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/vharia/threatlens/internal/config"
	"github.com/vharia/threatlens/internal/domain/docmodel"
	"github.com/vharia/threatlens/internal/ingest"
	"github.com/vharia/threatlens/pkg/logger_i"
)

// DocumentIngestor runs the full ingest pipeline for one source document and
// is expected to be idempotent for unchanged content.
type DocumentIngestor interface {
	IngestDocument(ctx context.Context, doc docmodel.SourceDocument) (string, error)
}

// Syncer reconciles a desired set of source documents against what the store
// already holds, touching only the documents whose content hash changed.
type Syncer struct {
	store    docmodel.DocumentStore
	ingestor DocumentIngestor
	logger   *logger_i.Logger
}

func NewSyncer(store docmodel.DocumentStore, ingestor DocumentIngestor) *Syncer {
	return &Syncer{
		store:    store,
		ingestor: ingestor,
		logger:   logger_i.NewLogger("Syncer"),
	}
}

type pendingIngest struct {
	doc      docmodel.SourceDocument
	modified bool
}

// Reconcile diffs the desired documents against the stored content hashes and
// applies only the changes: new documents are ingested, changed ones
// re-ingested, stored documents missing from the desired set removed.
// Unchanged documents are skipped without any embedding work. Individual
// failures do not abort the run, they are collected per document in the
// summary.
func (s *Syncer) Reconcile(ctx context.Context, desired []docmodel.SourceDocument) (docmodel.ReconcileSummary, error) {
	started := time.Now()
	summary := docmodel.ReconcileSummary{Failed: map[string]string{}}

	known, err := s.store.KnownHashes(ctx)
	if err != nil {
		return summary, err
	}

	desiredIds := make(map[string]bool, len(desired))
	pendingHashes := make(map[string]bool)
	var pending []pendingIngest
	for _, doc := range desired {
		desiredIds[doc.Name] = true
		hash := ingest.ComputeContentHash(doc.Content)

		storedHash, exists := known[doc.Name]
		switch {
		case exists && storedHash == hash:
			summary.Skipped++
		case exists:
			pending = append(pending, pendingIngest{doc: doc, modified: true})
		default:
			// same content may already live under another identity, either
			// stored or queued earlier in this batch
			if pendingHashes[hash] {
				summary.Skipped++
				continue
			}
			if _, found, err := s.store.FindByContentHash(ctx, hash); err == nil && found {
				summary.Skipped++
				continue
			}
			pendingHashes[hash] = true
			pending = append(pending, pendingIngest{doc: doc, modified: false})
		}
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, config.ReconcileWorkerCount)
	for _, item := range pending {
		wg.Add(1)
		sem <- struct{}{}
		go func(item pendingIngest) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := s.ingestor.IngestDocument(ctx, item.doc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.Error("reconcile ingest failed", "document", item.doc.Name, "error", err)
				summary.Failed[item.doc.Name] = err.Error()
				return
			}
			if item.modified {
				summary.Modified++
			} else {
				summary.Added++
			}
		}(item)
	}
	wg.Wait()

	for id := range known {
		if desiredIds[id] {
			continue
		}
		if err := s.store.RemoveDocument(ctx, id); err != nil {
			s.logger.Error("reconcile removal failed", "document", id, "error", err)
			summary.Failed[id] = err.Error()
			continue
		}
		summary.Removed++
	}

	if stats, err := s.store.Stats(ctx); err == nil {
		summary.TotalChunks = stats.TotalChunks
	}
	summary.ElapsedMs = time.Since(started).Milliseconds()

	s.logger.Info("reconcile complete",
		"added", summary.Added, "modified", summary.Modified,
		"removed", summary.Removed, "skipped", summary.Skipped,
		"failed", len(summary.Failed), "elapsedMs", summary.ElapsedMs)
	return summary, nil
}
