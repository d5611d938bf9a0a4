// Package catalog resolves a user's geography to candidate aid programs.
package catalog

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/metrics"
	"github.com/sells-group/aid-simulator/internal/model"
	"github.com/sells-group/aid-simulator/internal/textnorm"
)

// Source is the read side of the program catalog.
type Source interface {
	RegionPrograms(ctx context.Context, slug string) ([]model.ProgramRecord, error)
	NationalPrograms(ctx context.Context) ([]model.ProgramRecord, error)
}

// Retriever loads candidate programs for a geography.
type Retriever struct {
	src Source
}

// NewRetriever creates a Retriever over src.
func NewRetriever(src Source) *Retriever {
	return &Retriever{src: src}
}

// Candidates returns the deduplicated programs of the region matching
// geography, or the nationwide programs when the region has none. A catalog
// error is logged and yields an empty list.
func (r *Retriever) Candidates(ctx context.Context, geography string) []model.ProgramRecord {
	slug := textnorm.Slug(geography)
	log := zap.L().With(zap.String("geography", geography), zap.String("slug", slug))

	var programs []model.ProgramRecord
	if slug != "" {
		regional, err := r.src.RegionPrograms(ctx, slug)
		if err != nil {
			metrics.CatalogErrorsTotal.Inc()
			log.Warn("catalog: region lookup failed", zap.Error(err))
			return nil
		}
		programs = regional
	}

	if len(programs) == 0 {
		national, err := r.src.NationalPrograms(ctx)
		if err != nil {
			metrics.CatalogErrorsTotal.Inc()
			log.Warn("catalog: national lookup failed", zap.Error(err))
			return nil
		}
		programs = national
		log.Debug("catalog: using national partition", zap.Int("programs", len(programs)))
	}

	return Dedupe(programs)
}

// Dedupe drops repeated program ids, keeping the first occurrence.
func Dedupe(programs []model.ProgramRecord) []model.ProgramRecord {
	seen := make(map[string]struct{}, len(programs))
	out := make([]model.ProgramRecord, 0, len(programs))
	for _, p := range programs {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
