// Package localize translates result descriptions into the display language.
package localize

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/aid-simulator/internal/metrics"
	"github.com/sells-group/aid-simulator/internal/model"
)

var errLengthMismatch = eris.New("localize: translator returned a different number of texts")

// Config configures a Localizer.
type Config struct {
	NativeLanguage string
	BatchSize      int
	Timeout        time.Duration
}

// Localizer rewrites descriptions into a target language. It never fails and
// never reorders or drops aides.
type Localizer struct {
	native     string
	batchSize  int
	timeout    time.Duration
	translator Translator
}

// New creates a Localizer. A nil translator passes every batch through.
func New(cfg Config, translator Translator) *Localizer {
	native := NormalizeLanguage(cfg.NativeLanguage)
	if native == "" {
		native = "fr"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 20
	}
	return &Localizer{native: native, batchSize: batch, timeout: cfg.Timeout, translator: translator}
}

// Native returns the catalog language.
func (l *Localizer) Native() string { return l.native }

// Resolve maps a requested display language to the one results will use.
func (l *Localizer) Resolve(lang string) string {
	if code := NormalizeLanguage(lang); code != "" {
		return code
	}
	return l.native
}

// Localize returns a copy of aides with the descriptions of the first
// BatchSize entries translated into lang. On any failure the original text is
// kept.
func (l *Localizer) Localize(ctx context.Context, aides []model.EstimatedAide, lang string) []model.EstimatedAide {
	out := make([]model.EstimatedAide, len(aides))
	copy(out, aides)

	target := l.Resolve(lang)
	if target == l.native || len(out) == 0 {
		return out
	}
	if l.translator == nil {
		metrics.TranslationsTotal.WithLabelValues("passthrough").Inc()
		return out
	}

	var texts []string
	var idx []int
	for i := 0; i < len(out) && i < l.batchSize; i++ {
		if out[i].Description == "" {
			continue
		}
		texts = append(texts, out[i].Description)
		idx = append(idx, i)
	}
	if len(texts) == 0 {
		return out
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	translated, err := l.translator.Translate(ctx, texts, target)
	if err == nil && len(translated) != len(texts) {
		err = errLengthMismatch
	}
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("failed").Inc()
		zap.L().Warn("localize: translation failed, keeping original text",
			zap.String("target", target),
			zap.Int("texts", len(texts)),
			zap.Error(err),
		)
		return out
	}

	for j, i := range idx {
		if translated[j] != "" {
			out[i].Description = translated[j]
		}
	}
	metrics.TranslationsTotal.WithLabelValues("translated").Inc()
	return out
}
