package report

import (
	"context"
	"log"

	"physics-practice/internal/models"
)

// Cache stores a generated report per session token until explicitly
// invalidated, so a page reload does not re-trigger a long LLM call.
type Cache interface {
	GetReport(token string) (string, error)
	SetReport(token, text string) error
	DeleteReport(token string) error
}

// Generator combines the two strategies: AI first, local fallback. A user
// always receives some report.
type Generator struct {
	completer TextCompleter
	cache     Cache
}

func NewGenerator(completer TextCompleter, cache Cache) *Generator {
	return &Generator{completer: completer, cache: cache}
}

// Generate returns the cached report if one exists, otherwise produces one.
// With forceLocal set (or no LLM configured) the deterministic local
// strategy is used directly. Any remote failure falls back to local rather
// than surfacing an error; the second return value reports which strategy
// produced the text ("ai" or "local").
func (g *Generator) Generate(ctx context.Context, token string, answers []models.AnsweredQuestion, unitName string, forceLocal bool) (string, string) {
	if g.cache != nil {
		if text, err := g.cache.GetReport(token); err == nil && text != "" {
			return text, "cache"
		}
	}

	text, source := g.build(ctx, answers, unitName, forceLocal)

	if g.cache != nil {
		if err := g.cache.SetReport(token, text); err != nil {
			log.Printf("Error caching report for session: %v", err)
		}
	}
	return text, source
}

func (g *Generator) build(ctx context.Context, answers []models.AnsweredQuestion, unitName string, forceLocal bool) (string, string) {
	if forceLocal || g.completer == nil {
		return Local(answers, unitName), "local"
	}

	text, err := Remote(ctx, g.completer, answers, unitName)
	if err != nil {
		log.Printf("AI report failed, falling back to local analysis: %v", err)
		return Local(answers, unitName), "local"
	}
	return text, "ai"
}

// Invalidate drops the cached report so the next Generate rebuilds it.
func (g *Generator) Invalidate(token string) {
	if g.cache == nil {
		return
	}
	if err := g.cache.DeleteReport(token); err != nil {
		log.Printf("Error invalidating cached report: %v", err)
	}
}
