package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mike-mible/cjic/logging"
	"github.com/Mike-mible/cjic/models"
)

// TextGenerator produces text from a system instruction and a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

const (
	insightNoLogs      = "No site logs available for analysis."
	insightUnavailable = "AI Insights require a valid Google API Key. Please configure your environment variables."
	insightFailed      = "Unable to generate AI insights at this time. Manual review recommended."

	analystInstruction = "You are a senior construction analyst providing concise project summaries."
	insightPrompt      = "Analyze the following site logs and provide a 2-sentence executive summary highlighting any productivity trends or potential risks: \n\n"
)

// InsightService summarizes site logs through a language model. It never
// changes anything, and every failure yields a fixed message instead of an
// error.
type InsightService struct {
	gen TextGenerator
	log logging.Logger
}

// NewInsightService accepts a nil generator when no API key is configured.
func NewInsightService(gen TextGenerator, log logging.Logger) *InsightService {
	if log == nil {
		log = logging.Discard()
	}
	return &InsightService{gen: gen, log: log}
}

func (s *InsightService) Summarize(ctx context.Context, logs []models.SiteLog) string {
	if len(logs) == 0 {
		return insightNoLogs
	}
	if s.gen == nil {
		return insightUnavailable
	}

	text, err := s.gen.Generate(ctx, analystInstruction, insightPrompt+summaryLines(logs))
	if err != nil {
		s.log.Warn(ctx, "insight generation failed", "error", err)
		return insightFailed
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return insightFailed
	}
	return text
}

func summaryLines(logs []models.SiteLog) string {
	lines := make([]string, len(logs))
	for i, l := range logs {
		lines[i] = fmt.Sprintf("- %s: %s (Status: %s)", l.Date, l.WorkCompleted, l.Status)
	}
	return strings.Join(lines, "\n")
}
