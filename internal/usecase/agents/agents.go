// Package agents implements the seven agent services dispatched by the
// orchestrator. Services are stateless: every dependency is injected through
// Deps and per-run state lives on the stack of Execute.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"contentops/internal/domain"
)

// Deps are the collaborators shared by every service.
type Deps struct {
	Store     domain.Store
	Video     domain.VideoPlatform
	Search    domain.SearchEngine
	Analytics domain.ChannelAnalytics
	Text      domain.TextGenerator
	Notifier  domain.Notifier
	Cache     domain.Cache
	Logger    *slog.Logger
	// Now is the time source; nil means time.Now.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d Deps) logger(agentType domain.AgentType) *slog.Logger {
	l := d.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", "agent", "agent_type", string(agentType))
}

// Registrar is the orchestrator's registration surface.
type Registrar interface {
	Register(t domain.AgentType, svc domain.AgentService) error
}

// Services returns one service per agent type.
func Services(d Deps) map[domain.AgentType]domain.AgentService {
	return map[domain.AgentType]domain.AgentService{
		domain.AgentTrendMonitor:       NewTrendMonitor(d),
		domain.AgentCompetitorAnalyzer: NewCompetitorAnalyzer(d),
		domain.AgentCommentResponder:   NewCommentResponder(d),
		domain.AgentContentScheduler:   NewContentScheduler(d),
		domain.AgentQAChecker:          NewQAChecker(d),
		domain.AgentKeywordResearcher:  NewKeywordResearcher(d),
		domain.AgentPerformanceLearner: NewPerformanceLearner(d),
	}
}

// RegisterAll binds every service to r.
func RegisterAll(r Registrar, d Deps) error {
	svcs := Services(d)
	for _, t := range domain.AllAgentTypes {
		if err := r.Register(t, svcs[t]); err != nil {
			return fmt.Errorf("register %s: %w", t, err)
		}
	}
	return nil
}

// decodeInput unmarshals an optional input blob into T.
func decodeInput[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return v, nil
}

func encodeOutput(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return b, nil
}

// checkCancelled returns a Cancelled error once ctx is done.
func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return nil
}

// codeFenceRe matches markdown code fences wrapping JSON.
var codeFenceRe = regexp.MustCompile(`(?si)^` + "```" + `(?:json)?\s*(.*?)\s*` + "```" + `$`)

// stripCodeFences removes markdown code fences if the model wrapped its output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// parseModelJSON decodes a JSON object from generated text. Models often
// wrap the object in prose, so the outermost braces are located first.
func parseModelJSON(content string, v any) error {
	s := stripCodeFences(content)
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamMalformed, err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
