package agents

import (
	"context"
	"encoding/json"
	"log/slog"

	"contentops/internal/domain"
)

// Score used when the script could not be evaluated.
const qaFallbackScore = 50

// QAInput is the script under review.
type QAInput struct {
	Script         string `json:"script"`
	TargetAudience string `json:"target_audience,omitempty"`
}

// QAScores are the per-axis rubric scores, 0 to 100.
type QAScores struct {
	Intro         float64 `json:"intro"`
	Structure     float64 `json:"structure"`
	Entertainment float64 `json:"entertainment"`
	TargetFit     float64 `json:"target_fit"`
	CTA           float64 `json:"cta"`
	Clarity       float64 `json:"clarity"`
}

// Overall is the weighted score. Clarity is reported but unweighted.
func (s QAScores) Overall() float64 {
	return round2(0.25*s.Intro + 0.20*s.Structure + 0.15*s.Entertainment + 0.25*s.TargetFit + 0.15*s.CTA)
}

// QAOutput is the QA Checker result.
type QAOutput struct {
	OverallScore float64   `json:"overall_score"`
	Grade        string    `json:"grade"`
	Ready        bool      `json:"ready"`
	Evaluated    bool      `json:"evaluated"`
	Scores       *QAScores `json:"scores,omitempty"`
	Weaknesses   []string  `json:"weaknesses"`
	Improvements string    `json:"improvements,omitempty"`
}

// QAChecker grades a script against the rubric.
type QAChecker struct {
	deps   Deps
	logger *slog.Logger
}

// NewQAChecker creates the service.
func NewQAChecker(d Deps) *QAChecker {
	return &QAChecker{deps: d, logger: d.logger(domain.AgentQAChecker)}
}

func (s *QAChecker) InputSchema() []byte {
	return []byte(`{"type":"object","required":["script"],"properties":{` +
		`"script":{"type":"string","minLength":1},"target_audience":{"type":"string"}}}`)
}

// Execute evaluates the script. An unreachable or unreadable text vendor
// yields the fallback score and grade D.
func (s *QAChecker) Execute(ctx context.Context, agent *domain.Agent, _ *domain.AgentTask, input json.RawMessage) (json.RawMessage, error) {
	in, err := decodeInput[QAInput](input)
	if err != nil {
		return nil, err
	}

	out := QAOutput{OverallScore: qaFallbackScore, Grade: Grade(qaFallbackScore), Weaknesses: []string{}}
	res := s.deps.Text.EvaluateScriptQuality(ctx, in.Script, in.TargetAudience)
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if !res.OK() {
		s.logger.Warn("script evaluation unavailable", "agent_id", agent.ID, "error", res.Error)
		return encodeOutput(out)
	}

	var parsed struct {
		QAScores
		Weaknesses []string `json:"weaknesses"`
	}
	if err := parseModelJSON(res.Content, &parsed); err != nil {
		s.logger.Warn("script evaluation unreadable", "agent_id", agent.ID, "error", err)
		return encodeOutput(out)
	}

	scores := clampScores(parsed.QAScores)
	out.Evaluated = true
	out.Scores = &scores
	out.OverallScore = scores.Overall()
	out.Grade = Grade(out.OverallScore)
	out.Ready = Ready(out.Grade)
	if parsed.Weaknesses != nil {
		out.Weaknesses = parsed.Weaknesses
	}

	if !out.Ready && len(out.Weaknesses) > 0 {
		if imp := s.deps.Text.SuggestImprovements(ctx, in.Script, out.Weaknesses); imp.OK() {
			out.Improvements = imp.Content
		}
	}
	s.logger.Info("script graded", "agent_id", agent.ID, "overall", out.OverallScore, "grade", out.Grade)
	return encodeOutput(out)
}

// Grade maps an overall score to S, A, B, C or D.
func Grade(overall float64) string {
	switch {
	case overall >= 90:
		return "S"
	case overall >= 80:
		return "A"
	case overall >= 70:
		return "B"
	case overall >= 60:
		return "C"
	default:
		return "D"
	}
}

// Ready reports whether a grade is publishable.
func Ready(grade string) bool {
	return grade == "S" || grade == "A" || grade == "B"
}

func clampScores(s QAScores) QAScores {
	c := func(v float64) float64 { return max(0, min(100, v)) }
	return QAScores{
		Intro:         c(s.Intro),
		Structure:     c(s.Structure),
		Entertainment: c(s.Entertainment),
		TargetFit:     c(s.TargetFit),
		CTA:           c(s.CTA),
		Clarity:       c(s.Clarity),
	}
}
