package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

func TestQACheckerFallsBackWhenUnavailable(t *testing.T) {
	h := newHarness(t)
	agent, task := h.agent(t, domain.AgentQAChecker, "")

	out := run[QAOutput](t, NewQAChecker(h.deps()), agent, task, `{"script":"Hello and welcome"}`)

	assert.InDelta(t, 50.0, out.OverallScore, 0.001)
	assert.Equal(t, "D", out.Grade)
	assert.False(t, out.Ready)
	assert.False(t, out.Evaluated)
	assert.Nil(t, out.Scores)
	assert.Zero(t, h.text.count("improvements"))
}

func TestQACheckerFallsBackOnUnreadableAnswer(t *testing.T) {
	h := newHarness(t)
	h.text.quality = func(string, string) domain.TextResult { return ok("I think it is pretty good!") }
	agent, task := h.agent(t, domain.AgentQAChecker, "")

	out := run[QAOutput](t, NewQAChecker(h.deps()), agent, task, `{"script":"Hello"}`)
	assert.Equal(t, "D", out.Grade)
	assert.False(t, out.Evaluated)
}

func TestQACheckerGradesAndSuggests(t *testing.T) {
	h := newHarness(t)
	var gotAudience string
	h.text.quality = func(_, audience string) domain.TextResult {
		gotAudience = audience
		return ok("```json\n" + `{"intro":70,"structure":60,"entertainment":80,"target_fit":60,"cta":40,"clarity":99,` +
			`"weaknesses":["weak hook","no call to action"]}` + "\n```")
	}
	h.text.improvements = func(_ string, weaknesses []string) domain.TextResult {
		return ok("Fix: " + weaknesses[0])
	}
	agent, task := h.agent(t, domain.AgentQAChecker, "")

	out := run[QAOutput](t, NewQAChecker(h.deps()), agent, task, `{"script":"Hello","target_audience":"creators"}`)

	// .25*70 + .20*60 + .15*80 + .25*60 + .15*40 = 62.5
	assert.InDelta(t, 62.5, out.OverallScore, 0.001)
	assert.Equal(t, "C", out.Grade)
	assert.False(t, out.Ready)
	assert.True(t, out.Evaluated)
	require.NotNil(t, out.Scores)
	assert.InDelta(t, 99.0, out.Scores.Clarity, 0.001)
	assert.Equal(t, []string{"weak hook", "no call to action"}, out.Weaknesses)
	assert.Equal(t, "Fix: weak hook", out.Improvements)
	assert.Equal(t, "creators", gotAudience)
}

func TestQACheckerReadyScriptSkipsSuggestions(t *testing.T) {
	h := newHarness(t)
	h.text.quality = func(string, string) domain.TextResult {
		return ok(`{"intro":95,"structure":90,"entertainment":85,"target_fit":120,"cta":80,"weaknesses":["minor pacing"]}`)
	}
	agent, task := h.agent(t, domain.AgentQAChecker, "")

	out := run[QAOutput](t, NewQAChecker(h.deps()), agent, task, `{"script":"Hello"}`)

	// target_fit is clamped to 100: .25*95 + .20*90 + .15*85 + .25*100 + .15*80 = 91.5
	assert.InDelta(t, 91.5, out.OverallScore, 0.001)
	assert.Equal(t, "S", out.Grade)
	assert.True(t, out.Ready)
	assert.Zero(t, h.text.count("improvements"))
}

func TestGrade(t *testing.T) {
	for score, want := range map[float64]string{
		100: "S", 90: "S", 89.99: "A", 80: "A", 70: "B", 60: "C", 59.99: "D", 0: "D",
	} {
		assert.Equal(t, want, Grade(score), score)
	}
	assert.True(t, Ready("B"))
	assert.False(t, Ready("C"))
}
