package agents

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentops/internal/domain"
)

func TestKeywordCacheKey(t *testing.T) {
	sum := md5.Sum([]byte("ai avatar,vtuber"))
	want := "keyword_research:" + hex.EncodeToString(sum[:])[:8]

	assert.Equal(t, want, KeywordCacheKey([]string{"vtuber", "AI Avatar"}))
	assert.Equal(t, want, KeywordCacheKey([]string{" ai avatar ", "VTUBER"}), "order and case do not matter")
	assert.NotEqual(t, want, KeywordCacheKey([]string{"vtuber"}))
}

func TestKeywordResearcherCachesResult(t *testing.T) {
	h := newHarness(t)
	h.text.keywords = func([]string) domain.TextResult {
		return ok(`{"related":["ai video","AI Video"],"long_tail":["how to make an ai avatar"],"trending":["sora"]}`)
	}
	h.text.ideas = func(string, int) domain.TextResult {
		return ok("1. Avatar basics\n2) Lip sync tricks\n- Voice cloning\n\n")
	}
	agent, task := h.agent(t, domain.AgentKeywordResearcher, "")
	svc := NewKeywordResearcher(h.deps())
	input := `{"keywords":["AI Avatar","vtuber"],"seed":"ai avatar"}`

	first := run[KeywordOutput](t, svc, agent, task, input)
	assert.False(t, first.Cached)
	assert.Equal(t, []string{"ai video"}, first.Related)
	assert.Equal(t, []string{"how to make an ai avatar"}, first.LongTail)
	assert.Equal(t, []string{"sora"}, first.Trending)
	assert.Equal(t, []string{"Avatar basics", "Lip sync tricks", "Voice cloning"}, first.Ideas)

	hit, err := h.cache.Exists(context.Background(), KeywordCacheKey([]string{"AI Avatar", "vtuber"}))
	require.NoError(t, err)
	assert.True(t, hit)

	second := run[KeywordOutput](t, svc, agent, task, `{"keywords":["VTUBER","ai avatar"]}`)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Related, second.Related)
	assert.Equal(t, 1, h.text.count("keywords"))
}

func TestKeywordResearcherFailureIsNotCached(t *testing.T) {
	h := newHarness(t)
	agent, task := h.agent(t, domain.AgentKeywordResearcher, "")
	svc := NewKeywordResearcher(h.deps())

	out := run[KeywordOutput](t, svc, agent, task, `{"keywords":["vtuber"]}`)
	assert.False(t, out.Cached)
	assert.Empty(t, out.Related)
	assert.NotNil(t, out.Related)

	h.text.keywords = func([]string) domain.TextResult { return ok(`{"related":["virtual youtuber"]}`) }
	out = run[KeywordOutput](t, svc, agent, task, `{"keywords":["vtuber"]}`)
	assert.False(t, out.Cached)
	assert.Equal(t, []string{"virtual youtuber"}, out.Related)
	assert.Equal(t, []string{}, out.Trending)
}

func TestKeywordResearcherWithoutKeywords(t *testing.T) {
	h := newHarness(t)
	agent, task := h.agent(t, domain.AgentKeywordResearcher, "kb-missing")

	out := run[KeywordOutput](t, NewKeywordResearcher(h.deps()), agent, task, "")
	assert.Empty(t, out.Keywords)
	assert.Zero(t, h.text.count("keywords"))
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"First", "Second", "3D avatars", "Bullet"},
		splitLines(" 1. First\n2) Second\n3D avatars\n• Bullet\n"))
}
