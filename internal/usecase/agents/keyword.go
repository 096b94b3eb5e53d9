package agents

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"contentops/internal/domain"
)

const (
	keywordCacheTTL    = time.Hour
	keywordMaxInput    = 20
	keywordIdeaCount   = 10
	keywordCachePrefix = "keyword_research:"
)

// KeywordInput lists candidate keywords and an optional seed for ideas.
type KeywordInput struct {
	Keywords []string `json:"keywords,omitempty"`
	Seed     string   `json:"seed,omitempty"`
}

// KeywordOutput is the Keyword Researcher result.
type KeywordOutput struct {
	Keywords []string `json:"keywords"`
	Related  []string `json:"related"`
	LongTail []string `json:"long_tail"`
	Trending []string `json:"trending"`
	Ideas    []string `json:"ideas,omitempty"`
	Cached   bool     `json:"cached"`
}

// KeywordResearcher expands candidate keywords into related, long-tail
// and trending buckets.
type KeywordResearcher struct {
	deps   Deps
	logger *slog.Logger
}

// NewKeywordResearcher creates the service.
func NewKeywordResearcher(d Deps) *KeywordResearcher {
	return &KeywordResearcher{deps: d, logger: d.logger(domain.AgentKeywordResearcher)}
}

func (s *KeywordResearcher) InputSchema() []byte {
	return []byte(`{"type":"object","properties":{"keywords":{"type":"array","items":{"type":"string"}},"seed":{"type":"string"}}}`)
}

// Execute researches the keywords. Successful research is cached for an hour.
func (s *KeywordResearcher) Execute(ctx context.Context, agent *domain.Agent, _ *domain.AgentTask, input json.RawMessage) (json.RawMessage, error) {
	in, err := decodeInput[KeywordInput](input)
	if err != nil {
		return nil, err
	}
	keywords := dedupeKeywords(in.Keywords, keywordMaxInput)
	if len(keywords) == 0 && agent.KnowledgeID != "" {
		if k, err := s.deps.Store.GetKnowledge(ctx, agent.KnowledgeID); err == nil {
			keywords = KnowledgeKeywords(k, keywordMaxInput)
		}
	}

	out := KeywordOutput{Keywords: keywords, Related: []string{}, LongTail: []string{}, Trending: []string{}}
	if len(keywords) == 0 {
		return encodeOutput(out)
	}

	key := KeywordCacheKey(keywords)
	if cached, ok := s.cached(ctx, key); ok {
		cached.Cached = true
		return encodeOutput(cached)
	}

	res := s.deps.Text.AnalyzeKeywords(ctx, keywords)
	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}
	if !res.OK() {
		s.logger.Warn("keyword analysis unavailable", "agent_id", agent.ID, "error", res.Error)
		return encodeOutput(out)
	}
	var parsed struct {
		Related  []string `json:"related"`
		LongTail []string `json:"long_tail"`
		Trending []string `json:"trending"`
	}
	if err := parseModelJSON(res.Content, &parsed); err != nil {
		s.logger.Warn("keyword analysis unreadable", "agent_id", agent.ID, "error", err)
		return encodeOutput(out)
	}
	out.Related = dedupeKeywords(parsed.Related, 0)
	out.LongTail = dedupeKeywords(parsed.LongTail, 0)
	out.Trending = dedupeKeywords(parsed.Trending, 0)
	for _, b := range []*[]string{&out.Related, &out.LongTail, &out.Trending} {
		if *b == nil {
			*b = []string{}
		}
	}

	if in.Seed != "" {
		if ideas := s.deps.Text.GenerateKeywordIdeas(ctx, in.Seed, keywordIdeaCount); ideas.OK() {
			out.Ideas = dedupeKeywords(splitLines(ideas.Content), keywordIdeaCount)
		}
	}

	s.store(ctx, key, out)
	return encodeOutput(out)
}

func (s *KeywordResearcher) cached(ctx context.Context, key string) (KeywordOutput, bool) {
	var out KeywordOutput
	if s.deps.Cache == nil {
		return out, false
	}
	b, ok, err := s.deps.Cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("keyword cache read failed", "key", key, "error", err)
		return out, false
	}
	if !ok || json.Unmarshal(b, &out) != nil {
		return out, false
	}
	return out, true
}

func (s *KeywordResearcher) store(ctx context.Context, key string, out KeywordOutput) {
	if s.deps.Cache == nil {
		return
	}
	b, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := s.deps.Cache.SetEx(ctx, key, b, keywordCacheTTL); err != nil {
		s.logger.Warn("keyword cache write failed", "key", key, "error", err)
	}
}

// KeywordCacheKey is keyword_research:<first 8 hex of md5(sorted lower-cased keywords)>.
func KeywordCacheKey(keywords []string) string {
	norm := make([]string, len(keywords))
	for i, k := range keywords {
		norm[i] = strings.ToLower(strings.TrimSpace(k))
	}
	slices.Sort(norm)
	sum := md5.Sum([]byte(strings.Join(norm, ",")))
	return keywordCachePrefix + hex.EncodeToString(sum[:])[:8]
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// splitLines turns a one-per-line answer into entries, dropping list markers.
func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
