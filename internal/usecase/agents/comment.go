package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"contentops/internal/domain"
	"contentops/internal/usecase/notice"
)

const (
	commentLookback    = 7 * 24 * time.Hour
	commentMaxVideos   = 10
	commentMaxComments = 50
)

var replyGuidelines = map[domain.Sentiment]string{
	domain.SentimentPositive: "Thank the viewer warmly and invite them to the next video.",
	domain.SentimentNegative: "Acknowledge the concern calmly, apologize where fair and say how we will improve.",
	domain.SentimentQuestion: "Answer the question directly; if unsure, promise to follow up in a future video.",
	domain.SentimentNeutral:  "Thank the viewer for watching and add one relevant detail from the video.",
}

var (
	positiveMarkers = []string{"ありがとう", "最高", "素晴らしい", "好き", "助かり", "great", "love", "awesome", "thanks", "thank you", "amazing", "helpful"}
	negativeMarkers = []string{"最悪", "つまらない", "嫌い", "残念", "ひどい", "bad", "worst", "hate", "boring", "terrible", "disappointed"}
)

// ProcessedVideo summarizes one video's comment pass.
type ProcessedVideo struct {
	VideoID  string `json:"video_id"`
	Title    string `json:"title"`
	Comments int    `json:"comments"`
	Replies  int    `json:"replies"`
}

// CommentOutput is the Comment Responder result.
type CommentOutput struct {
	CommentsProcessed int              `json:"comments_processed"`
	RepliesGenerated  int              `json:"replies_generated"`
	VideosProcessed   int              `json:"videos_processed"`
	ProcessedVideos   []ProcessedVideo `json:"processed_videos"`
}

// CommentResponder drafts replies to recent comments for approval.
type CommentResponder struct {
	deps   Deps
	logger *slog.Logger
}

// NewCommentResponder creates the service.
func NewCommentResponder(d Deps) *CommentResponder {
	return &CommentResponder{deps: d, logger: d.logger(domain.AgentCommentResponder)}
}

// Execute drafts one reply per comment not yet queued on the agent's recent uploads.
func (s *CommentResponder) Execute(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, _ json.RawMessage) (json.RawMessage, error) {
	since := s.deps.now().Add(-commentLookback)
	videos, err := s.deps.Store.ListPublishedVideos(ctx, agent.KnowledgeID, since, commentMaxVideos)
	if err != nil {
		return nil, domain.WrapOp("CommentResponder.Execute", err)
	}

	out := CommentOutput{ProcessedVideos: []ProcessedVideo{}}
	withReplies := 0
	for _, v := range videos {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}
		pv, err := s.processVideo(ctx, agent, task, v)
		if err != nil {
			return nil, err
		}
		out.VideosProcessed++
		out.CommentsProcessed += pv.Comments
		out.RepliesGenerated += pv.Replies
		if pv.Replies > 0 {
			withReplies++
		}
		out.ProcessedVideos = append(out.ProcessedVideos, pv)
	}

	if out.RepliesGenerated > 0 {
		notice.NotifyCommentsPending(ctx, s.deps.Notifier, out.RepliesGenerated, withReplies)
	}
	s.logger.Info("comment pass finished", "agent_id", agent.ID, "videos", out.VideosProcessed, "replies", out.RepliesGenerated)
	return encodeOutput(out)
}

func (s *CommentResponder) processVideo(ctx context.Context, agent *domain.Agent, task *domain.AgentTask, v *domain.PublishedVideo) (ProcessedVideo, error) {
	pv := ProcessedVideo{VideoID: v.PlatformVideoID, Title: v.Title}
	for _, c := range s.deps.Video.GetVideoComments(ctx, v.PlatformVideoID, commentMaxComments) {
		if err := checkCancelled(ctx); err != nil {
			return pv, err
		}
		queued, err := s.deps.Store.CommentQueued(ctx, c.ID)
		if err != nil {
			return pv, domain.WrapOp("CommentResponder.processVideo", err)
		}
		if queued {
			continue
		}
		pv.Comments++

		entry, ok := s.draft(ctx, agent, v, c)
		if !ok {
			continue
		}
		entry.TaskID = task.ID
		added, err := s.deps.Store.CreateCommentQueueEntry(ctx, entry)
		if err != nil {
			return pv, domain.WrapOp("CommentResponder.processVideo", err)
		}
		if added {
			pv.Replies++
		}
	}
	return pv, nil
}

// draft classifies the comment and produces a reply from a template or the
// text vendor. ok is false when no reply could be produced.
func (s *CommentResponder) draft(ctx context.Context, agent *domain.Agent, v *domain.PublishedVideo, c domain.Comment) (*domain.CommentQueueEntry, bool) {
	sentiment := s.classify(ctx, c.Text)
	entry := &domain.CommentQueueEntry{
		AgentID:          agent.ID,
		KnowledgeID:      agent.KnowledgeID,
		VideoID:          v.PlatformVideoID,
		VideoTitle:       v.Title,
		SourceCommentID:  c.ID,
		Author:           c.Author,
		OriginalText:     c.Text,
		Sentiment:        sentiment,
		IsQuestion:       sentiment == domain.SentimentQuestion,
		State:            domain.CommentPending,
		RequiresApproval: true,
		CreatedAt:        s.deps.now(),
	}

	tpl := s.template(ctx, agent.KnowledgeID, sentiment)
	if tpl != nil && !tpl.UseAIGeneration {
		entry.ReplyText = RenderTemplate(tpl.TemplateText, c.Author, v.Title)
		entry.GeneratedBy = domain.GeneratorTemplate
		entry.TemplateID = tpl.ID
		return entry, true
	}

	guideline := replyGuidelines[sentiment]
	if tpl != nil {
		guideline = RenderTemplate(tpl.TemplateText, c.Author, v.Title)
		entry.TemplateID = tpl.ID
	}
	res := s.deps.Text.GenerateCommentReply(ctx, domain.CommentReplyRequest{
		Author:     c.Author,
		Comment:    c.Text,
		VideoTitle: v.Title,
		Sentiment:  sentiment,
		Guideline:  guideline,
	})
	if !res.OK() {
		s.logger.Debug("reply generation failed, skipping comment", "comment_id", c.ID, "error", res.Error)
		return nil, false
	}
	entry.ReplyText = strings.TrimSpace(res.Content)
	entry.GeneratedBy = domain.GeneratorAI
	return entry, true
}

func (s *CommentResponder) template(ctx context.Context, knowledgeID string, sentiment domain.Sentiment) *domain.CommentTemplate {
	tpls, err := s.deps.Store.ListCommentTemplates(ctx, knowledgeID, sentiment)
	if err != nil {
		s.logger.Warn("template lookup failed", "sentiment", string(sentiment), "error", err)
		return nil
	}
	for _, t := range tpls {
		if t.IsActive {
			return t
		}
	}
	return nil
}

// classify labels a comment. A question mark always wins; otherwise the
// text vendor is asked and the keyword heuristic covers its failures.
func (s *CommentResponder) classify(ctx context.Context, text string) domain.Sentiment {
	if IsQuestion(text) {
		return domain.SentimentQuestion
	}
	if s.deps.Text.Available() {
		if res := s.deps.Text.ClassifySentiment(ctx, text); res.OK() {
			if sent, ok := domain.ParseSentiment(res.Content); ok {
				return sent
			}
		}
	}
	return HeuristicSentiment(text)
}

// IsQuestion reports whether text contains a half- or full-width question mark.
func IsQuestion(text string) bool {
	return strings.ContainsAny(text, "?？")
}

// HeuristicSentiment is the keyword fallback classifier.
func HeuristicSentiment(text string) domain.Sentiment {
	if IsQuestion(text) {
		return domain.SentimentQuestion
	}
	lower := strings.ToLower(text)
	for _, m := range negativeMarkers {
		if strings.Contains(lower, m) {
			return domain.SentimentNegative
		}
	}
	for _, m := range positiveMarkers {
		if strings.Contains(lower, m) {
			return domain.SentimentPositive
		}
	}
	return domain.SentimentNeutral
}

// RenderTemplate fills {{author}} and {{video_title}}.
func RenderTemplate(text, author, videoTitle string) string {
	return strings.NewReplacer("{{author}}", author, "{{video_title}}", videoTitle).Replace(text)
}
