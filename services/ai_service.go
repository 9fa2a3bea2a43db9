package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	analyzeMomentCount = 10
	healthFeedCount    = 5

	fastSystemPrompt = "You are a parenting assistant. Answer parenting questions in short, practical language. " +
		"Keep the answer brief (under 100 words) and give 3-5 key suggestions."
	fullSystemPrompt = "You are a professional parenting assistant who helps new parents. Answer in warm, " +
		"professional and easy to understand language. Base your advice on scientific parenting knowledge, " +
		"keep the baby's safety and health first, give practical suggestions in an encouraging tone, and " +
		"recommend seeing a doctor for medical issues."
)

// Answer is an assistant reply. Source names the provider that produced it, or
// "cache". Fallback is set when the provider failed and canned advice was used.
type Answer struct {
	Text     string `json:"answer"`
	Source   string `json:"source"`
	Fallback bool   `json:"fallback"`
}

type AIService struct {
	provider Provider
	fastMode bool
	timeout  time.Duration
	cache    *answerCache
	events   *EventService
	moments  *MomentService
	profiles *ProfileService
	metrics  *Metrics
	log      *zap.Logger
}

func NewAIService(provider Provider, opts AIOptions, cacheTTL time.Duration,
	events *EventService, moments *MomentService, profiles *ProfileService,
	metrics *Metrics, log *zap.Logger) *AIService {
	return &AIService{
		provider: provider,
		fastMode: opts.FastMode,
		timeout:  opts.Timeout,
		cache:    newAnswerCache(cacheTTL),
		events:   events,
		moments:  moments,
		profiles: profiles,
		metrics:  metrics,
		log:      log,
	}
}

func (s *AIService) Provider() string { return s.provider.Name() }

func (s *AIService) systemPrompt() string {
	if s.fastMode {
		return fastSystemPrompt
	}
	return fullSystemPrompt
}

// ask queries the provider, serving repeated prompts from the cache. A failing
// provider degrades to keyword advice, which is never cached.
func (s *AIService) ask(ctx context.Context, question, background string) Answer {
	p := Prompt{System: s.systemPrompt(), Context: background, Question: question}
	key := cacheKey(s.provider.Name(), p)
	if text, ok := s.cache.get(key); ok {
		s.metrics.aiRequest(s.provider.Name(), "cache")
		return Answer{Text: text, Source: "cache"}
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	text, err := s.provider.Generate(ctx, p)
	if err != nil {
		s.log.Warn("assistant provider failed, using canned advice",
			zap.String("provider", s.provider.Name()), zap.Error(err))
		s.metrics.aiRequest(s.provider.Name(), "fallback")
		return Answer{Text: MockAnswer(question), Source: ProviderMock, Fallback: true}
	}
	s.metrics.aiRequest(s.provider.Name(), "ok")
	s.cache.put(key, text)
	return Answer{Text: text, Source: s.provider.Name()}
}

// babyBackground describes the baby for the prompt context.
func (s *AIService) babyBackground(ctx context.Context, userID uint) string {
	pc := s.profiles.Context(ctx, userID)
	age, birth := "unknown", "unknown"
	if pc.BabyAgeText != "" {
		age = pc.BabyAgeText
	}
	if pc.BabyBirth != "" {
		birth = pc.BabyBirth
	}
	return fmt.Sprintf("Baby age: %s\nBirth date: %s", age, birth)
}

func (s *AIService) Chat(ctx context.Context, userID uint, question string) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, fmt.Errorf("%w: please enter a question", ErrInvalidInput)
	}
	return s.ask(ctx, question, s.babyBackground(ctx, userID)), nil
}

// AnalyzeMoments reviews the most recent journal entries.
func (s *AIService) AnalyzeMoments(ctx context.Context, userID uint) (Answer, error) {
	recent, err := s.moments.Recent(ctx, userID, analyzeMomentCount)
	if err != nil {
		return Answer{}, fmt.Errorf("load moments: %w", err)
	}
	if len(recent) == 0 {
		return Answer{Text: "No moments recorded yet to analyse.", Source: ProviderMock}, nil
	}

	loc := s.events.now().Location()
	var sb strings.Builder
	sb.WriteString("Please analyse the following baby growth records and give professional observations and suggestions:\n\n")
	for _, m := range recent {
		fmt.Fprintf(&sb, "Time: %s\nContent: %s\n", m.Timestamp.In(loc).Format("2006-01-02 15:04"), m.Content)
		if m.ImagePath != nil {
			sb.WriteString("Includes a photo\n")
		}
		if m.VideoPath != nil {
			sb.WriteString("Includes a video\n")
		}
		sb.WriteString("---\n")
	}
	return s.ask(ctx, sb.String(), ""), nil
}

// HealthAdvice combines the baby's age with the latest feeds.
func (s *AIService) HealthAdvice(ctx context.Context, userID uint) (Answer, error) {
	feeds, err := s.events.RecentFeeds(ctx, userID, healthFeedCount)
	if err != nil {
		return Answer{}, fmt.Errorf("load feeds: %w", err)
	}
	background := s.babyBackground(ctx, userID)
	if len(feeds) > 0 {
		total := 0
		for _, f := range feeds {
			if f.AmountML != nil {
				total += *f.AmountML
			}
		}
		background += fmt.Sprintf("\nTotal of the last %d feeds: %d ml", len(feeds), total)
	}
	question := "Based on the baby's age and feeding, give professional health advice and things to watch out for."
	return s.ask(ctx, question, background), nil
}

func cacheKey(provider string, p Prompt) string {
	h := sha256.New()
	for _, part := range []string{provider, p.System, p.Context, p.Question} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

const answerCacheSize = 512

// answerCache holds recent provider answers for ttl. A ttl of zero disables it.
type answerCache struct {
	lru *expirable.LRU[string, string]
}

func newAnswerCache(ttl time.Duration) *answerCache {
	if ttl <= 0 {
		return &answerCache{}
	}
	return &answerCache{lru: expirable.NewLRU[string, string](answerCacheSize, nil, ttl)}
}

func (c *answerCache) get(key string) (string, bool) {
	if c.lru == nil {
		return "", false
	}
	return c.lru.Get(key)
}

func (c *answerCache) put(key, text string) {
	if c.lru != nil {
		c.lru.Add(key, text)
	}
}
