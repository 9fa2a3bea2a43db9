package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sandor-zhong/baby-chengcheng/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOllama records generate requests and answers with a fixed status and body.
type fakeOllama struct {
	mu      sync.Mutex
	status  int
	reply   string
	prompts []string
	options []map[string]any
}

func (o *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Model   string         `json:"model"`
		Prompt  string         `json:"prompt"`
		Stream  bool           `json:"stream"`
		Options map[string]any `json:"options"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	o.mu.Lock()
	o.prompts = append(o.prompts, req.Prompt)
	o.options = append(o.options, req.Options)
	status, reply := o.status, o.reply
	o.mu.Unlock()

	if r.URL.Path != "/api/generate" || req.Stream {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "model not loaded"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"response": " " + reply + " ", "done": true})
}

func (o *fakeOllama) calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.prompts)
}

func (o *fakeOllama) lastPrompt() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.prompts) == 0 {
		return ""
	}
	return o.prompts[len(o.prompts)-1]
}

type aiFixture struct {
	ollama   *fakeOllama
	events   *eventFixture
	moments  *MomentService
	profiles *ProfileService
	svc      *AIService
}

func newAIFixture(t *testing.T, status int, cacheTTL time.Duration, fast bool) *aiFixture {
	f := &aiFixture{ollama: &fakeOllama{status: status, reply: "Burp the baby after each feed."}}
	srv := httptest.NewServer(f.ollama)
	t.Cleanup(srv.Close)

	f.events = newEventFixture(t)
	f.moments = NewMomentService(f.events.db, nil, f.events.clock.Now, nil, testLog)
	f.profiles = NewProfileService(t.TempDir(), nil, ImageOverrides{}, f.events.clock.Now, testLog)

	opts := AIOptions{
		Kind:          ProviderOllama,
		OllamaBaseURL: srv.URL + "/",
		OllamaModel:   "qwen2.5:3b",
		FastMode:      fast,
		Timeout:       5 * time.Second,
	}
	f.svc = NewAIService(NewProvider(opts), opts, cacheTTL, f.events.svc, f.moments, f.profiles, nil, testLog)
	return f
}

func TestNewProviderSelection(t *testing.T) {
	assert.Equal(t, ProviderOllama, NewProvider(AIOptions{Kind: "ollama"}).Name())
	assert.Equal(t, ProviderOpenAI, NewProvider(AIOptions{Kind: "openai", OpenAIKey: "sk-test"}).Name())
	assert.Equal(t, ProviderMock, NewProvider(AIOptions{Kind: "openai"}).Name())
	assert.Equal(t, ProviderMock, NewProvider(AIOptions{Kind: "llama.cpp"}).Name())
}

func TestChatUsesProviderAndCache(t *testing.T) {
	f := newAIFixture(t, http.StatusOK, time.Hour, true)
	ctx := context.Background()

	_, err := f.profiles.Save(1, "Chengcheng", "2024-02-05")
	require.NoError(t, err)

	_, err = f.svc.Chat(ctx, 1, "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	a, err := f.svc.Chat(ctx, 1, "How often should she burp?")
	require.NoError(t, err)
	assert.Equal(t, Answer{Text: "Burp the baby after each feed.", Source: ProviderOllama}, a)
	assert.Contains(t, f.ollama.lastPrompt(), "Baby age: 3 months 5 days")
	assert.Contains(t, f.ollama.lastPrompt(), "Question: How often should she burp?")
	assert.Contains(t, f.ollama.lastPrompt(), "under 100 words")
	assert.EqualValues(t, 200, f.ollama.options[0]["num_predict"])

	again, err := f.svc.Chat(ctx, 1, " How often should she burp? ")
	require.NoError(t, err)
	assert.Equal(t, "cache", again.Source)
	assert.Equal(t, a.Text, again.Text)
	assert.Equal(t, 1, f.ollama.calls())

	_, err = f.svc.Chat(ctx, 2, "How often should she burp?")
	require.NoError(t, err)
	assert.Equal(t, 2, f.ollama.calls(), "a different baby context is a different prompt")
	assert.Contains(t, f.ollama.lastPrompt(), "Baby age: unknown")
}

func TestChatWithoutCache(t *testing.T) {
	f := newAIFixture(t, http.StatusOK, 0, false)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		a, err := f.svc.Chat(ctx, 1, "hello")
		require.NoError(t, err)
		assert.Equal(t, ProviderOllama, a.Source)
	}
	assert.Equal(t, 2, f.ollama.calls())
	assert.EqualValues(t, 400, f.ollama.options[0]["num_predict"])
}

func TestChatFallsBackToCannedAdvice(t *testing.T) {
	f := newAIFixture(t, http.StatusInternalServerError, time.Hour, true)
	ctx := context.Background()

	a, err := f.svc.Chat(ctx, 1, "Why is my baby crying at night?")
	require.NoError(t, err)
	assert.True(t, a.Fallback)
	assert.Equal(t, ProviderMock, a.Source)
	assert.Equal(t, MockAnswer("crying"), a.Text)

	_, err = f.svc.Chat(ctx, 1, "Why is my baby crying at night?")
	require.NoError(t, err)
	assert.Equal(t, 2, f.ollama.calls(), "fallback answers are not cached")
}

func TestAnalyzeMoments(t *testing.T) {
	f := newAIFixture(t, http.StatusOK, time.Hour, true)
	ctx := context.Background()

	a, err := f.svc.AnalyzeMoments(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "No moments recorded yet to analyse.", a.Text)
	assert.Zero(t, f.ollama.calls())

	img := "moments/a.jpg"
	require.NoError(t, f.events.db.Create(&models.Moment{
		UserID: 1, Content: "rolled over", ImagePath: &img, Timestamp: f.events.clock.Now(),
	}).Error)

	a, err = f.svc.AnalyzeMoments(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, a.Source)
	assert.Contains(t, f.ollama.lastPrompt(), "Content: rolled over")
	assert.Contains(t, f.ollama.lastPrompt(), "Includes a photo")
	assert.Contains(t, f.ollama.lastPrompt(), "Time: 2024-05-10 10:00")
}

func TestHealthAdviceIncludesFeeds(t *testing.T) {
	f := newAIFixture(t, http.StatusOK, time.Hour, true)
	ctx := context.Background()
	now := f.events.clock.Now()

	f.events.seed(t, 1, models.EventFeed, now.Add(-time.Hour), 120, "")
	f.events.seed(t, 1, models.EventFeed, now.Add(-4*time.Hour), 130, "")

	a, err := f.svc.HealthAdvice(ctx, 1)
	require.NoError(t, err)
	assert.False(t, a.Fallback)
	assert.Contains(t, f.ollama.lastPrompt(), "Total of the last 2 feeds: 250 ml")
}

func TestMockAnswerKeywords(t *testing.T) {
	tests := []struct {
		question string
		want     string
	}{
		{"宝宝一直哭怎么办", "Crying is normal"},
		{"How do I get him to sleep?", "About sleep"},
		{"How much formula per day?", "About feeding"},
		{"She has a fever", "About health"},
		{"Is his weight ok?", "About development"},
		{"Any accident prevention tips?", "About safety"},
		{"bonding ideas", "About emotional development"},
		{"hello there", "Thanks for your question"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Contains(t, MockAnswer(tt.question), tt.want)
		})
	}
}

func TestAnswerCacheExpiry(t *testing.T) {
	c := newAnswerCache(50 * time.Millisecond)

	c.put("k", "v")
	got, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	assert.Eventually(t, func() bool {
		_, ok := c.get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)

	disabled := newAnswerCache(0)
	disabled.put("k", "v")
	_, ok = disabled.get("k")
	assert.False(t, ok)
}

func TestAnswerCacheIsBounded(t *testing.T) {
	c := newAnswerCache(time.Hour)
	for i := 0; i <= answerCacheSize; i++ {
		c.put(fmt.Sprintf("q%d", i), "a")
	}
	assert.Equal(t, answerCacheSize, c.lru.Len())
	_, ok := c.get("q0")
	assert.False(t, ok, "the oldest answer is evicted")
	_, ok = c.get(fmt.Sprintf("q%d", answerCacheSize))
	assert.True(t, ok)
}
