package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Prompt is one question to the assistant. Context carries background facts
// such as the baby's age.
type Prompt struct {
	System   string
	Context  string
	Question string
}

// Text joins context and question into the user message.
func (p Prompt) Text() string {
	if p.Context == "" {
		return p.Question
	}
	return "Context:\n" + p.Context + "\n\nQuestion: " + p.Question
}

// Provider produces an answer from a language model.
type Provider interface {
	Name() string
	Generate(ctx context.Context, p Prompt) (string, error)
}

// AIOptions selects and configures a Provider.
type AIOptions struct {
	Kind          string
	OllamaBaseURL string
	OllamaModel   string
	OpenAIKey     string
	OpenAIBaseURL string
	OpenAIModel   string
	FastMode      bool
	Timeout       time.Duration
}

// NewProvider builds the provider named by opts.Kind. Unknown kinds, and openai
// without a key, fall back to the mock provider.
func NewProvider(opts AIOptions) Provider {
	switch opts.Kind {
	case ProviderOllama:
		return NewOllamaProvider(opts.OllamaBaseURL, opts.OllamaModel, opts.FastMode, opts.Timeout)
	case ProviderOpenAI:
		if opts.OpenAIKey == "" {
			return MockProvider{}
		}
		return NewOpenAIProvider(opts.OpenAIKey, opts.OpenAIBaseURL, opts.OpenAIModel, opts.FastMode)
	default:
		return MockProvider{}
	}
}

// ---------- Ollama ----------

type OllamaProvider struct {
	client   *http.Client
	baseURL  string
	model    string
	fastMode bool
}

func NewOllamaProvider(baseURL, model string, fastMode bool, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    model,
		fastMode: fastMode,
	}
}

func (p *OllamaProvider) Name() string { return ProviderOllama }

func (p *OllamaProvider) Generate(ctx context.Context, prompt Prompt) (string, error) {
	predict := 400
	if p.fastMode {
		predict = 200
	}
	body := map[string]any{
		"model":  p.model,
		"prompt": prompt.System + "\n\n" + prompt.Text(),
		"stream": false,
		"options": map[string]any{
			"temperature":    0.7,
			"top_p":          0.9,
			"num_predict":    predict,
			"repeat_penalty": 1.1,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request error: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ollama response error: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var oErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBytes, &oErr) == nil && oErr.Error != "" {
			return "", fmt.Errorf("ollama error (%d): %s", resp.StatusCode, oErr.Error)
		}
		return "", fmt.Errorf("ollama error (%d): %s", resp.StatusCode, preview(respBytes))
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(respBytes, &out); err != nil {
		return "", fmt.Errorf("decode ollama response error: %v | body: %s", err, preview(respBytes))
	}
	if strings.TrimSpace(out.Response) == "" {
		return "", fmt.Errorf("empty answer from ollama")
	}
	return strings.TrimSpace(out.Response), nil
}

func preview(b []byte) string {
	s := string(b)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// ---------- OpenAI-compatible ----------

type OpenAIProvider struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAIProvider talks to api.openai.com, or to baseURL when it is set.
func NewOpenAIProvider(apiKey, baseURL, model string, fastMode bool) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	maxTokens := 500
	if fastMode {
		maxTokens = 300
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg), model: model, maxTokens: maxTokens}
}

func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

func (p *OpenAIProvider) Generate(ctx context.Context, prompt Prompt) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System},
			{Role: openai.ChatMessageRoleUser, Content: prompt.Text()},
		},
		MaxTokens:   p.maxTokens,
		Temperature: 0.7,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty answer from openai")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ---------- Mock ----------

// MockProvider answers from canned advice picked by keywords in the question.
// It never fails.
type MockProvider struct{}

func (MockProvider) Name() string { return ProviderMock }

func (MockProvider) Generate(_ context.Context, p Prompt) (string, error) {
	return MockAnswer(p.Question), nil
}

type cannedAnswer struct {
	keywords []string
	answer   string
}

// Order matters: the first topic with a matching keyword wins.
var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"哭", "闹", "烦躁", "不安", "cry", "crying", "fussy", "colic"},
		answer: "Crying is normal for babies. You can try:\n1. Check whether the baby is hungry, tired or needs a diaper change\n" +
			"2. Gentle stroking and soft soothing words\n3. Hold and rock the baby slowly\n4. Play soft music\n" +
			"5. If crying persists, consult a pediatrician",
	},
	{
		keywords: []string{"睡", "哄睡", "夜醒", "sleep", "napping", "bedtime", "waking"},
		answer: "About sleep:\n1. Keep regular sleep times\n2. Make the room quiet and comfortable\n" +
			"3. Use calm routines before bed such as a bath or a massage\n4. Avoid overstimulation\n" +
			"5. Be patient, every baby has different sleep habits",
	},
	{
		keywords: []string{"吃", "喂", "奶", "饭", "厌食", "挑食", "feed", "feeding", "milk", "formula", "eating", "bottle"},
		answer: "About feeding:\n1. Keep regular feeding times\n2. Keep meals calm and pleasant\n3. Never force the baby to eat\n" +
			"4. Offer different foods and tastes as the baby grows\n5. If the baby keeps refusing food, consult a pediatrician",
	},
	{
		keywords: []string{"发烧", "感冒", "生病", "体温", "健康", "症状", "fever", "cold", "sick", "temperature", "health", "symptom"},
		answer: "About health:\n1. Measure temperature regularly, 36.5-37.5°C is normal\n2. Watch the baby's energy and mood\n" +
			"3. Keep the surroundings clean\n4. See a pediatrician promptly for unusual symptoms\n" +
			"5. Prevention beats cure, keep up daily care",
	},
	{
		keywords: []string{"发育", "成长", "身高", "体重", "里程碑", "能力", "growth", "develop", "height", "weight", "milestone"},
		answer: "About development:\n1. Every baby grows at its own pace, avoid comparing\n2. Interact a lot to support brain development\n" +
			"3. Offer rich sensory experiences\n4. Keep up regular check-ups\n5. Consult a pediatrician if you have concerns",
	},
	{
		keywords: []string{"安全", "危险", "防护", "意外", "受伤", "safety", "danger", "accident", "injury"},
		answer: "About safety:\n1. Remove dangerous objects from the baby's reach\n2. Use a car seat and protective gear\n" +
			"3. Never leave the baby alone on a high surface\n4. Learn basic first aid\n5. Check toys and supplies regularly",
	},
	{
		keywords: []string{"情感", "情绪", "心理", "安全感", "依恋", "emotion", "mood", "attachment", "bonding"},
		answer: "About emotional development:\n1. Make eye contact and plenty of physical contact\n2. Respond to the baby's needs promptly\n" +
			"3. Keep a warm and safe home\n4. Keep a stable daily routine\n5. Give plenty of love and attention",
	},
}

const defaultCannedAnswer = "Thanks for your question! As a parenting assistant I suggest:\n1. Be patient, every baby is unique\n" +
	"2. Observe the baby's behaviour and needs\n3. Keep a regular daily routine\n4. Consult a doctor when in doubt\n" +
	"5. Trust your instincts, you know your baby best"

// MockAnswer picks canned advice by keyword.
func MockAnswer(prompt string) string {
	p := strings.ToLower(prompt)
	for _, c := range cannedAnswers {
		for _, k := range c.keywords {
			if strings.Contains(p, k) {
				return c.answer
			}
		}
	}
	return defaultCannedAnswer
}
