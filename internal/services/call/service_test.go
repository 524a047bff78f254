package call

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClareAI/astra-voice-webhook/internal/config"
	"github.com/ClareAI/astra-voice-webhook/internal/core/model/provider"
	"github.com/ClareAI/astra-voice-webhook/internal/core/session"
	"github.com/ClareAI/astra-voice-webhook/internal/domain"
	"github.com/ClareAI/astra-voice-webhook/internal/prompts"
	"github.com/ClareAI/astra-voice-webhook/internal/services/knowledge"
	"github.com/ClareAI/astra-voice-webhook/internal/services/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func (n xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n xmlNode) names() []string {
	out := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c.XMLName.Local)
	}
	return out
}

func parseDoc(t *testing.T, doc string) xmlNode {
	t.Helper()
	var root xmlNode
	require.NoError(t, xml.Unmarshal([]byte(doc), &root), doc)
	require.Equal(t, "Response", root.XMLName.Local)
	return root
}

type fakeCompleter struct {
	mu       sync.Mutex
	reply    func(req provider.ChatRequest) (string, error)
	requests []provider.ChatRequest
}

func (f *fakeCompleter) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.reply(req)
}

func (f *fakeCompleter) GetProviderType() provider.ProviderType {
	return provider.ProviderTypeOpenAI
}

func echoCompleter() *fakeCompleter {
	return &fakeCompleter{reply: func(req provider.ChatRequest) (string, error) {
		return "echo: " + req.UserInput, nil
	}}
}

type fakeRecorder struct {
	mu     sync.Mutex
	starts []string
	async  []string
}

func (f *fakeRecorder) Start(ctx context.Context, callSID string) recording.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, callSID)
	return recording.OutcomeRetrying
}

func (f *fakeRecorder) StartAsync(ctx context.Context, callSID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.async = append(f.async, callSID)
}

type failingFetcher struct{}

func (failingFetcher) FetchSystemPrompt(ctx context.Context) (string, error) {
	return "", errors.New("offline")
}

func (failingFetcher) FetchKnowledgeBase(ctx context.Context) (*knowledge.Document, error) {
	return nil, errors.New("offline")
}

type testEnv struct {
	cfg       *config.VoiceWebhookConfig
	store     *session.MemoryStore
	completer *fakeCompleter
	recorder  *fakeRecorder
	service   *VoiceService
}

func newTestEnv(t *testing.T, completer *fakeCompleter) *testEnv {
	t.Helper()
	env := &testEnv{
		cfg:       config.DefaultVoiceWebhookConfig(),
		store:     session.NewMemoryStore(),
		completer: completer,
		recorder:  &fakeRecorder{},
	}
	env.cfg.OpenAIAPIKey = "sk-test"
	env.service = NewVoiceService(env.cfg, env.store, knowledge.NewLoader(failingFetcher{}), completer, env.recorder)
	return env
}

func speech(callSID, text string) domain.VoiceEvent {
	return domain.VoiceEvent{CallSID: callSID, CallStatus: "in-progress", SpeechResult: text, Confidence: "0.92"}
}

func TestHandleVoice_InitialCallWelcomes(t *testing.T) {
	env := newTestEnv(t, echoCompleter())

	root := parseDoc(t, env.service.HandleVoice(context.Background(), domain.VoiceEvent{CallSID: "CA1", CallStatus: "ringing"}))

	require.Equal(t, []string{"Say", "Pause", "Gather", "Say"}, root.names())
	assert.Equal(t, prompts.WelcomeLine, root.Children[0].Text)
	assert.Equal(t, config.DefaultVoice, root.Children[0].attr("voice"))
	assert.Equal(t, config.DefaultLanguage, root.Children[0].attr("language"))
	assert.Equal(t, "1", root.Children[1].attr("length"))

	gather := root.Children[2]
	assert.Equal(t, "speech", gather.attr("input"))
	assert.Equal(t, "60", gather.attr("timeout"))
	assert.Equal(t, "1", gather.attr("speechTimeout"))
	assert.Equal(t, "/voice-handler", gather.attr("action"))
	assert.Equal(t, "POST", gather.attr("method"))
	require.Len(t, gather.Children, 1)
	assert.Equal(t, prompts.InitialPromptLine, gather.Children[0].Text)
	assert.Equal(t, config.DefaultVoice, gather.Children[0].attr("voice"))

	assert.Equal(t, prompts.NoInputLine, root.Children[3].Text)
	assert.Equal(t, []string{"CA1"}, env.recorder.async)
	assert.Empty(t, env.recorder.starts)
}

func TestHandleVoice_RecordOnAnswerDisabled(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	env.cfg.RecordOnAnswer = false

	env.service.HandleVoice(context.Background(), domain.VoiceEvent{CallSID: "CA1"})
	assert.Empty(t, env.recorder.async)
}

func TestHandleVoice_SecondSilentEventContinues(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	env.service.HandleVoice(ctx, domain.VoiceEvent{CallSID: "CA1"})
	root := parseDoc(t, env.service.HandleVoice(ctx, domain.VoiceEvent{CallSID: "CA1"}))

	require.Equal(t, []string{"Gather", "Say"}, root.names())
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, prompts.ReEngageLine, root.Children[0].Children[0].Text)
	assert.Equal(t, prompts.NoInputLine, root.Children[1].Text)
	assert.Len(t, env.recorder.async, 1, "recording is primed once per call")
}

func TestHandleVoice_DialStatusOrDigitsContinue(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	for _, event := range []domain.VoiceEvent{
		{CallSID: "CA1", DialCallStatus: domain.DialStatusNoAnswer},
		{CallSID: "CA2", Digits: "1"},
	} {
		root := parseDoc(t, env.service.HandleVoice(ctx, event))
		assert.Equal(t, []string{"Gather", "Say"}, root.names())
	}
	assert.Empty(t, env.recorder.async)
}

func TestHandleVoice_NotConfigured(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	env.service = NewVoiceService(env.cfg, env.store, knowledge.NewLoader(failingFetcher{}), nil, env.recorder)

	root := parseDoc(t, env.service.HandleVoice(context.Background(), speech("CA1", "hello")))

	require.Equal(t, []string{"Say"}, root.names())
	assert.Equal(t, prompts.NotConfiguredLine, root.Children[0].Text)
}

func TestHandleVoice_SpeechTurnRepliesAndListens(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	root := parseDoc(t, env.service.HandleVoice(ctx, speech("CA1", "what is my balance")))

	require.Equal(t, []string{"Say", "Gather", "Say"}, root.names())
	assert.Equal(t, "echo: what is my balance", root.Children[0].Text)
	gather := root.Children[1]
	assert.Equal(t, "60", gather.attr("timeout"))
	assert.Equal(t, "1", gather.attr("speechTimeout"))
	assert.Empty(t, gather.Children)
	assert.Equal(t, prompts.GoodbyeLine, root.Children[2].Text)

	history, err := env.store.History(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "what is my balance"},
		{Role: domain.RoleAssistant, Content: "echo: what is my balance"},
	}, history)
}

func TestHandleVoice_SendsInstructionAndHistory(t *testing.T) {
	completer := echoCompleter()
	env := newTestEnv(t, completer)
	ctx := context.Background()

	env.service.HandleVoice(ctx, speech("CA1", "first"))
	env.service.HandleVoice(ctx, speech("CA1", "second"))

	require.Len(t, completer.requests, 2)
	req := completer.requests[1]
	assert.True(t, strings.HasPrefix(req.SystemPrompt, prompts.FallbackSystemPrompt))
	assert.Contains(t, req.SystemPrompt, prompts.KnowledgeBaseHeader)
	assert.True(t, strings.HasSuffix(req.SystemPrompt, prompts.VoiceBrevitySuffix))
	assert.Equal(t, "second", req.UserInput)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "first"},
		{Role: domain.RoleAssistant, Content: "echo: first"},
	}, req.History)
}

func TestHandleVoice_HistoryIsBounded(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	for i := 1; i <= 11; i++ {
		env.service.HandleVoice(ctx, speech("CA1", fmt.Sprintf("q%d", i)))

		history, err := env.store.History(ctx, "CA1")
		require.NoError(t, err)
		assert.Zero(t, len(history)%2)
		assert.LessOrEqual(t, len(history), domain.MaxStoredTurns)
	}

	history, err := env.store.History(ctx, "CA1")
	require.NoError(t, err)
	require.Len(t, history, domain.MaxStoredTurns)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "echo: q11", history[len(history)-1].Content)
}

func TestHandleVoice_TransferTrigger(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{reply: func(provider.ChatRequest) (string, error) {
		return "Sure. " + prompts.TransferTriggerPhrase + " now.", nil
	}})

	root := parseDoc(t, env.service.HandleVoice(context.Background(), speech("CA1", "I want a human")))

	require.Equal(t, []string{"Say", "Dial", "Say"}, root.names())
	assert.Equal(t, prompts.TransferNoticeLine, root.Children[0].Text)

	dial := root.Children[1]
	assert.Equal(t, config.DefaultTransferNumber, strings.TrimSpace(dial.Text))
	assert.Equal(t, "30", dial.attr("timeout"))
	assert.Equal(t, "record-from-ringing-dual", dial.attr("record"))
	assert.Equal(t, "/transfer-status", dial.attr("action"))
	assert.Equal(t, "POST", dial.attr("method"))

	assert.Contains(t, root.Children[2].Text, config.DefaultTransferDisplayNumber)
	assert.NotContains(t, root.names(), "Gather")
}

func TestHandleVoice_BackendFailureUsesFallback(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{reply: func(provider.ChatRequest) (string, error) {
		return "", errors.New("429 rate limited")
	}})
	ctx := context.Background()

	root := parseDoc(t, env.service.HandleVoice(ctx, speech("CA1", "hello")))

	require.Equal(t, []string{"Say", "Gather", "Say"}, root.names())
	assert.Equal(t, prompts.AIFallbackReply, root.Children[0].Text)

	history, err := env.store.History(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: prompts.AIFallbackReply},
	}, history)
}

func TestHandleVoice_PanicBecomesErrorLine(t *testing.T) {
	env := newTestEnv(t, &fakeCompleter{reply: func(provider.ChatRequest) (string, error) {
		panic("boom")
	}})

	root := parseDoc(t, env.service.HandleVoice(context.Background(), speech("CA1", "hello")))

	require.Equal(t, []string{"Say"}, root.names())
	assert.Equal(t, prompts.ErrorLine, root.Children[0].Text)
}

func TestHandleVoice_CallSwitchResetsHistory(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		reset bool
		want  int
	}{
		{name: "reset enabled", reset: true, want: 2},
		{name: "reset disabled", reset: false, want: 4},
	} {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t, echoCompleter())
			env.cfg.ResetOnCallSwitch = tc.reset

			env.service.HandleVoice(ctx, speech("CA1", "one"))
			env.service.HandleVoice(ctx, speech("CA2", "other call"))
			env.service.HandleVoice(ctx, speech("CA1", "two"))

			history, err := env.store.History(ctx, "CA1")
			require.NoError(t, err)
			assert.Len(t, history, tc.want)
		})
	}
}

func TestStartRecordingAndContinue(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	root := parseDoc(t, env.service.StartRecordingAndContinue(ctx, "CA1"))

	require.Equal(t, []string{"Gather", "Say"}, root.names())
	assert.Equal(t, prompts.InitialPromptLine, root.Children[0].Children[0].Text)
	assert.Equal(t, prompts.NoInputLine, root.Children[1].Text)
	assert.Equal(t, []string{"CA1"}, env.recorder.starts)

	// the welcome is not replayed after the delayed-recording path
	next := parseDoc(t, env.service.HandleVoice(ctx, domain.VoiceEvent{CallSID: "CA1"}))
	assert.Equal(t, []string{"Gather", "Say"}, next.names())
	assert.Empty(t, env.recorder.async)
}

func TestHandleTransferStatus(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	tests := []struct {
		status string
		want   string
	}{
		{domain.DialStatusBusy, prompts.TransferBusyLine(config.DefaultTransferDisplayNumber)},
		{domain.DialStatusNoAnswer, prompts.TransferNoAnswerLine(config.DefaultTransferDisplayNumber)},
		{domain.DialStatusFailed, prompts.TransferUnavailableLine(config.DefaultTransferDisplayNumber)},
		{domain.DialStatusCanceled, prompts.TransferUnavailableLine(config.DefaultTransferDisplayNumber)},
		{"weird", prompts.TransferUnexpectedLine(config.DefaultTransferDisplayNumber)},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			root := parseDoc(t, env.service.HandleTransferStatus(ctx, domain.TransferEvent{CallSID: "CA1", DialCallStatus: tt.status}))
			require.Equal(t, []string{"Say"}, root.names())
			assert.Equal(t, tt.want, root.Children[0].Text)
			assert.Contains(t, root.Children[0].Text, config.DefaultTransferDisplayNumber)
		})
	}

	root := parseDoc(t, env.service.HandleTransferStatus(ctx, domain.TransferEvent{CallSID: "CA1", DialCallStatus: domain.DialStatusCompleted, DialCallDuration: "42"}))
	assert.Empty(t, root.Children)
}

func TestHandleRecordingStatus(t *testing.T) {
	env := newTestEnv(t, echoCompleter())

	root := parseDoc(t, env.service.HandleRecordingStatus(context.Background(), domain.RecordingEvent{
		CallSID:           "CA1",
		RecordingSID:      "RE1",
		RecordingStatus:   domain.RecordingStatusCompleted,
		RecordingDuration: "31",
		RecordingURL:      "https://api.twilio.com/recordings/RE1",
	}))
	assert.Empty(t, root.Children)

	snapshot, err := env.store.Session(context.Background(), "CA1")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Turns)
}

func TestHandleVoice_InterleavedCallsKeepWelcomeAndRecording(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	ctx := context.Background()

	env.service.HandleVoice(ctx, domain.VoiceEvent{CallSID: "CA_A"})
	env.service.HandleVoice(ctx, domain.VoiceEvent{CallSID: "CA_B"})
	env.service.HandleVoice(ctx, speech("CA_A", "a1"))
	env.service.HandleVoice(ctx, speech("CA_B", "b1"))
	env.service.HandleVoice(ctx, speech("CA_A", "a2"))

	history, err := env.store.History(ctx, "CA_A")
	require.NoError(t, err)
	assert.Len(t, history, 2, "switching calls discards the history")

	root := parseDoc(t, env.service.HandleVoice(ctx, domain.VoiceEvent{CallSID: "CA_A"}))
	require.Equal(t, []string{"Gather", "Say"}, root.names())
	assert.Equal(t, prompts.ReEngageLine, root.Children[0].Children[0].Text)
	assert.Equal(t, []string{"CA_A", "CA_B"}, env.recorder.async)
}

func TestHandleVoice_SlowBackendHitsTurnDeadline(t *testing.T) {
	env := newTestEnv(t, echoCompleter())
	env.cfg.TurnTimeout = 50 * time.Millisecond
	env.service = NewVoiceService(env.cfg, env.store, knowledge.NewLoader(failingFetcher{}), blockingCompleter{}, env.recorder)
	ctx := context.Background()

	start := time.Now()
	root := parseDoc(t, env.service.HandleVoice(ctx, speech("CA1", "hello")))

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, []string{"Say", "Gather", "Say"}, root.names())
	assert.Equal(t, prompts.AIFallbackReply, root.Children[0].Text)

	history, err := env.store.History(ctx, "CA1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Turn{
		{Role: domain.RoleUser, Content: "hello"},
		{Role: domain.RoleAssistant, Content: prompts.AIFallbackReply},
	}, history)
}

// blockingCompleter waits for the caller's deadline like a stalled HTTP request
type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, req provider.ChatRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (blockingCompleter) GetProviderType() provider.ProviderType {
	return provider.ProviderTypeOpenAI
}
