package llm

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
)

// fakeModel returns scripted results per attempt, recording the messages it
// was called with.
type fakeModel struct {
	replies []string
	errs    []error
	calls   int
	lastMsg []llms.MessageContent
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	i := f.calls
	f.calls++
	f.lastMsg = messages
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	reply := ""
	if i < len(f.replies) {
		reply = f.replies[i]
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: reply}},
	}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	resp, err := f.GenerateContent(ctx, []llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)}, options...)
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Content, nil
}

// noSleep replaces real waiting and records the requested durations.
func noSleep(waits *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
}

func newTestGateway(model llms.Model, waits *[]time.Duration) *Gateway {
	g := NewWithModel(model, zap.NewNop())
	g.sleep = noSleep(waits)
	return g
}

func TestGenerateSuccess(t *testing.T) {
	model := &fakeModel{replies: []string{"hello there"}}
	var waits []time.Duration
	g := newTestGateway(model, &waits)

	got, err := g.Generate(context.Background(), []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	}, 0.7, 256)
	require.NoError(t, err)
	assert.Equal(t, "hello there", got)
	assert.Equal(t, 1, model.calls)
	assert.Empty(t, waits)
	require.Len(t, model.lastMsg, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.lastMsg[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.lastMsg[1].Role)
}

func TestGenerateRecoversAfterTransientFailures(t *testing.T) {
	model := &fakeModel{
		errs:    []error{errors.New("502 bad gateway"), errors.New("connection reset by peer"), nil},
		replies: []string{"", "", "ok"},
	}
	var waits []time.Duration
	g := newTestGateway(model, &waits)

	got, err := g.Generate(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0.7, 256)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, model.calls)
	assert.Len(t, waits, 2)
}

func TestGenerateExhaustsRetriesWithTypedError(t *testing.T) {
	model := &fakeModel{
		errs: []error{
			context.DeadlineExceeded,
			context.DeadlineExceeded,
			context.DeadlineExceeded,
		},
	}
	var waits []time.Duration
	g := newTestGateway(model, &waits)

	_, err := g.Generate(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0.7, 256)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindTimeout, perr.Kind)
	assert.Equal(t, 3, model.calls)
	assert.Len(t, waits, 2)
}

func TestGenerateRateLimitWaitsFlatMinute(t *testing.T) {
	model := &fakeModel{
		errs:    []error{errors.New("429 too many requests"), nil},
		replies: []string{"", "ok"},
	}
	var waits []time.Duration
	g := newTestGateway(model, &waits)

	got, err := g.Generate(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0.7, 256)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	require.Len(t, waits, 1)
	assert.Equal(t, 60*time.Second, waits[0])
}

func TestGenerateFatalErrorNotRetried(t *testing.T) {
	model := &fakeModel{errs: []error{errors.New("401 invalid api key")}}
	var waits []time.Duration
	g := newTestGateway(model, &waits)

	_, err := g.Generate(context.Background(), []ChatMessage{{Role: "user", Content: "hi"}}, 0.7, 256)
	require.Error(t, err)

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, KindFatal, perr.Kind)
	assert.False(t, perr.Retryable())
	assert.Equal(t, 1, model.calls)
	assert.Empty(t, waits)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"rate limit text", errors.New("rate limit exceeded"), KindRateLimited},
		{"status 429", errors.New("API returned unexpected status code: 429"), KindRateLimited},
		{"status 503", errors.New("API returned unexpected status code: 503"), KindTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), KindTransient},
		{"unexpected eof", errors.New("unexpected EOF"), KindTransient},
		{"typed eof", io.ErrUnexpectedEOF, KindTransient},
		{"bad request", errors.New("API returned unexpected status code: 400"), KindFatal},
		{"500 inside an id stays fatal", errors.New("task id abc500def not found"), KindFatal},
		{"429 inside a token stays fatal", errors.New("object item4290 rejected"), KindFatal},
		{"eof inside a word stays fatal", errors.New("geofence violation"), KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err).Kind)
		})
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("boom 500")
	perr := classify(inner)
	assert.Equal(t, KindTransient, perr.Kind)
	assert.ErrorIs(t, perr, inner)
	assert.Contains(t, perr.Error(), "transient")
}
