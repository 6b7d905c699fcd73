package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/appforge/engine/internal/llm"
	appErr "github.com/appforge/engine/pkg/errors"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, messages []llm.Message, maxTokens int) (string, error) {
	args := m.Called(ctx, messages, maxTokens)
	return args.String(0), args.Error(1)
}

func (m *mockCompleter) Stream(ctx context.Context, messages []llm.Message, maxTokens int, onChunk func(string)) error {
	args := m.Called(ctx, messages, maxTokens, onChunk)
	return args.Error(0)
}

const validReply = `Here is the plan you asked for:
{
  "projectName": "todo-app",
  "description": "A todo list app with login",
  "framework": "nextjs",
  "features": ["auth", "todo-crud"],
  "needsDatabase": true,
  "database": {"tables": [{"name": "todos", "fields": ["title:text", "done:bool"]}]}
}
Let me know if you need anything else.`

func TestAnalyzeParsesSurroundedJSON(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, maxAnalysisTokens).Return(validReply, nil).Once()

	spec, err := New(c).Analyze(context.Background(), "a todo list app with login")
	require.NoError(t, err)
	require.Equal(t, "todo-app", spec.ProjectName)
	require.Equal(t, "nextjs", spec.Framework)
	require.True(t, spec.NeedsDatabase)
	require.Equal(t, []string{"auth", "todo-crud"}, spec.Features)
	require.Len(t, spec.Database.Tables, 1)
	c.AssertExpectations(t)
}

func TestAnalyzeNoJSONObject(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("I cannot produce a plan for that.", nil).Once()

	_, err := New(c).Analyze(context.Background(), "nonsense")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeSpecUnparseable))
}

func TestAnalyzeMissingRequiredField(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"description": "something", "framework": "nextjs", "features": ["x"]}`, nil).Once()

	_, err := New(c).Analyze(context.Background(), "an app")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeSpecUnparseable))
}

func TestAnalyzeUnknownFramework(t *testing.T) {
	c := &mockCompleter{}
	c.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Return(`{"projectName": "x-app", "description": "x", "framework": "rails", "features": ["x"]}`, nil).Once()

	_, err := New(c).Analyze(context.Background(), "an app")
	require.Error(t, err)
	require.True(t, appErr.IsCode(err, appErr.CodeSpecUnparseable))
}

func TestExtractJSONObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		out  string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"nested braces", `before {"a":{"b":2}} after`, `{"a":{"b":2}}`, true},
		{"brace inside string", `{"a":"}"}`, `{"a":"}"}`, true},
		{"escaped quote", `{"a":"\"}"}`, `{"a":"\"}"}`, true},
		{"no object", "plain text", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, ok := extractJSONObject(tc.in)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.out, out)
		})
	}
}
