package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "bare", raw: "SELECT 1", want: "SELECT 1"},
		{name: "surrounding whitespace", raw: "\n\t SELECT 1 \n", want: "SELECT 1"},
		{name: "sql fence", raw: "```sql\nSELECT * FROM STUDENT\n```", want: "SELECT * FROM STUDENT"},
		{name: "upper-case fence", raw: "```SQL\nSELECT 1;\n```", want: "SELECT 1;"},
		{name: "plain fence", raw: "```\nSELECT 1\n```", want: "SELECT 1"},
		{name: "fence with space before tag", raw: "``` sql\nSELECT 1\n```", want: "SELECT 1"},
		{name: "sqlite tag", raw: "```sqlite\nSELECT 1\n```", want: "SELECT 1"},
		{name: "postgresql tag", raw: "```PostgreSQL\nSELECT 1\n```", want: "SELECT 1"},
		{name: "postgres tag", raw: "```postgres\nSELECT 1\n```", want: "SELECT 1"},
		{name: "unknown tag is kept", raw: "```sqlx\nSELECT 1\n```", want: "sqlx\nSELECT 1"},
		{name: "unterminated fence", raw: "```sql\nSELECT 1", want: "SELECT 1"},
		{name: "multi-line statement", raw: "```sql\nSELECT NAME\nFROM STUDENT\nWHERE TOTAL > 500\n```\n", want: "SELECT NAME\nFROM STUDENT\nWHERE TOTAL > 500"},
		{name: "only fences", raw: "```sql\n```", want: ""},
		{name: "empty", raw: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractSQL(tt.raw))
		})
	}
}

type fakeProvider struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func (f *fakeProvider) Name() string { return "fake" }

func TestTranslatorStripsFences(t *testing.T) {
	p := &fakeProvider{reply: "```sql\nSELECT * FROM STUDENT\n```"}
	tr := NewTranslator(p)

	got, err := tr.Translate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM STUDENT", got)
	assert.Equal(t, []string{"the prompt"}, p.prompts)
	assert.Equal(t, "fake", tr.Name())
}

func TestTranslatorBackendFailure(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tr := NewTranslator(&fakeProvider{err: cause})

	_, err := tr.Translate(context.Background(), "p")
	var te *TranslationError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fake", te.Provider)
	assert.ErrorIs(t, err, cause)
}

func TestTranslatorEmptyReply(t *testing.T) {
	for _, reply := range []string{"", "   ", "```sql\n```"} {
		tr := NewTranslator(&fakeProvider{reply: reply})
		_, err := tr.Translate(context.Background(), "p")
		var te *TranslationError
		require.ErrorAs(t, err, &te, "reply %q", reply)
		assert.Contains(t, te.Error(), "no SQL")
	}
}

func TestNewProvider(t *testing.T) {
	ctx := context.Background()

	_, err := NewProvider(ctx, Config{Provider: "openai"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewProvider(ctx, Config{Provider: "cohere", APIKey: "k"})
	assert.ErrorContains(t, err, "unknown LLM provider")

	p, err := NewProvider(ctx, Config{Provider: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())

	p, err = NewProvider(ctx, Config{Provider: "anthropic", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", p.Name())

	p, err = NewProvider(ctx, Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
}
