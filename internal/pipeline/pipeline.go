// Package pipeline runs one natural-language question through example
// selection, prompting, translation, validation and execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JonMunkholm/askdb/internal/database"
	"github.com/JonMunkholm/askdb/internal/examples"
	"github.com/JonMunkholm/askdb/internal/metrics"
	"github.com/JonMunkholm/askdb/internal/prompt"
)

// ErrMissingQuestion is returned for a blank question.
var ErrMissingQuestion = errors.New("question is required")

// Translator turns a prompt into a candidate SQL statement.
type Translator interface {
	Translate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// SQLRunner validates and executes candidate SQL.
type SQLRunner interface {
	Validate(ctx context.Context, candidate string) bool
	Execute(ctx context.Context, query string) (database.ResultSet, error)
}

// State is a step of a single request.
type State string

const (
	StateIdle          State = "idle"
	StateSelecting     State = "selecting"
	StatePrompting     State = "prompting"
	StateTranslating   State = "translating"
	StateValidating    State = "validating"
	StateExecuting     State = "executing"
	StateInvalidSyntax State = "invalid_syntax"
	StateDone          State = "done"
)

// Outcome is what one request produced. When Valid is false the query was
// never executed. ExecErr is set when execution was attempted and failed.
type Outcome struct {
	RequestID string
	Question  string
	Example   examples.Example
	SQL       string
	Valid     bool
	Result    *database.ResultSet
	ExecErr   *database.ExecutionError
	States    []State
	Duration  time.Duration
}

// Pipeline wires the stages together. The corpus is shared read-only across
// concurrent Run calls; everything else is per request.
type Pipeline struct {
	corpus     *examples.Corpus
	translator Translator
	runner     SQLRunner
	logger     *zap.Logger
}

// New returns a Pipeline. A nil logger discards log output.
func New(corpus *examples.Corpus, translator Translator, runner SQLRunner, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		corpus:     corpus,
		translator: translator,
		runner:     runner,
		logger:     logger,
	}
}

// Run answers question. Selection and translation failures are returned as
// errors and stop the request. An invalid candidate and a failed execution
// are both reported through Outcome with a nil error.
func (p *Pipeline) Run(ctx context.Context, question string) (Outcome, error) {
	start := time.Now()
	out, log := p.newOutcome(question)

	if err := p.generate(ctx, question, &out, log); err != nil {
		p.finish(&out, log, start, metrics.OutcomeFailed)
		return out, err
	}

	// Validating
	out.enter(StateValidating, log)
	stageStart := time.Now()
	out.Valid = p.runner.Validate(ctx, out.SQL)
	metrics.ObserveStage(string(StateValidating), time.Since(stageStart))
	if !out.Valid {
		out.enter(StateInvalidSyntax, log)
		out.enter(StateDone, log)
		p.finish(&out, log, start, metrics.OutcomeInvalidSQL)
		return out, nil
	}

	// Executing
	out.enter(StateExecuting, log)
	stageStart = time.Now()
	result, err := p.runner.Execute(ctx, out.SQL)
	metrics.ObserveStage(string(StateExecuting), time.Since(stageStart))
	out.enter(StateDone, log)
	if err != nil {
		var execErr *database.ExecutionError
		if !errors.As(err, &execErr) {
			execErr = &database.ExecutionError{Message: err.Error()}
		}
		out.ExecErr = execErr
		p.finish(&out, log, start, metrics.OutcomeExecutionError)
		return out, nil
	}
	out.Result = &result
	p.finish(&out, log, start, metrics.OutcomeExecuted)
	return out, nil
}

// Generate stops after translation: the candidate SQL is returned in
// Outcome.SQL but never validated or executed.
func (p *Pipeline) Generate(ctx context.Context, question string) (Outcome, error) {
	start := time.Now()
	out, log := p.newOutcome(question)

	if err := p.generate(ctx, question, &out, log); err != nil {
		p.finish(&out, log, start, metrics.OutcomeFailed)
		return out, err
	}
	out.enter(StateDone, log)
	p.finish(&out, log, start, metrics.OutcomeGenerated)
	return out, nil
}

func (p *Pipeline) newOutcome(question string) (Outcome, *zap.Logger) {
	out := Outcome{
		RequestID: uuid.NewString(),
		Question:  question,
		States:    []State{StateIdle},
	}
	return out, p.logger.With(zap.String("request_id", out.RequestID))
}

// generate runs Selecting, Prompting and Translating, filling in
// out.Example and out.SQL.
func (p *Pipeline) generate(ctx context.Context, question string, out *Outcome, log *zap.Logger) error {
	if strings.TrimSpace(question) == "" {
		return ErrMissingQuestion
	}

	// Selecting
	out.enter(StateSelecting, log)
	stageStart := time.Now()
	example, err := p.corpus.Best(question)
	metrics.ObserveStage(string(StateSelecting), time.Since(stageStart))
	if err != nil {
		return fmt.Errorf("select example: %w", err)
	}
	out.Example = example
	log.Debug("example selected",
		zap.String("example", example.Question),
		zap.Int("overlap", examples.Overlap(question, example.Question)))

	// Prompting
	out.enter(StatePrompting, log)
	text := prompt.Build(question, &example)

	// Translating
	out.enter(StateTranslating, log)
	stageStart = time.Now()
	candidate, err := p.translator.Translate(ctx, text)
	metrics.ObserveStage(string(StateTranslating), time.Since(stageStart))
	if err != nil {
		metrics.IncrementTranslationFailure(p.translator.Name())
		log.Warn("translation failed", zap.Error(err))
		return err
	}
	out.SQL = candidate
	return nil
}

func (p *Pipeline) finish(out *Outcome, log *zap.Logger, start time.Time, outcome string) {
	out.Duration = time.Since(start)
	metrics.ObserveRequest(outcome)
	log.Info("question answered",
		zap.String("outcome", outcome),
		zap.Duration("duration", out.Duration))
}

func (o *Outcome) enter(s State, log *zap.Logger) {
	o.States = append(o.States, s)
	log.Debug("pipeline state", zap.String("state", string(s)))
}
