package main

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/askdb/internal/database"
	"github.com/JonMunkholm/askdb/internal/examples"
	"github.com/JonMunkholm/askdb/internal/llm"
	"github.com/JonMunkholm/askdb/internal/pipeline"
	"github.com/JonMunkholm/askdb/internal/schema"
)

const (
	defaultLimit     = 200
	maxLimit         = 1000
	queryTimeout     = 8 * time.Second
	translateTimeout = 60 * time.Second
	defaultQuestion  = "Which students live in Nagpur?"
)

type app struct {
	db       *sql.DB
	driver   string
	tmpl     *template.Template
	corpus   *examples.Corpus
	runner   *database.Runner
	pipeline *pipeline.Pipeline
}

func serve(ctx context.Context) error {
	db, err := openDatabase(ctx, false)
	if err != nil {
		return err
	}
	defer db.Close()

	corpus, err := examples.LoadCorpus(cfg.ExamplesPath)
	if err != nil {
		return err
	}
	logger.Info("loaded examples", zap.Int("count", corpus.Len()), zap.String("path", cfg.ExamplesPath))

	if drift, err := schema.Check(ctx, db, cfg.DB.Driver, schema.Student); err != nil {
		logger.Warn("schema check failed", zap.Error(err))
	} else if !drift.OK() {
		logger.Warn("schema description does not match database", zap.String("drift", drift.String()))
	}

	// The translator is optional; without it only /query and /export work.
	var translator pipeline.Translator
	if t, err := newTranslator(ctx); err != nil {
		logger.Warn("LLM not configured", zap.Error(err))
	} else {
		translator = t
		logger.Info("LLM provider initialized", zap.String("provider", t.Name()))
	}

	a := newApp(db, cfg.DB.Driver, corpus, translator, logger)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("driver", cfg.DB.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newApp(db *sql.DB, driver string, corpus *examples.Corpus, translator pipeline.Translator, logger *zap.Logger) *app {
	runner := database.NewRunner(db, logger)
	a := &app{
		db:     db,
		driver: driver,
		tmpl:   template.Must(template.New("index").Parse(indexHTML)),
		corpus: corpus,
		runner: runner,
	}
	if translator != nil {
		a.pipeline = pipeline.New(corpus, translator, runner, logger)
	}
	return a
}

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", a.handleIndex)
	r.Post("/ask", a.handleAsk)
	r.Post("/generate-sql", a.handleGenerateSQL)
	r.Post("/query", a.handleQuery)
	r.Post("/export", a.handleExportCSV)
	r.Get("/schema", a.handleSchema)
	r.Get("/examples", a.handleExamples)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (a *app) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		DefaultQuestion string
		DefaultLimit    int
	}{
		DefaultQuestion: defaultQuestion,
		DefaultLimit:    defaultLimit,
	}
	if err := a.tmpl.Execute(w, data); err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

type askRequest struct {
	Question string `json:"question"`
	Limit    int    `json:"limit"`
}

type askResponse struct {
	RequestID  string            `json:"requestId,omitempty"`
	SQL        string            `json:"sql,omitempty"`
	Example    *examples.Example `json:"example,omitempty"`
	Valid      bool              `json:"valid"`
	Columns    []string          `json:"columns,omitempty"`
	Rows       [][]any           `json:"rows,omitempty"`
	Count      int               `json:"count"`
	More       bool              `json:"more"`
	DurationMs int64             `json:"durationMs"`
	Error      string            `json:"error,omitempty"`
}

func (a *app) handleAsk(w http.ResponseWriter, r *http.Request) {
	if a.pipeline == nil {
		respondJSON(w, http.StatusServiceUnavailable, askResponse{Error: "LLM not configured. Set LLM_API_KEY environment variable."})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, askResponse{Error: "invalid JSON body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), translateTimeout)
	defer cancel()

	out, err := a.pipeline.Run(ctx, req.Question)
	resp := askResponse{
		RequestID:  out.RequestID,
		SQL:        out.SQL,
		Valid:      out.Valid,
		DurationMs: out.Duration.Milliseconds(),
	}
	if out.Example.Question != "" {
		ex := out.Example
		resp.Example = &ex
	}

	var te *llm.TranslationError
	switch {
	case errors.Is(err, pipeline.ErrMissingQuestion):
		resp.Error = "Please enter your question."
		respondJSON(w, http.StatusBadRequest, resp)
		return
	case errors.As(err, &te):
		resp.Error = "Failed to generate SQL: " + te.Reason
		respondJSON(w, http.StatusBadGateway, resp)
		return
	case err != nil:
		resp.Error = err.Error()
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	if !out.Valid {
		resp.Error = "The generated SQL has invalid syntax. Please try rephrasing your question."
		respondJSON(w, http.StatusOK, resp)
		return
	}
	if out.ExecErr != nil {
		resp.Error = out.ExecErr.Error()
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Columns = out.Result.Columns
	resp.Rows, resp.More = truncateRows(out.Result.Rows, clampLimit(req.Limit))
	resp.Count = len(resp.Rows)
	respondJSON(w, http.StatusOK, resp)
}

type generateSQLResponse struct {
	RequestID string            `json:"requestId,omitempty"`
	SQL       string            `json:"sql,omitempty"`
	Example   *examples.Example `json:"example,omitempty"`
	Error     string            `json:"error,omitempty"`
}

func (a *app) handleGenerateSQL(w http.ResponseWriter, r *http.Request) {
	if a.pipeline == nil {
		respondJSON(w, http.StatusServiceUnavailable, generateSQLResponse{
			Error: "LLM not configured. Set LLM_API_KEY environment variable.",
		})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, generateSQLResponse{Error: "invalid JSON body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), translateTimeout)
	defer cancel()

	out, err := a.pipeline.Generate(ctx, req.Question)
	resp := generateSQLResponse{RequestID: out.RequestID, SQL: out.SQL}
	if out.Example.Question != "" {
		ex := out.Example
		resp.Example = &ex
	}

	var te *llm.TranslationError
	switch {
	case errors.Is(err, pipeline.ErrMissingQuestion):
		resp.Error = "Please enter your question."
		respondJSON(w, http.StatusBadRequest, resp)
		return
	case errors.As(err, &te):
		resp.Error = "Failed to generate SQL: " + te.Reason
		respondJSON(w, http.StatusBadGateway, resp)
		return
	case err != nil:
		resp.Error = err.Error()
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type queryResponse struct {
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	Count      int      `json:"count"`
	More       bool     `json:"more"`
	DurationMs int64    `json:"durationMs"`
	Error      string   `json:"error,omitempty"`
}

func (a *app) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, queryResponse{Error: "invalid JSON body"})
		return
	}

	query, err := validateSelectQuery(req.Query)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, queryResponse{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	// Raw SQL is only ever previewed; the transaction is rolled back.
	start := time.Now()
	result, err := a.runner.Preview(ctx, query)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, queryResponse{Error: err.Error()})
		return
	}

	resp := queryResponse{Columns: result.Columns}
	resp.Rows, resp.More = truncateRows(result.Rows, clampLimit(req.Limit))
	resp.Count = len(resp.Rows)
	resp.DurationMs = time.Since(start).Milliseconds()

	respondJSON(w, http.StatusOK, resp)
}

func (a *app) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	query, err := validateSelectQuery(req.Query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	result, err := a.runner.Preview(ctx, query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=student_%s.csv", time.Now().Format("2006-01-02")))

	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(result.Columns); err != nil {
		return
	}
	for _, row := range result.Rows {
		if err := csvWriter.Write(formatRow(row)); err != nil {
			return
		}
	}
}

type schemaResponse struct {
	Table       string        `json:"table"`
	Columns     []string      `json:"columns"`
	Description string        `json:"description"`
	Drift       *schema.Drift `json:"drift,omitempty"`
	Error       string        `json:"error,omitempty"`
}

func (a *app) handleSchema(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), queryTimeout)
	defer cancel()

	resp := schemaResponse{
		Table:       schema.Student.Name,
		Columns:     schema.Student.ColumnNames(),
		Description: schema.Student.ToText(),
	}
	drift, err := schema.Check(ctx, a.db, a.driver, schema.Student)
	if err != nil {
		resp.Error = err.Error()
		respondJSON(w, http.StatusInternalServerError, resp)
		return
	}
	resp.Drift = &drift
	respondJSON(w, http.StatusOK, resp)
}

func (a *app) handleExamples(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"examples": a.corpus.Examples(),
		"count":    a.corpus.Len(),
	})
}

func formatCSVValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func truncateRows(rows [][]any, limit int) ([][]any, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

var (
	errEmptyQuery     = errors.New("query is required")
	errNotSelectQuery = errors.New("only SELECT / CTE queries are allowed")
)

// validateSelectQuery rejects raw SQL that does not start as a read. The
// raw-SQL endpoints also run through Runner.Preview, so trailing statements
// cannot persist anything.
func validateSelectQuery(raw string) (string, error) {
	query := strings.TrimSpace(raw)
	if query == "" {
		return "", errEmptyQuery
	}
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return "", errNotSelectQuery
	}
	return query, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

//go:embed templates/index.html
var indexHTML string
