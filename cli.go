package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/askdb/internal/database"
	"github.com/JonMunkholm/askdb/internal/examples"
	"github.com/JonMunkholm/askdb/internal/llm"
	"github.com/JonMunkholm/askdb/internal/pipeline"
	"github.com/JonMunkholm/askdb/internal/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web UI and JSON API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Translate a question to SQL, validate it and print the result",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.Join(args, " ")

		db, err := openDatabase(ctx, false)
		if err != nil {
			return err
		}
		defer db.Close()

		corpus, err := examples.LoadCorpus(cfg.ExamplesPath)
		if err != nil {
			return err
		}
		translator, err := newTranslator(ctx)
		if err != nil {
			return err
		}

		p := pipeline.New(corpus, translator, database.NewRunner(db, logger), logger)
		spinner, _ := pterm.DefaultSpinner.Start("Processing your request...")
		out, err := p.Run(ctx, question)
		_ = spinner.Stop()
		if err != nil {
			return userMessage(err)
		}

		pterm.DefaultSection.Println("Generated SQL Query")
		pterm.Println(out.SQL)
		if !out.Valid {
			pterm.Error.Println("The generated SQL has invalid syntax. Please try rephrasing your question.")
			return errInvalidSQL
		}
		pterm.Success.Println("SQL syntax is valid.")

		if out.ExecErr != nil {
			pterm.Error.Println(out.ExecErr.Error())
			return errExecutionFailed
		}
		pterm.DefaultSection.Println("Query Results")
		return renderResult(*out.Result)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <sql>",
	Short: "Dry-run a SQL statement inside a rolled-back transaction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx, false)
		if err != nil {
			return err
		}
		defer db.Close()

		if !database.NewRunner(db, logger).Validate(ctx, strings.Join(args, " ")) {
			pterm.Error.Println("invalid SQL")
			return errInvalidSQL
		}
		pterm.Success.Println("valid SQL")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the STUDENT table and load the sample rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, err := openDatabase(ctx, true)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Seed(ctx, db, cfg.DB.Driver); err != nil {
			return err
		}
		pterm.Success.Printfln("Database created and populated with %d students.", len(database.SampleStudents))
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the schema description and compare it with the live table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pterm.Println(schema.Student.ToText())

		db, err := openDatabase(ctx, false)
		if err != nil {
			return err
		}
		defer db.Close()

		drift, err := schema.Check(ctx, db, cfg.DB.Driver, schema.Student)
		if err != nil {
			return err
		}
		if !drift.OK() {
			pterm.Warning.Println(drift.String())
			return errors.New("schema drift detected")
		}
		pterm.Success.Println(drift.String())
		return nil
	},
}

var (
	errInvalidSQL      = errors.New("generated SQL is invalid")
	errExecutionFailed = errors.New("query execution failed")
)

func openDatabase(ctx context.Context, create bool) (*sql.DB, error) {
	return database.Open(ctx, cfg.DB.Driver, cfg.DB.DSN, create)
}

func newTranslator(ctx context.Context) (*llm.Translator, error) {
	provider, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		if errors.Is(err, llm.ErrMissingAPIKey) {
			return nil, errors.New("API key not found: set LLM_API_KEY or GOOGLE_API_KEY")
		}
		return nil, err
	}
	return llm.NewTranslator(provider), nil
}

// userMessage maps pipeline errors to the short messages shown to users.
func userMessage(err error) error {
	var te *llm.TranslationError
	switch {
	case errors.Is(err, pipeline.ErrMissingQuestion):
		return errors.New("please enter your question")
	case errors.Is(err, examples.ErrEmptyCorpus):
		return errors.New("no examples are loaded")
	case errors.As(err, &te):
		return fmt.Errorf("could not generate SQL: %s", te.Reason)
	default:
		return err
	}
}

func renderResult(result database.ResultSet) error {
	if len(result.Rows) == 0 {
		pterm.Info.Println("The query returned no rows.")
		return nil
	}
	data := pterm.TableData{result.Columns}
	for _, row := range result.Rows {
		data = append(data, formatRow(row))
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func formatRow(row []any) []string {
	record := make([]string, len(row))
	for i, v := range row {
		record[i] = formatCSVValue(v)
	}
	return record
}
