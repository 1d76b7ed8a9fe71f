// Package prompt assembles the instruction payload sent to the text-generation
// backend.
package prompt

import (
	"strings"

	"github.com/JonMunkholm/askdb/internal/examples"
	"github.com/JonMunkholm/askdb/internal/schema"
)

// Section markers, in the order they appear in every prompt.
const (
	SchemaHeading   = "## Database Schema"
	ExampleHeading  = "## Here is a similar, helpful example to guide you:"
	QuestionHeading = "## User Question"
	AnswerMarker    = "## SQL Query"
)

const instructions = `You are an expert at converting English questions into SQL queries.
Your task is to write a SQL query that answers the user's question based on the provided database schema.

IMPORTANT: When filtering by a text field like NAME or CITY, the comparison must be case-insensitive. To achieve this, use the LOWER() function on both the column and the user's value. For example: LOWER(CITY) = LOWER('Nagpur')`

// Build returns the prompt for question against the STUDENT table. The
// example, when non-nil, is included as a worked illustration. The question is
// embedded verbatim.
func Build(question string, example *examples.Example) string {
	return BuildFor(schema.Student, question, example)
}

// BuildFor is Build against an arbitrary table description.
func BuildFor(table schema.Table, question string, example *examples.Example) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")

	sb.WriteString(SchemaHeading + "\n")
	sb.WriteString(table.ToText())

	if example != nil {
		sb.WriteString("\n" + ExampleHeading + "\n")
		sb.WriteString("Question: " + example.Question + "\n")
		sb.WriteString("SQL: " + example.Query + "\n")
	}

	sb.WriteString("\n" + QuestionHeading + "\n")
	sb.WriteString(question)
	sb.WriteString("\n\n" + AnswerMarker)
	return sb.String()
}
