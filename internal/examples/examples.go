// Package examples loads the curated (question, query) corpus and picks the
// worked example that best matches a user question.
package examples

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Example is one worked question/query pair.
type Example struct {
	Question string `json:"question" yaml:"question"`
	Query    string `json:"query" yaml:"query"`
}

// LoadError reports a corpus that could not be read or decoded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load examples %q: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads the corpus at path. Files ending in .yaml or .yml are decoded as
// YAML, everything else as JSON. Source order is preserved.
func Load(path string) ([]Example, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var items []Example
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &items)
	default:
		err = json.Unmarshal(data, &items)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if items == nil {
		return nil, &LoadError{Path: path, Err: errors.New("document is not an array of examples")}
	}

	for i, ex := range items {
		if strings.TrimSpace(ex.Question) == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("entry %d: question is required", i)}
		}
		if strings.TrimSpace(ex.Query) == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("entry %d: query is required", i)}
		}
	}
	return items, nil
}

// Corpus is a loaded example set. It is never mutated after construction, so
// one value can be shared by any number of concurrent requests.
type Corpus struct {
	items []Example
}

// NewCorpus copies items into an immutable corpus.
func NewCorpus(items []Example) *Corpus {
	c := &Corpus{items: make([]Example, len(items))}
	copy(c.items, items)
	return c
}

// LoadCorpus is Load followed by NewCorpus.
func LoadCorpus(path string) (*Corpus, error) {
	items, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewCorpus(items), nil
}

// Examples returns a copy of the corpus in source order.
func (c *Corpus) Examples() []Example {
	out := make([]Example, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of examples.
func (c *Corpus) Len() int { return len(c.items) }

// Best selects the closest example to question. See SelectBest.
func (c *Corpus) Best(question string) (Example, error) {
	return SelectBest(question, c.items)
}
