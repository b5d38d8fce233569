// Package ats provides the "ats" worker, which scores a candidate document
// against a job description with the keyword engine.
//
// Each of the two documents is taken from exactly one source:
//
//	resume | resume_key | resume_file
//	job_description | job_description_key | job_description_file
//
// A literal string, a key among the stage inputs, or a file (txt, pdf or
// docx). Without any of them the inputs "resume" and "job_description" are
// used. Structured input values are flattened to their string leaves.
package ats

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	intats "github.com/jobhunter-labs/jobhunter/internal/ats"
	"github.com/jobhunter-labs/jobhunter/internal/document"
	"github.com/jobhunter-labs/jobhunter/internal/paramutil"
	intworker "github.com/jobhunter-labs/jobhunter/internal/worker"
	jherrors "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/errors"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/events"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/state"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/worker"
)

// Name is the worker type used in pipeline definitions.
const Name = "ats"

// Default input keys.
const (
	DefaultResumeKey         = "resume"
	DefaultJobDescriptionKey = "job_description"
)

func init() {
	intworker.Register(Name, NewWorker)
}

var allowedParams = []string{
	"resume", "resume_key", "resume_file",
	"job_description", "job_description_key", "job_description_file",
}

// Worker runs the keyword analysis.
type Worker struct {
	analyzer *intats.Analyzer
	bus      events.Bus
}

var (
	_ worker.Worker       = (*Worker)(nil)
	_ worker.EventEmitter = (*Worker)(nil)
)

// NewWorker is the registered factory.
func NewWorker() worker.Worker {
	return &Worker{analyzer: intats.NewAnalyzer()}
}

// SetEventBus implements worker.EventEmitter.
func (w *Worker) SetEventBus(bus events.Bus) {
	w.bus = bus
}

// Perform implements worker.Worker. The result is the ats.Report in its JSON
// shape.
func (w *Worker) Perform(ctx context.Context, params map[string]interface{}, input map[string]interface{}, _ state.StateReader) (interface{}, error) {
	if err := paramutil.CheckAllowed(params, allowedParams); err != nil {
		return nil, err
	}
	resume, err := resolveText(params, input, "resume", DefaultResumeKey)
	if err != nil {
		return nil, err
	}
	jobDescription, err := resolveText(params, input, "job_description", DefaultJobDescriptionKey)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := w.analyzer.Analyze(resume, jobDescription)

	if w.bus != nil {
		w.bus.Emit(events.Event{
			Type:      events.ATSAnalyzed,
			Timestamp: time.Now(),
			Payload: map[string]interface{}{
				"match_percentage": report.MatchScore,
				"total_keywords":   report.TotalKeywords,
				"missing_count":    len(report.UnmatchedKeywords),
			},
		})
	}

	b, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode ats report: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to decode ats report: %w", err)
	}
	return out, nil
}

// resolveText picks the document named by prefix from a literal param, an
// input key or a file.
func resolveText(params, input map[string]interface{}, prefix, defaultKey string) (string, error) {
	literalParam, keyParam, fileParam := prefix, prefix+"_key", prefix+"_file"
	if err := paramutil.CheckExclusive(params, []string{literalParam, keyParam, fileParam}); err != nil {
		return "", err
	}

	if text, found, err := paramutil.GetOptionalString(params, literalParam); err != nil || found {
		return text, err
	}
	if path, found, err := paramutil.GetOptionalString(params, fileParam); err != nil || found {
		if err != nil {
			return "", err
		}
		return document.ReadFile(path)
	}

	key, found, err := paramutil.GetOptionalString(params, keyParam)
	if err != nil {
		return "", err
	}
	if !found {
		key = defaultKey
	}
	v, ok := input[key]
	if !ok {
		return "", jherrors.NewValidationError(
			fmt.Sprintf("%s: input '%s' is not available; list it in the stage inputs or set '%s' or '%s'",
				prefix, key, literalParam, fileParam), nil)
	}
	return FlattenText(v), nil
}

// FlattenText renders a stored value as text for keyword matching. Strings
// are returned as is; maps (in key order) and lists contribute their string,
// number and bool leaves, one per line.
func FlattenText(v interface{}) string {
	var lines []string
	flatten(v, &lines)
	return strings.Join(lines, "\n")
}

func flatten(v interface{}, lines *[]string) {
	switch val := v.(type) {
	case nil:
	case string:
		if val != "" {
			*lines = append(*lines, val)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flatten(val[k], lines)
		}
	case []interface{}:
		for _, item := range val {
			flatten(item, lines)
		}
	case []string:
		for _, item := range val {
			flatten(item, lines)
		}
	default:
		*lines = append(*lines, fmt.Sprint(val))
	}
}
