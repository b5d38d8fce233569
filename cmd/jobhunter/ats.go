package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	intats "github.com/jobhunter-labs/jobhunter/internal/ats"
	"github.com/jobhunter-labs/jobhunter/internal/document"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/ats"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func atsCommand(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	resumePath := fs.String("resume", "", "Path to the resume (txt, md, pdf or docx) (required)")
	jobPath := fs.String("job", "", "Path to the job description (txt, md, pdf or docx) (required)")
	format := fs.String("format", formatText, "Output format (text, json)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: jobhunter ats -resume <path> -job <path> [flags...]")
		fmt.Fprintln(stderr, "\nScores a resume against a job description by keyword match.")
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return ExitUsageError
	}
	if *resumePath == "" || *jobPath == "" {
		fmt.Fprintln(stderr, "Error: -resume and -job flags are required")
		fs.Usage()
		return ExitUsageError
	}
	if *format != formatText && *format != formatJSON {
		fmt.Fprintln(stderr, "Error: -format must be 'text' or 'json'")
		return ExitUsageError
	}

	resume, err := document.ReadFile(*resumePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
	jobDescription, err := document.ReadFile(*jobPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}

	report := intats.NewAnalyzer().Analyze(resume, jobDescription)
	if *format == formatJSON {
		err = writeJSON(stdout, report)
	} else {
		err = writeATSText(stdout, report)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitFailure
	}
	return ExitSuccess
}

func writeATSText(w io.Writer, r ats.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Keyword match: %s%% (%d of %d keywords)\n",
		intats.FormatPercent(r.MatchScore), len(r.FoundKeywords), r.TotalKeywords)
	writeList(&b, "Found", r.FoundKeywords)
	writeList(&b, "Missing required", r.MissingKeywords.Required)
	writeList(&b, "Missing preferred", r.MissingKeywords.Preferred)
	writeList(&b, "Missing technical", r.MissingKeywords.Technical)
	b.WriteString("\nRecommendations:\n")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  - %s\n", rec)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, ", "))
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
