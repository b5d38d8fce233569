// Package ats implements the applicant tracking system keyword engine: it
// extracts categorised keywords from a job description, scores a candidate
// document against them and turns the gaps into recommendations.
//
// The engine is heuristic and fully deterministic. It holds no state, so a
// single Analyzer may be shared by any number of goroutines.
package ats

import "github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/ats"

// Analyzer is the default ats.Analyzer.
type Analyzer struct{}

// NewAnalyzer returns an Analyzer.
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze implements ats.Analyzer.
func (a *Analyzer) Analyze(candidate, jobDescription string) ats.Report {
	keywords := a.ExtractKeywords(jobDescription)
	match := matchAgainst(candidate, keywords)
	missing := missingAgainst(candidate, keywords)
	return ats.Report{
		Keywords:          keywords,
		MatchScore:        match.MatchPercentage,
		FoundKeywords:     match.FoundKeywords,
		MissingKeywords:   missing,
		UnmatchedKeywords: match.MissingKeywords,
		TotalKeywords:     match.TotalKeywords,
		Recommendations:   recommendations(match.MatchPercentage, missing),
	}
}

var _ ats.Analyzer = (*Analyzer)(nil)
