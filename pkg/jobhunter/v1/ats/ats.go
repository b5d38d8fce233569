// Package ats holds the public types of the applicant tracking system (ATS)
// keyword engine: keywords extracted from a job description, and how well a
// candidate document covers them.
package ats

// KeywordSet is the categorised keyword extraction of a job description.
// The three slices are sorted, free of duplicates and pairwise disjoint.
type KeywordSet struct {
	Required  []string `json:"required_keywords"`
	Preferred []string `json:"preferred_keywords"`
	Technical []string `json:"technical_terms"`
}

// All returns the union of the three categories in the order required,
// preferred, technical.
func (k KeywordSet) All() []string {
	out := make([]string, 0, len(k.Required)+len(k.Preferred)+len(k.Technical))
	out = append(out, k.Required...)
	out = append(out, k.Preferred...)
	out = append(out, k.Technical...)
	return out
}

// Len is the size of the union.
func (k KeywordSet) Len() int {
	return len(k.Required) + len(k.Preferred) + len(k.Technical)
}

// MatchResult describes how much of a job description's keyword union is
// present in a candidate document. Found and Missing partition the union.
type MatchResult struct {
	// MatchPercentage is in [0, 100], rounded to two decimals.
	MatchPercentage float64  `json:"match_percentage"`
	FoundKeywords   []string `json:"found_keywords"`
	MissingKeywords []string `json:"missing_keywords"`
	TotalKeywords   int      `json:"total_keywords"`
}

// MissingKeywords lists, per category, the keywords absent from a candidate
// document.
type MissingKeywords struct {
	Required  []string `json:"missing_required"`
	Preferred []string `json:"missing_preferred"`
	Technical []string `json:"missing_technical"`
}

// Report is the full analysis of a candidate document against a job
// description.
type Report struct {
	Keywords          KeywordSet      `json:"keywords"`
	MatchScore        float64         `json:"match_score"`
	FoundKeywords     []string        `json:"found_keywords"`
	MissingKeywords   MissingKeywords `json:"missing_keywords"`
	UnmatchedKeywords []string        `json:"unmatched_keywords"`
	TotalKeywords     int             `json:"total_keywords"`
	Recommendations   []string        `json:"recommendations"`
}

// Analyzer is the keyword engine. Implementations are pure and safe for
// concurrent use.
type Analyzer interface {
	ExtractKeywords(jobDescription string) KeywordSet
	CalculateMatchScore(candidate, jobDescription string) MatchResult
	IdentifyMissingKeywords(candidate, jobDescription string) MissingKeywords
	GenerateRecommendations(candidate, jobDescription string) []string
	Analyze(candidate, jobDescription string) Report
}
