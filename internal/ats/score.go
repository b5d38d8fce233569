package ats

import (
	"strconv"
	"strings"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/ats"
)

// CalculateMatchScore implements ats.Analyzer. A keyword is found when it
// occurs in the candidate text as a case-insensitive substring.
func (a *Analyzer) CalculateMatchScore(candidate, jobDescription string) ats.MatchResult {
	return matchAgainst(candidate, a.ExtractKeywords(jobDescription))
}

// IdentifyMissingKeywords implements ats.Analyzer.
func (a *Analyzer) IdentifyMissingKeywords(candidate, jobDescription string) ats.MissingKeywords {
	return missingAgainst(candidate, a.ExtractKeywords(jobDescription))
}

func matchAgainst(candidate string, keywords ats.KeywordSet) ats.MatchResult {
	all := keywords.All()
	res := ats.MatchResult{
		FoundKeywords:   []string{},
		MissingKeywords: []string{},
		TotalKeywords:   len(all),
	}
	if strings.TrimSpace(candidate) == "" {
		res.MissingKeywords = append(res.MissingKeywords, all...)
		return res
	}
	if len(all) == 0 {
		return res
	}

	lower := strings.ToLower(candidate)
	for _, kw := range all {
		if strings.Contains(lower, strings.ToLower(kw)) {
			res.FoundKeywords = append(res.FoundKeywords, kw)
		} else {
			res.MissingKeywords = append(res.MissingKeywords, kw)
		}
	}
	res.MatchPercentage = roundPercent(float64(len(res.FoundKeywords)) / float64(len(all)) * 100)
	return res
}

func missingAgainst(candidate string, keywords ats.KeywordSet) ats.MissingKeywords {
	lower := strings.ToLower(candidate)
	return ats.MissingKeywords{
		Required:  absent(lower, keywords.Required),
		Preferred: absent(lower, keywords.Preferred),
		Technical: absent(lower, keywords.Technical),
	}
}

func absent(lowerText string, keywords []string) []string {
	out := []string{}
	for _, kw := range keywords {
		if !strings.Contains(lowerText, strings.ToLower(kw)) {
			out = append(out, kw)
		}
	}
	return out
}

// roundPercent rounds the exact binary value of p to two decimals, breaking
// exact ties to even: 3.125 gives 3.12.
func roundPercent(p float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(p, 'f', 2, 64), 64)
	if err != nil {
		return p
	}
	return r
}
