package ats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/ats"
)

const (
	weakMatchBelow      = 50.0
	moderateMatchBelow  = 75.0
	preferredAdviceOver = 60.0
	exactTermsBelow     = 80.0

	maxRequiredListed  = 5
	maxTechnicalListed = 5
	maxPreferredListed = 3
)

// Fixed recommendation texts.
const (
	ExactTermsRecommendation = "Use exact terms from the job description rather than synonyms to improve ATS matching."
	FormattingRecommendation = "Ensure your resume uses standard section headings (Experience, Education, Skills) " +
		"and avoid complex formatting that ATS systems may not parse correctly."
)

// GenerateRecommendations implements ats.Analyzer. The order is fixed: match
// tier, missing required, missing technical, missing preferred (only above a
// 60% match), exact terms advice (below 80%), formatting reminder.
func (a *Analyzer) GenerateRecommendations(candidate, jobDescription string) []string {
	keywords := a.ExtractKeywords(jobDescription)
	match := matchAgainst(candidate, keywords)
	return recommendations(match.MatchPercentage, missingAgainst(candidate, keywords))
}

func recommendations(pct float64, missing ats.MissingKeywords) []string {
	p := FormatPercent(pct)
	var recs []string

	switch {
	case pct < weakMatchBelow:
		recs = append(recs, fmt.Sprintf("Your resume has a %s%% keyword match. "+
			"Consider significantly revising your resume to better align with the job requirements.", p))
	case pct < moderateMatchBelow:
		recs = append(recs, fmt.Sprintf("Your resume has a %s%% keyword match. "+
			"Adding more relevant keywords could improve your ATS score.", p))
	default:
		recs = append(recs, fmt.Sprintf("Your resume has a strong %s%% keyword match. "+
			"Minor optimizations could further improve your ATS score.", p))
	}

	if len(missing.Required) > 0 {
		recs = append(recs, "Add these required keywords if you have relevant experience: "+
			strings.Join(firstN(missing.Required, maxRequiredListed), ", "))
	}
	if len(missing.Technical) > 0 {
		recs = append(recs, "Include these technical terms where applicable: "+
			strings.Join(firstN(missing.Technical, maxTechnicalListed), ", "))
	}
	if len(missing.Preferred) > 0 && pct > preferredAdviceOver {
		recs = append(recs, "Consider adding these preferred qualifications if relevant: "+
			strings.Join(firstN(missing.Preferred, maxPreferredListed), ", "))
	}
	if pct < exactTermsBelow {
		recs = append(recs, ExactTermsRecommendation)
	}
	return append(recs, FormattingRecommendation)
}

// FormatPercent renders a percentage the way reports have always shown it:
// shortest decimal form, with at least one fractional digit ("57.14", "100.0").
func FormatPercent(p float64) string {
	s := strconv.FormatFloat(p, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
