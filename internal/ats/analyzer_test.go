package ats_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intats "github.com/jobhunter-labs/jobhunter/internal/ats"
	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/ats"
)

const (
	pythonJD   = "Required: Python and AWS experience. Nice to have: Docker."
	scenarioJD = "Required: golang kafka. Preferred: docker. Stack: AWS SQL"
)

func assertDisjoint(t *testing.T, k ats.KeywordSet) {
	t.Helper()
	seen := map[string]string{}
	for cat, list := range map[string][]string{"required": k.Required, "preferred": k.Preferred, "technical": k.Technical} {
		for _, w := range list {
			lw := strings.ToLower(w)
			if prev, dup := seen[lw]; dup && prev != cat {
				t.Errorf("keyword %q appears in both %s and %s", w, prev, cat)
			}
			seen[lw] = cat
		}
	}
}

func TestExtractKeywords_Empty(t *testing.T) {
	a := intats.NewAnalyzer()
	for _, in := range []string{"", "   ", "\n\t"} {
		k := a.ExtractKeywords(in)
		assert.Empty(t, k.Required)
		assert.Empty(t, k.Preferred)
		assert.Empty(t, k.Technical)
		assert.NotNil(t, k.Required)
		assert.Zero(t, k.Len())
	}
}

func TestExtractKeywords_Categories(t *testing.T) {
	k := intats.NewAnalyzer().ExtractKeywords(pythonJD)

	assert.Equal(t, []string{"AWS"}, k.Technical)
	assert.Equal(t, []string{"experience", "python", "required"}, k.Required)
	assert.Equal(t, []string{"docker", "nice"}, k.Preferred)
	assertDisjoint(t, k)
}

func TestExtractKeywords_TechnicalTerms(t *testing.T) {
	jd := "We use Node.js, JavaScript, C++ and C# on .NET with PostgreSQL 15 and K8s. Must know REST APIs."
	k := intats.NewAnalyzer().ExtractKeywords(jd)

	for _, term := range []string{"Node.js", "JavaScript", "C++", "C#", ".NET", "PostgreSQL", "15", "K8s", "REST"} {
		assert.Contains(t, k.Technical, term)
	}
	assert.NotContains(t, k.Technical, "We")
	// Mixed case plurals are not acronyms.
	assert.NotContains(t, k.Technical, "APIs")
}

func TestExtractKeywords_SlashSeparatesTerms(t *testing.T) {
	a := intats.NewAnalyzer()
	jd := "Required: experience with AWS/GCP and CI/CD pipelines. Ph.D. preferred."
	assert.Equal(t, []string{"AWS", "CD", "CI", "GCP", "Ph.D"}, a.ExtractKeywords(jd).Technical)

	res := a.CalculateMatchScore("Built CI and CD on AWS and GCP", jd)
	assert.NotContains(t, res.MissingKeywords, "CI/CD")
	assert.Subset(t, res.FoundKeywords, []string{"AWS", "GCP", "CI", "CD"})
}

func TestExtractKeywords_Sentences(t *testing.T) {
	a := intats.NewAnalyzer()

	// The indicator is a substring match: "needed" contains "need".
	k := a.ExtractKeywords("Terraform skills needed! Kubernetes knowledge is a bonus?")
	assert.Equal(t, []string{"bonus", "knowledge", "kubernetes"}, k.Preferred)
	assert.Equal(t, []string{"needed", "skills", "terraform"}, k.Required)

	// A trailing fragment without terminating punctuation is not a sentence.
	k = a.ExtractKeywords("Required skills: golang")
	assert.Empty(t, k.Required)

	// Stop words and words of two letters or fewer are dropped.
	k = a.ExtractKeywords("You must have it in go.")
	assert.Equal(t, []string{"must"}, k.Required)
}

func TestExtractKeywords_RequiredWinsOverPreferred(t *testing.T) {
	k := intats.NewAnalyzer().ExtractKeywords("Python is required. Python is preferred.")
	assert.Equal(t, []string{"python", "required"}, k.Required)
	assert.Equal(t, []string{"preferred"}, k.Preferred)
}

func TestExtractKeywords_SortedAndUnique(t *testing.T) {
	k := intats.NewAnalyzer().ExtractKeywords("Zeta alpha required. Alpha zeta required. SQL SQL AWS.")
	assert.Equal(t, []string{"alpha", "required", "zeta"}, k.Required)
	assert.Equal(t, []string{"AWS", "SQL"}, k.Technical)
}

func TestCalculateMatchScore_CaseInsensitive(t *testing.T) {
	res := intats.NewAnalyzer().CalculateMatchScore("Skills: PYTHON, aws", "Required: Python and AWS experience")
	assert.Greater(t, res.MatchPercentage, 0.0)
	assert.Contains(t, res.FoundKeywords, "AWS")
}

func TestCalculateMatchScore_EmptyCandidate(t *testing.T) {
	a := intats.NewAnalyzer()
	res := a.CalculateMatchScore("", pythonJD)
	all := a.ExtractKeywords(pythonJD).All()

	assert.Equal(t, 0.0, res.MatchPercentage)
	assert.Empty(t, res.FoundKeywords)
	assert.Equal(t, all, res.MissingKeywords)
	assert.Equal(t, len(all), res.TotalKeywords)
}

func TestCalculateMatchScore_NoKeywords(t *testing.T) {
	res := intats.NewAnalyzer().CalculateMatchScore("anything at all", "")
	assert.Equal(t, ats.MatchResult{FoundKeywords: []string{}, MissingKeywords: []string{}}, res)
}

func TestCalculateMatchScore_Scenario(t *testing.T) {
	a := intats.NewAnalyzer()
	k := a.ExtractKeywords(scenarioJD)
	require.Equal(t, []string{"golang", "kafka", "required"}, k.Required)
	require.Equal(t, []string{"docker", "preferred"}, k.Preferred)
	require.Equal(t, []string{"AWS", "SQL"}, k.Technical)

	res := a.CalculateMatchScore("golang kafka docker aws", scenarioJD)
	assert.Equal(t, 57.14, res.MatchPercentage)
	assert.Equal(t, 7, res.TotalKeywords)
	assert.Equal(t, []string{"golang", "kafka", "docker", "AWS"}, res.FoundKeywords)
	assert.Equal(t, []string{"required", "preferred", "SQL"}, res.MissingKeywords)
}

// acronymJD lists 32 distinct acronyms, so one match is exactly 3.125%.
func acronymJD() (string, []string) {
	var terms []string
	for _, second := range "AB" {
		for third := 'A'; third <= 'Z'; third++ {
			if second == 'B' && third > 'F' {
				break
			}
			terms = append(terms, "ZQ"+string(second)+string(third))
		}
	}
	return "Stack: " + strings.Join(terms, " "), terms
}

func TestCalculateMatchScore_RoundsTiesToEven(t *testing.T) {
	jd, terms := acronymJD()
	require.Len(t, terms, 32)
	a := intats.NewAnalyzer()

	tests := []struct {
		found int
		want  float64
	}{
		{1, 3.12},
		{3, 9.38},
		{5, 15.62},
		{32, 100},
	}
	for _, tt := range tests {
		res := a.CalculateMatchScore(strings.Join(terms[:tt.found], " "), jd)
		assert.Equal(t, 32, res.TotalKeywords)
		assert.Equal(t, tt.want, res.MatchPercentage, "%d of 32", tt.found)
	}

	recs := a.GenerateRecommendations(terms[0], jd)
	assert.Contains(t, recs[0], "3.12% keyword match")
}

func TestIdentifyMissingKeywords(t *testing.T) {
	m := intats.NewAnalyzer().IdentifyMissingKeywords("golang kafka docker aws", scenarioJD)
	assert.Equal(t, []string{"required"}, m.Required)
	assert.Equal(t, []string{"preferred"}, m.Preferred)
	assert.Equal(t, []string{"SQL"}, m.Technical)
}

func TestGenerateRecommendations_Scenario(t *testing.T) {
	recs := intats.NewAnalyzer().GenerateRecommendations("golang kafka docker aws", scenarioJD)
	assert.Equal(t, []string{
		"Your resume has a 57.14% keyword match. Adding more relevant keywords could improve your ATS score.",
		"Add these required keywords if you have relevant experience: required",
		"Include these technical terms where applicable: SQL",
		intats.ExactTermsRecommendation,
		intats.FormattingRecommendation,
	}, recs)
}

func TestGenerateRecommendations_Tiers(t *testing.T) {
	a := intats.NewAnalyzer()

	weak := a.GenerateRecommendations("", scenarioJD)
	assert.True(t, strings.HasPrefix(weak[0], "Your resume has a 0.0% keyword match. Consider significantly revising"))

	full := "golang kafka required docker preferred AWS SQL"
	strong := a.GenerateRecommendations(full, scenarioJD)
	assert.Equal(t, []string{
		"Your resume has a strong 100.0% keyword match. Minor optimizations could further improve your ATS score.",
		intats.FormattingRecommendation,
	}, strong)

	// 6 of 7 found: above 60% so the missing preferred keyword is listed,
	// and at 80% or more the exact terms advice is dropped.
	mostly := a.GenerateRecommendations("golang kafka required docker AWS SQL", scenarioJD)
	assert.Equal(t, []string{
		"Your resume has a strong 85.71% keyword match. Minor optimizations could further improve your ATS score.",
		"Consider adding these preferred qualifications if relevant: preferred",
		intats.FormattingRecommendation,
	}, mostly)
}

func TestGenerateRecommendations_ListLimits(t *testing.T) {
	jd := "Required: alpha bravo charlie delta echo foxtrot golf. " +
		"Preferred: hotel india juliet kilo lima. AAA BBB CCC DDD EEE FFF GGG"
	recs := intats.NewAnalyzer().GenerateRecommendations("", jd)
	require.GreaterOrEqual(t, len(recs), 3)
	assert.Equal(t, "Add these required keywords if you have relevant experience: alpha, bravo, charlie, delta, echo", recs[1])
	assert.Equal(t, "Include these technical terms where applicable: AAA, BBB, CCC, DDD, EEE", recs[2])
}

func TestGenerateRecommendations_AlwaysEndsWithFormatting(t *testing.T) {
	a := intats.NewAnalyzer()
	inputs := [][2]string{{"", ""}, {"x", ""}, {"", pythonJD}, {"python aws", pythonJD}, {"!!!", "???"}}
	for _, in := range inputs {
		recs := a.GenerateRecommendations(in[0], in[1])
		require.NotEmpty(t, recs)
		assert.Equal(t, intats.FormattingRecommendation, recs[len(recs)-1])
	}
}

func TestAnalyze(t *testing.T) {
	a := intats.NewAnalyzer()
	rep := a.Analyze("golang kafka docker aws", scenarioJD)

	assert.Equal(t, a.ExtractKeywords(scenarioJD), rep.Keywords)
	assert.Equal(t, 57.14, rep.MatchScore)
	assert.Equal(t, 7, rep.TotalKeywords)
	assert.Equal(t, []string{"golang", "kafka", "docker", "AWS"}, rep.FoundKeywords)
	assert.Equal(t, []string{"required", "preferred", "SQL"}, rep.UnmatchedKeywords)
	assert.Equal(t, []string{"SQL"}, rep.MissingKeywords.Technical)
	assert.Equal(t, a.GenerateRecommendations("golang kafka docker aws", scenarioJD), rep.Recommendations)
}

func TestAnalyzer_ConcurrentUse(t *testing.T) {
	a := intats.NewAnalyzer()
	want := a.Analyze("golang kafka docker aws", scenarioJD)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, want, a.Analyze("golang kafka docker aws", scenarioJD))
		}()
	}
	wg.Wait()
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "57.14", intats.FormatPercent(57.14))
	assert.Equal(t, "100.0", intats.FormatPercent(100))
	assert.Equal(t, "0.0", intats.FormatPercent(0))
	assert.Equal(t, "33.33", intats.FormatPercent(33.33))
}
