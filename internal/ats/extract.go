package ats

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/jobhunter-labs/jobhunter/pkg/jobhunter/v1/ats"
)

// technicalPatterns match technical terms in the original (non lowercased)
// job description: dotted names such as Node.js, acronyms such as AWS, C++
// style names and CamelCase names such as JavaScript.
var technicalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b[A-Z][a-z]+(?:\.[a-z]+)+\b`),
	regexp.MustCompile(`\b[A-Z]{2,}\b`),
	regexp.MustCompile(`\b\w+\+\+`),
	regexp.MustCompile(`\b[A-Z][a-z]+[A-Z]\w*\b`),
}

var requiredIndicators = []string{
	"required", "must have", "must be", "essential", "mandatory",
	"necessary", "need", "needs", "require", "requires",
}

var preferredIndicators = []string{
	"preferred", "nice to have", "bonus", "plus", "desirable",
	"ideal", "advantage", "beneficial", "would be great",
}

var stopWords = toSet([]string{
	"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
	"of", "with", "by", "from", "as", "is", "was", "are", "were", "be",
	"been", "being", "have", "has", "had", "do", "does", "did", "will",
	"would", "should", "could", "may", "might", "can", "this", "that",
	"these", "those", "i", "you", "he", "she", "it", "we", "they", "them",
	"their", "what", "which", "who", "when", "where", "why", "how",
})

// minContextWordLen is exclusive: context words must be longer than this.
const minContextWordLen = 2

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// ExtractKeywords implements ats.Analyzer.
func (a *Analyzer) ExtractKeywords(jobDescription string) ats.KeywordSet {
	if strings.TrimSpace(jobDescription) == "" {
		return emptyKeywordSet()
	}

	technical := technicalTerms(jobDescription)
	sentences := terminatedSentences(strings.ToLower(jobDescription))
	required := contextWords(sentences, requiredIndicators)
	preferred := contextWords(sentences, preferredIndicators)

	techLower := make(map[string]struct{}, len(technical))
	for t := range technical {
		techLower[strings.ToLower(t)] = struct{}{}
	}
	for w := range required {
		if _, ok := techLower[w]; ok {
			delete(required, w)
		}
	}
	for w := range preferred {
		_, isTech := techLower[w]
		_, isReq := required[w]
		if isTech || isReq {
			delete(preferred, w)
		}
	}

	return ats.KeywordSet{
		Required:  sortedKeys(required),
		Preferred: sortedKeys(preferred),
		Technical: sortedKeys(technical),
	}
}

func emptyKeywordSet() ats.KeywordSet {
	return ats.KeywordSet{Required: []string{}, Preferred: []string{}, Technical: []string{}}
}

// technicalTerms applies the technical patterns and the token rule: a token
// separated by whitespace or '/' is technical when it contains a digit, is
// upper case and longer than one character, or contains '+', '#' or '.'.
// "CI/CD" yields CI and CD, never the joined form.
func technicalTerms(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, re := range technicalPatterns {
		for _, m := range re.FindAllString(text, -1) {
			terms[m] = struct{}{}
		}
	}
	for _, field := range strings.FieldsFunc(text, isTokenSeparator) {
		tok := trimToken(field)
		if tok == "" {
			continue
		}
		if hasDigit(tok) || isUpperWord(tok) || strings.ContainsAny(tok, "+#.") {
			terms[tok] = struct{}{}
		}
	}
	return terms
}

// trimToken strips surrounding punctuation from a token. '+' and '#' are
// kept on both sides (C++, C#) and a leading '.' is kept (.NET).
func trimToken(s string) string {
	s = strings.TrimRightFunc(s, func(r rune) bool {
		return !isTokenRune(r) && r != '+' && r != '#'
	})
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !isTokenRune(r) && r != '+' && r != '#' && r != '.'
	})
	return s
}

func isTokenSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '/'
}

func isTokenRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// isUpperWord reports whether s has more than one rune, at least one cased
// letter and no lower case letters.
func isUpperWord(s string) bool {
	if len([]rune(s)) < 2 {
		return false
	}
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// terminatedSentences splits text into sentences ending in '.', '!' or '?'.
// A trailing fragment without terminator is not a sentence.
func terminatedSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			out = append(out, text[start:i+1])
			start = i + 1
		}
	}
	return out
}

// contextWords pools the words of every sentence that contains one of the
// indicators.
func contextWords(sentences []string, indicators []string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, indicator := range indicators {
		for _, sentence := range sentences {
			if !strings.Contains(sentence, indicator) {
				continue
			}
			for _, w := range lowerWords(sentence) {
				if _, stop := stopWords[w]; stop || len(w) <= minContextWordLen {
					continue
				}
				words[w] = struct{}{}
			}
		}
	}
	return words
}

// lowerWords returns the runs of word characters that consist of ASCII lower
// case letters only. "python3" and "node_js" are skipped entirely.
func lowerWords(s string) []string {
	var out []string
	for _, run := range strings.FieldsFunc(s, func(r rune) bool { return !isTokenRune(r) }) {
		if isASCIILower(run) {
			out = append(out, run)
		}
	}
	return out
}

func isASCIILower(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return s != ""
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
