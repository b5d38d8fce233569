package state

// Well-known keys under which the career pipeline stages publish results.
const (
	KeyCareerProfile       = "career_profile_output"
	KeyJobOpportunities    = "job_opportunities_output"
	KeyApplicationMaterial = "application_materials_output"
	KeyInterviewPrep       = "interview_prep_output"
	KeyCareerStrategy      = "career_strategy_output"
	KeyCareerCoordinator   = "career_coordinator_output"
)

// WellKnownKeys maps every well-known key to the stage that produces it.
var WellKnownKeys = map[string]string{
	KeyCareerProfile:       "Career Profile Analyst output",
	KeyJobOpportunities:    "Job Market Researcher output",
	KeyApplicationMaterial: "Application Strategist output",
	KeyInterviewPrep:       "Interview Preparation Coach output",
	KeyCareerStrategy:      "Career Strategy Advisor output",
	KeyCareerCoordinator:   "Career Coordinator output",
}

// IsWellKnownKey reports whether key is one of the standard stage outputs.
func IsWellKnownKey(key string) bool {
	_, ok := WellKnownKeys[key]
	return ok
}
