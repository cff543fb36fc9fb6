package model

// InsightReport is the output of the insight summarizer. The non-AI baseline
// fields are always populated; AIText is only set when a backend produced a
// summary. Warning is set when a configured backend failed and the report
// fell back to the baseline.
type InsightReport struct {
	OpenTasks   int
	DoneTasks   int
	FileCount   int
	TotalBytes  int64
	ByExtension map[string]int

	Provider string
	AIText   string
	Warning  string
}

// HasAI returns whether the report carries an AI-generated summary.
func (r InsightReport) HasAI() bool { return r.AIText != "" }
