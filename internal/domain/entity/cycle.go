package entity

import "time"

// CycleState is a node of the linear cycle state machine.
type CycleState string

const (
	StateStart                  CycleState = "START"
	StateIdeate                 CycleState = "IDEATE"
	StateAnalyze                CycleState = "ANALYZE"
	StateReportPublished        CycleState = "REPORT_PUBLISHED"
	StateSummarize              CycleState = "SUMMARIZE"
	StateNewsPublished          CycleState = "NEWS_PUBLISHED"
	StateFailureReportPublished CycleState = "FAILURE_REPORT_PUBLISHED"
	StateDone                   CycleState = "DONE"
)

// CycleResult describes one run of the cycle. State is the last state
// reached; Trail lists every state in the order it was entered.
type CycleResult struct {
	Topic         Topic
	Idea          string
	State         CycleState
	Trail         []CycleState
	Report        *DocumentRef
	FailureReport *DocumentRef
	News          *DocumentRef
	Duration      time.Duration
}

// Enter records a transition to s.
func (r *CycleResult) Enter(s CycleState) {
	r.State = s
	r.Trail = append(r.Trail, s)
}

// Failed reports whether the cycle ended on the analysis failure edge.
func (r *CycleResult) Failed() bool {
	return r.FailureReport != nil
}

// Documents returns every document the cycle published, in publish order.
func (r *CycleResult) Documents() []*DocumentRef {
	var docs []*DocumentRef
	for _, d := range []*DocumentRef{r.Report, r.FailureReport, r.News} {
		if d != nil {
			docs = append(docs, d)
		}
	}
	return docs
}
