package entity

// NotAvailable is the placeholder used for analysis sections the service did
// not return.
const NotAvailable = "N/A"

// AnalysisResult holds the three free-text sections returned by the analysis
// service for one idea.
type AnalysisResult struct {
	Viability  string
	Risk       string
	ActionPlan string
}

// WithDefaults returns a copy where every empty section is replaced with
// NotAvailable.
func (r AnalysisResult) WithDefaults() AnalysisResult {
	if r.Viability == "" {
		r.Viability = NotAvailable
	}
	if r.Risk == "" {
		r.Risk = NotAvailable
	}
	if r.ActionPlan == "" {
		r.ActionPlan = NotAvailable
	}
	return r
}

// Report is a rendered document ready to be published.
type Report struct {
	Title string
	Body  string
}
