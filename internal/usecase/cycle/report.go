package cycle

import (
	"fmt"
	"strings"
	"time"

	"kairos/internal/domain/entity"
	"kairos/internal/utils/text"
)

const (
	reportTitlePrefix        = "Ethical Adversary Analysis: "
	failureReportTitlePrefix = "Ethical Adversary Analysis FAILED: "
	newsTitleFormat          = "Weekly Intelligence Briefing: %s - %s"
)

// sectionSeparator divides report sections.
const sectionSeparator = "\n\n---\n\n"

// RenderReport builds the analysis report for idea.
func RenderReport(idea string, analysis entity.AnalysisResult) entity.Report {
	analysis = analysis.WithDefaults()

	var sb strings.Builder
	sb.WriteString("Product Idea: ")
	sb.WriteString(idea)
	sb.WriteString(sectionSeparator)
	sb.WriteString("# Product Viability Report (Blue Team)\n\n")
	sb.WriteString(analysis.Viability)
	sb.WriteString(sectionSeparator)
	sb.WriteString("# Risk Report (Red Team)\n\n")
	sb.WriteString(analysis.Risk)
	sb.WriteString(sectionSeparator)
	sb.WriteString("# Action Plan (Resolution)\n\n")
	sb.WriteString(analysis.ActionPlan)

	return entity.Report{
		Title: reportTitlePrefix + titleText(idea),
		Body:  sb.String(),
	}
}

// RenderFailureReport builds the document published when the analysis call
// fails.
func RenderFailureReport(topic entity.Topic, idea string, cause error) entity.Report {
	body := fmt.Sprintf(
		"Topic: %s\n\nProduct Idea: %s%s# Analysis Failed\n\nThe analysis service did not return a report.\n\nError: %v",
		topic, idea, sectionSeparator, cause)
	return entity.Report{
		Title: failureReportTitlePrefix + titleText(idea),
		Body:  body,
	}
}

// RenderNews builds the weekly briefing document for topic, dated on.
func RenderNews(topic entity.Topic, summary string, on time.Time) entity.Report {
	return entity.Report{
		Title: fmt.Sprintf(newsTitleFormat, titleText(topic.String()), on.Format("2006-01-02")),
		Body:  summary,
	}
}

// titleText keeps titles on one line.
func titleText(s string) string {
	return text.CollapseWhitespace(s)
}
