package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopic(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Topic
		wantErr error
	}{
		{name: "plain", input: "climate tech", want: "climate tech"},
		{name: "trimmed", input: "  fintech\n", want: "fintech"},
		{name: "empty", input: "", wantErr: ErrEmptyTopic},
		{name: "whitespace only", input: " \t ", wantErr: ErrEmptyTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTopic(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnalysisResult_WithDefaults(t *testing.T) {
	got := AnalysisResult{Risk: "high"}.WithDefaults()

	assert.Equal(t, NotAvailable, got.Viability)
	assert.Equal(t, "high", got.Risk)
	assert.Equal(t, NotAvailable, got.ActionPlan)
}

func TestNewDocumentRef(t *testing.T) {
	ref := NewDocumentRef("abc123", "Report")

	assert.Equal(t, "abc123", ref.ID)
	assert.Equal(t, "Report", ref.Title)
	assert.Equal(t, "https://docs.google.com/document/d/abc123/edit", ref.URL)
}

func TestShareMode_Valid(t *testing.T) {
	assert.True(t, ShareModeShare.Valid())
	assert.True(t, ShareModeTransfer.Valid())
	assert.True(t, ShareModeCopy.Valid())
	assert.False(t, ShareMode("move").Valid())
	assert.False(t, ShareMode("").Valid())
}

func TestCycleResult_EnterAndDocuments(t *testing.T) {
	r := &CycleResult{}
	r.Enter(StateStart)
	r.Enter(StateIdeate)
	r.Enter(StateAnalyze)
	r.Enter(StateFailureReportPublished)
	r.FailureReport = NewDocumentRef("f1", "FAILED")
	r.Enter(StateDone)

	assert.Equal(t, StateDone, r.State)
	assert.Equal(t, []CycleState{StateStart, StateIdeate, StateAnalyze, StateFailureReportPublished, StateDone}, r.Trail)
	assert.True(t, r.Failed())
	assert.Len(t, r.Documents(), 1)
}
