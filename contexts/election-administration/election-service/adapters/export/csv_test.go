package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

func TestCSVExporterWritesResultRows(t *testing.T) {
	key := entities.ArchiveKey{Year: 2026, Timestamp: "20260302T100000Z"}
	report := entities.ArchiveReport{
		Key:          key,
		GeneratedAt:  time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC),
		TotalBallots: 2,
		Turnout:      map[string]int{"IBCE": 1, "IAS": 1},
		Results: []entities.PositionResult{
			{
				Key:           entities.ScopedPosition("IAS", "Governor"),
				MaxSelections: 1,
				Candidates: []entities.CandidateResult{
					{CandidateID: "cand-1", DisplayName: "Ana, Reyes", Institute: "IAS", Votes: 1},
				},
				Abstentions: 0,
			},
		},
		Cases: entities.CaseSummary{Submitted: 3, Passed: 1},
	}

	var buf bytes.Buffer
	if err := (CSVExporter{}).Export(&buf, report); err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back csv: %v", err)
	}

	var found, turnoutOrdered bool
	turnout := make([]string, 0, 2)
	for _, row := range rows {
		if len(row) != 8 {
			t.Fatalf("expected 8 columns, got %v", row)
		}
		if row[0] == "result" && row[2] == "IAS" && row[3] == "Governor" && row[5] == "Ana, Reyes" && row[7] == "1" {
			found = true
		}
		if row[0] == "turnout" {
			turnout = append(turnout, row[2])
		}
	}
	turnoutOrdered = len(turnout) == 2 && turnout[0] == "IAS" && turnout[1] == "IBCE"
	if !found {
		t.Fatalf("expected governor result row, got %v", rows)
	}
	if !turnoutOrdered {
		t.Fatalf("expected turnout sorted by institute, got %v", turnout)
	}
	if got := (CSVExporter{}).ContentType(); got != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected content type %q", got)
	}
}

type failingWriter struct{ err error }

func (f failingWriter) Write([]byte) (int, error) { return 0, f.err }

func TestCSVExporterReportsWriteFailure(t *testing.T) {
	diskFull := errors.New("disk full")
	report := entities.ArchiveReport{
		Key:     entities.ArchiveKey{Year: 2026, Timestamp: "20260302T100000Z"},
		Turnout: map[string]int{"IAS": 4},
	}
	err := (CSVExporter{}).Export(failingWriter{err: diskFull}, report)
	if !errors.Is(err, diskFull) {
		t.Fatalf("expected write failure to surface, got %v", err)
	}
}
