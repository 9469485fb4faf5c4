package export

import (
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"time"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

// CSVExporter writes the human-readable archive report. Every row carries
// the section it belongs to so the file loads as one table.
type CSVExporter struct{}

func (CSVExporter) ContentType() string {
	return "text/csv; charset=utf-8"
}

func (CSVExporter) Export(w io.Writer, report entities.ArchiveReport) error {
	return csv.NewWriter(w).WriteAll(reportRows(report))
}

func reportRows(report entities.ArchiveReport) [][]string {
	rows := [][]string{
		{"section", "scope", "institute", "position", "candidate_id", "display_name", "team", "value"},
		{"summary", "", "", "archive", "", "", "", report.Key.String()},
		{"summary", "", "", "generated_at", "", "", "", report.GeneratedAt.UTC().Format(time.RFC3339)},
		{"summary", "", "", "total_ballots", "", "", "", strconv.Itoa(report.TotalBallots)},
	}

	institutes := make([]string, 0, len(report.Turnout))
	for institute := range report.Turnout {
		institutes = append(institutes, institute)
	}
	sort.Strings(institutes)
	for _, institute := range institutes {
		rows = append(rows, []string{"turnout", "", institute, "", "", "", "", strconv.Itoa(report.Turnout[institute])})
	}

	for _, result := range report.Results {
		scope := string(result.Key.Scope())
		institute := result.Key.Institute()
		position := result.Key.Name()
		for _, candidate := range result.Candidates {
			rows = append(rows, []string{
				"result",
				scope,
				institute,
				position,
				candidate.CandidateID,
				candidate.DisplayName,
				candidate.Team,
				strconv.Itoa(candidate.Votes),
			})
		}
		rows = append(rows, []string{"abstentions", scope, institute, position, "", "", "", strconv.Itoa(result.Abstentions)})
	}

	cases := []struct {
		label string
		count int
	}{
		{"submitted", report.Cases.Submitted},
		{"reviewed", report.Cases.Reviewed},
		{"approved", report.Cases.Approved},
		{"rejected", report.Cases.Rejected},
		{"passed", report.Cases.Passed},
		{"failed", report.Cases.Failed},
	}
	for _, item := range cases {
		rows = append(rows, []string{"cases", "", "", item.label, "", "", "", strconv.Itoa(item.count)})
	}
	return rows
}
