package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/pastemate/internal/pastes"
)

func TestWriteSweepReport(t *testing.T) {
	expiredAt := time.Date(2022, 6, 24, 12, 0, 0, 0, time.UTC)
	matched := []pastes.ExpiredPaste{{ID: "paste-1", Title: "Old notes", ExpirationDate: expiredAt}}

	testCases := []struct {
		name   string
		report pastes.SweepReport
		want   []string
	}{
		{
			name:   "nothing matched",
			report: pastes.SweepReport{},
			want:   []string{"No expired pastes to remove."},
		},
		{
			name:   "nothing matched on a dry run",
			report: pastes.SweepReport{DryRun: true},
			want:   []string{"No expired pastes to remove."},
		},
		{
			name:   "dry run lists matches",
			report: pastes.SweepReport{DryRun: true, Matched: matched},
			want:   []string{"paste-1\t2022-06-24T12:00:00Z\tOld notes", "1 pastes would be removed."},
		},
		{
			name:   "delete reports the count",
			report: pastes.SweepReport{Matched: matched, Removed: 1},
			want:   []string{"paste-1\t2022-06-24T12:00:00Z\tOld notes", "1 pastes removed."},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var out bytes.Buffer
			writeSweepReport(&out, testCase.report)
			got := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
			if len(got) != len(testCase.want) {
				t.Fatalf("unexpected output %q", out.String())
			}
			for index := range got {
				if got[index] != testCase.want[index] {
					t.Fatalf("line %d = %q, want %q", index, got[index], testCase.want[index])
				}
			}
		})
	}
}
