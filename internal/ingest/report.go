package ingest

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// SheetReport holds the counters of one sheet within a run.
type SheetReport struct {
	Sheet      string             `json:"sheet"`
	Schema     string             `json:"schema"`
	Source     string             `json:"source"`
	Rows       int                `json:"rows"`
	Candidates int                `json:"candidates"`
	Duplicates int                `json:"duplicates"`
	Stored     int                `json:"stored"`
	Failed     int                `json:"failed"`
	Unresolved int                `json:"unresolved_basin"`
	Dropped    map[DropReason]int `json:"dropped"`
	Defaults   map[Field]int      `json:"defaults_used"`
	Error      string             `json:"error,omitempty"`
}

// Report summarizes a run.
type Report struct {
	Mode       Mode          `json:"mode"`
	Profile    string        `json:"profile"`
	Catalog    string        `json:"catalog"`
	Cleared    int64         `json:"cleared"`
	Basins     int           `json:"basins"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Sheets     []SheetReport `json:"sheets"`
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Report) sum(f func(SheetReport) int) int {
	n := 0
	for _, s := range r.Sheets {
		n += f(s)
	}
	return n
}

func (r *Report) Stored() int { return r.sum(func(s SheetReport) int { return s.Stored }) }
func (r *Report) Failed() int { return r.sum(func(s SheetReport) int { return s.Failed }) }

func (r *Report) Duplicates() int { return r.sum(func(s SheetReport) int { return s.Duplicates }) }

func (r *Report) Dropped() int {
	return r.sum(func(s SheetReport) int {
		n := 0
		for _, c := range s.Dropped {
			n += c
		}
		return n
	})
}

// SheetErrors lists sheets skipped for schema problems.
func (r *Report) SheetErrors() []string {
	var out []string
	for _, s := range r.Sheets {
		if s.Error != "" {
			out = append(out, s.Sheet+": "+s.Error)
		}
	}
	return out
}

// Print writes a human summary table.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "mode=%s profile=%s catalog=%s cleared=%d basins=%d took=%s\n",
		r.Mode, r.Profile, r.Catalog, r.Cleared, r.Basins, r.Duration().Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHEET\tROWS\tCANDIDATES\tDUPLICATES\tSTORED\tFAILED\tNO BASIN\tDROPPED\tDEFAULTS")
	for _, s := range r.Sheets {
		if s.Error != "" {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\t-\t%s\t\n", s.Sheet, s.Error)
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			s.Sheet, s.Rows, s.Candidates, s.Duplicates, s.Stored, s.Failed, s.Unresolved,
			formatCounts(s.Dropped), formatCounts(s.Defaults))
	}
	tw.Flush()
}

func formatCounts[K ~string](m map[K]int) string {
	if len(m) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[K(k)]))
	}
	return strings.Join(parts, " ")
}
