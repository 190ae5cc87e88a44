package app

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/nonebot/store-test/internal/storetest"
)

// printSummary writes one row per visited candidate followed by the totals
func printSummary(w io.Writer, report *storetest.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Plugin", "Status", "Reason", "Passed", "Duration")

	passed := 0
	for _, o := range report.Outcomes {
		passedCell, durationCell := "-", "-"
		if o.Status == storetest.StatusTested {
			passedCell = strconv.FormatBool(o.Passed)
			durationCell = o.Duration.Round(100 * time.Millisecond).String()
		}
		if o.Passed {
			passed++
		}
		reason := o.Reason
		if o.Err != nil {
			reason = o.Err.Error()
		}
		if err := table.Append(o.Key.String(), string(o.Status), reason, passedCell, durationCell); err != nil {
			return err
		}
	}

	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "tested %d of limit %d, skipped %d, failed %d, passed %d\n",
		report.Tested, report.Limit,
		report.Count(storetest.StatusSkipped), report.Count(storetest.StatusFailed), passed)
	return err
}
