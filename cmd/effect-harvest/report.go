package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"effectharvest/internal/core/domain"
)

func renderBatchReport(report *domain.BatchReport) string {
	rows := make([][]string, 0, len(report.Keywords))
	for _, kr := range report.Keywords {
		c := kr.Downloads
		rows = append(rows, []string{
			kr.Keyword,
			strconv.Itoa(kr.Items),
			strconv.Itoa(kr.Descriptors),
			strconv.Itoa(c.Downloaded),
			strconv.Itoa(c.SkippedLowQuality),
			strconv.Itoa(c.SkippedExists),
			strconv.Itoa(c.Failed + c.Cancelled),
			humanize.Bytes(uint64(max(c.Bytes, 0))),
			keywordStatus(kr),
		})
	}

	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"Keyword", "Items", "Assets", "Downloaded", "Low quality", "Existing", "Failed", "Size", "Status"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
	))
	b.WriteString("\n")

	for _, kr := range report.Keywords {
		if kr.ResultPath != "" {
			fmt.Fprintf(&b, "%s result:      %s\n", kr.Keyword, kr.ResultPath)
		}
		if kr.DescriptorsPath != "" {
			fmt.Fprintf(&b, "%s descriptors: %s\n", kr.Keyword, kr.DescriptorsPath)
		}
		if kr.Err != nil {
			fmt.Fprintf(&b, "%s error:       %v\n", kr.Keyword, kr.Err)
		} else if kr.Warning != nil {
			fmt.Fprintf(&b, "%s warning:     %v\n", kr.Keyword, kr.Warning)
		}
	}

	elapsed := report.CompletedAt.Sub(report.StartedAt).Round(time.Millisecond)
	fmt.Fprintf(&b, "Run %s: %d keyword(s), %d failed, %s", report.RunID, len(report.Keywords), report.Failed(), elapsed)
	return b.String()
}

func keywordStatus(kr domain.KeywordReport) string {
	switch {
	case kr.Err != nil:
		return "failed (" + domain.Kind(kr.Err) + ")"
	case kr.Partial:
		return "partial"
	case kr.Downloads.Cancelled > 0:
		return "cancelled"
	default:
		return "ok"
	}
}
