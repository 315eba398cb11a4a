package main

import (
	"NetSentinel/internal/alerter"
	"NetSentinel/internal/engine/stats"
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/dustin/go-humanize"
)

type count struct {
	key string
	n   uint64
}

// topN returns the n largest entries of counts, ties broken by key.
func topN(counts map[string]uint64, n int) []count {
	out := make([]count, 0, len(counts))
	for k, v := range counts {
		out = append(out, count{key: k, n: v})
	}
	slices.SortFunc(out, func(a, b count) int {
		if c := cmp.Compare(b.n, a.n); c != 0 {
			return c
		}
		return cmp.Compare(a.key, b.key)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func printSummary(w io.Writer, m stats.Snapshot, a alerter.Snapshot, top int) {
	fmt.Fprintln(w, "Traffic:")
	fmt.Fprintf(w, "  Packets : %s\n", humanize.Comma(int64(m.TotalPackets)))
	fmt.Fprintf(w, "  Bytes   : %s\n", humanize.Bytes(m.TotalBytes))
	for _, c := range topN(m.PerProtocol, -1) {
		fmt.Fprintf(w, "  %-8s: %s\n", c.key, humanize.Comma(int64(c.n)))
	}

	fmt.Fprintln(w, "Top sources:")
	for _, c := range topN(m.PerSource, top) {
		fmt.Fprintf(w, "  %-39s %s\n", c.key, humanize.Comma(int64(c.n)))
	}

	fmt.Fprintf(w, "Alerts: %s\n", humanize.Comma(int64(a.TotalAlerts)))
	for _, c := range topN(a.ByKind, -1) {
		fmt.Fprintf(w, "  %-14s %d\n", c.key, c.n)
	}
	for _, alert := range a.Recent {
		fmt.Fprintf(w, "  [%s] %s %s %s\n", alert.Severity, alert.Timestamp.Format("15:04:05.000"), alert.Kind, alert.SourceKey)
	}
}

