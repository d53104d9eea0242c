package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// plotPerplexity draws a crude vertical bar chart of per-epoch validation
// perplexity, scaled between the smallest and largest finite value.
func plotPerplexity(w io.Writer, values []float64) {
	const height = 10 // number of text rows
	n := len(values)
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if n == 0 || math.IsInf(lo, 1) {
		fmt.Fprintln(w, "no perplexity to plot")
		return
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	fmt.Fprintf(w, "val ppl %.1f .. %.1f\n", lo, hi)
	for row := height; row >= 1; row-- {
		threshold := float64(row-1) / float64(height)
		var line strings.Builder
		for _, v := range values {
			if !math.IsNaN(v) && (v-lo)/span >= threshold {
				line.WriteString("█")
			} else {
				line.WriteString(" ")
			}
		}
		fmt.Fprintln(w, strings.TrimRight(line.String(), " "))
	}
	fmt.Fprintln(w, strings.Repeat("─", n))
	// epoch markers every 5 columns
	var axis strings.Builder
	for i := range values {
		if i%5 == 0 {
			axis.WriteString(strconv.Itoa((i + 1) % 10))
		} else {
			axis.WriteByte(' ')
		}
	}
	fmt.Fprintln(w, axis.String())
}
