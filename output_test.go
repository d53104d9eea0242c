package main

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotPerplexity(t *testing.T) {
	var buf bytes.Buffer
	plotPerplexity(&buf, []float64{300, 250, 200, 210})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, "val ppl 200.0 .. 300.0", lines[0])
	// only the first epoch reaches the top row
	assert.Equal(t, "█", lines[1])
	// every epoch reaches the bottom row
	assert.Equal(t, "████", lines[10])
	assert.Equal(t, "────", lines[11])
	assert.Equal(t, "1", strings.TrimRight(lines[12], " "))
}

func TestPlotPerplexityEmpty(t *testing.T) {
	var buf bytes.Buffer
	plotPerplexity(&buf, []float64{math.NaN()})
	assert.Equal(t, "no perplexity to plot\n", buf.String())
}
