package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColoredChange(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf, colorEnabled: true}

	up := o.FormatChange(4.48, 4.48)
	assert.True(t, strings.HasPrefix(up, "\x1b[32m"), "gain should be green: %q", up)
	assert.Equal(t, FormatChange(4.48, 4.48), stripANSI(up))

	down := o.FormatPercent(-2.5)
	assert.True(t, strings.HasPrefix(down, "\x1b[31m"), "loss should be red: %q", down)
	assert.Equal(t, "-2.50%", stripANSI(down))

	plain := &Output{writer: &buf}
	assert.Equal(t, "+1.00%", plain.FormatPercent(1))
}

func TestColoredTableAlignment(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf, colorEnabled: true}

	table := NewTable(o, "Ticker", "30D")
	table.AddRow("SWIGGY.NS", o.FormatPercent(3.2))
	table.AddRow("IXIGO.NS", o.FormatPercent(-12.75))
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Ticker     30D", strings.TrimRight(stripANSI(lines[0]), " "))
	assert.Equal(t, "IXIGO.NS   -12.75%", stripANSI(lines[3]))
	assert.Equal(t, displayWidth(lines[2]), displayWidth(lines[3]))
}

func TestBoxWithoutColor(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}

	o.Box("Sync", []string{"Saved: 2"})

	assert.Equal(t, "+----------+\n| Sync     |\n+----------+\n| Saved: 2 |\n+----------+\n",
		strings.ReplaceAll(buf.String(), "─", "-"))
}
