package mapio

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/elektrokombinacija/skymind-sim/internal/core"
	"github.com/elektrokombinacija/skymind-sim/internal/sim"
)

// TextAgentID is the id given to the agent declared by an 'S' marker.
const TextAgentID = "drone-1"

// ParseText reads a fixed-width grid: '.' free, '#' obstacle, 'S' start,
// 'G' goal. Row i of the text is y = i. The grid is 8-connected with unit
// resolution.
func ParseText(data []byte) (*Description, error) {
	var rows []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		rows = append(rows, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, malformed("%v", err)
	}
	for len(rows) > 0 && rows[len(rows)-1] == "" {
		rows = rows[:len(rows)-1]
	}
	if len(rows) == 0 {
		return nil, malformed("empty grid")
	}

	width := len(rows[0])
	d := &Description{
		Grid: core.GridConfig{
			Width:        width,
			Height:       len(rows),
			Depth:        1,
			Resolution:   1,
			Connectivity: core.Conn8,
		},
	}
	var start, goal *core.Cell
	for y, row := range rows {
		if len(row) != width {
			return nil, malformed("row %d has width %d, want %d", y, len(row), width)
		}
		for x := 0; x < len(row); x++ {
			c := core.Cell{X: x, Y: y}
			switch row[x] {
			case '.':
			case '#':
				d.Blocked = append(d.Blocked, c)
			case 'S':
				if start != nil {
					return nil, malformed("second start at %v (first at %v)", c, *start)
				}
				start = &c
			case 'G':
				if goal != nil {
					return nil, malformed("second goal at %v (first at %v)", c, *goal)
				}
				goal = &c
			default:
				return nil, malformed("unknown character %q at %v", row[x], c)
			}
		}
	}
	if width == 0 {
		return nil, malformed("empty grid")
	}
	if goal != nil && start == nil {
		return nil, malformed("goal %v without a start", *goal)
	}
	if start != nil {
		d.Agents = []sim.AgentSpec{{ID: TextAgentID, Start: *start, Goal: goal}}
	}
	return d, nil
}
