package program

import (
	"fmt"
	"strings"
)

// ProgramStats summarizes the instruction mix of a program.
type ProgramStats struct {
	Kinds  [KindCount]int
	Groups map[Group]int
	// Branches counts CBRANCH instructions; each one may loop back.
	Branches int
}

// Analyze returns the per-kind and per-group instruction counts.
func (p *Program) Analyze() *ProgramStats {
	stats := &ProgramStats{Groups: make(map[Group]int)}
	for _, ins := range p.instructions {
		k := ins.Kind()
		stats.Kinds[k]++
		stats.Groups[k.Group()]++
		if k == CBRANCH {
			stats.Branches++
		}
	}
	return stats
}

// String disassembles the program, one instruction per line.
func (p *Program) String() string {
	var sb strings.Builder
	for i, ins := range p.instructions {
		fmt.Fprintf(&sb, "%3d: %s\n", i, Decode(uint64(ins)))
	}
	return sb.String()
}
