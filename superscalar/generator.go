package superscalar

import (
	"github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/rxerrors"
)

type registerInfo struct {
	latency     int
	lastOpGroup Type
	lastOpPar   int32
}

// candidate is the instruction currently being issued, one macro-op at a time.
type candidate struct {
	info             *InstructionInfo
	src, dst         int
	mod              byte
	imm32            uint32
	opGroup          Type
	opGroupPar       int32
	canReuse         bool
	groupParIsSource bool
}

func (c *candidate) setNull() {
	c.info = &nopInfo
	c.src, c.dst = -1, -1
	c.canReuse, c.groupParIsSource = false, false
	c.opGroup = INVALID
}

func (c *candidate) createForSlot(gen ByteSource, slotSize int, buf *DecoderBuffer, isLast bool) {
	switch slotSize {
	case 3:
		// only the last slot can hold a 3-byte instruction with more than one macro-op
		if isLast {
			c.create(slot3Last[gen.GetByte()&3], gen)
		} else {
			c.create(slot3[gen.GetByte()&1], gen)
		}
	case 4:
		// 4,4,4,4 issues multiplications in its first three slots
		if buf == &buffer4444 && !isLast {
			c.create(IMUL_R, gen)
		} else {
			c.create(slot4[gen.GetByte()&1], gen)
		}
	case 7:
		c.create(slot7[gen.GetByte()&1], gen)
	case 8:
		c.create(slot8[gen.GetByte()&1], gen)
	case 9:
		c.create(slot9[gen.GetByte()&1], gen)
	case 10:
		c.create(IMUL_RCP, gen)
	default:
		rxerrors.Invariant("superscalar", "no instruction fits a %d-byte slot", slotSize)
	}
}

// create resets the candidate for t. opGroupPar survives the reset; every
// kind assigns it before it is read.
func (c *candidate) create(t Type, gen ByteSource) {
	c.info = Info(t)
	c.src, c.dst = -1, -1
	c.canReuse, c.groupParIsSource = false, false
	c.mod, c.imm32 = 0, 0
	switch t {
	case ISUB_R:
		c.opGroup = IADD_RS
		c.groupParIsSource = true
	case IXOR_R:
		c.opGroup = IXOR_R
		c.groupParIsSource = true
	case IADD_RS:
		c.mod = gen.GetByte()
		c.opGroup = IADD_RS
		c.groupParIsSource = true
	case IMUL_R:
		c.opGroup = IMUL_R
		c.groupParIsSource = true
	case IROR_C:
		for c.imm32 == 0 {
			c.imm32 = uint32(gen.GetByte() & 63)
		}
		c.opGroup = IROR_C
		c.opGroupPar = -1
	case IADD_C7, IADD_C8, IADD_C9:
		c.imm32 = gen.GetUint32()
		c.opGroup = IADD_C7
		c.opGroupPar = -1
	case IXOR_C7, IXOR_C8, IXOR_C9:
		c.imm32 = gen.GetUint32()
		c.opGroup = IXOR_C7
		c.opGroupPar = -1
	case IMULH_R, ISMULH_R:
		c.canReuse = true
		c.opGroup = t
		c.opGroupPar = int32(gen.GetUint32())
	case IMUL_RCP:
		for IsZeroOrPowerOf2(c.imm32) {
			c.imm32 = gen.GetUint32()
		}
		c.opGroup = IMUL_RCP
		c.opGroupPar = -1
	}
}

func (c *candidate) groupPar() int32 {
	if c.groupParIsSource {
		return int32(c.src)
	}
	return c.opGroupPar
}

func selectRegister(available []int, gen ByteSource) (int, bool) {
	switch len(available) {
	case 0:
		return 0, false
	case 1:
		return available[0], true
	}
	return available[gen.GetUint32()%uint32(len(available))], true
}

func (c *candidate) selectSource(cycle int, registers *[8]registerInfo, gen ByteSource) bool {
	var buf [8]int
	available := buf[:0]
	for i := range registers {
		if registers[i].latency <= cycle {
			available = append(available, i)
		}
	}
	// with two candidates for IADD_RS, r5 must take the source role since it cannot be the destination
	if len(available) == 2 && c.info.Type == IADD_RS {
		if available[0] == RegisterNeedsDisplacement || available[1] == RegisterNeedsDisplacement {
			c.src = RegisterNeedsDisplacement
			c.opGroupPar = RegisterNeedsDisplacement
			return true
		}
	}
	reg, ok := selectRegister(available, gen)
	if !ok {
		return false
	}
	c.src = reg
	if c.groupParIsSource {
		c.opGroupPar = int32(reg)
	}
	return true
}

func (c *candidate) selectDestination(cycle int, allowChainedMul bool, registers *[8]registerInfo, gen ByteSource) bool {
	var buf [8]int
	available := buf[:0]
	for i := range registers {
		ri := &registers[i]
		if ri.latency > cycle {
			continue
		}
		if !c.canReuse && i == c.src {
			continue
		}
		if !allowChainedMul && c.opGroup == IMUL_R && ri.lastOpGroup == IMUL_R {
			continue
		}
		if ri.lastOpGroup == c.opGroup && ri.lastOpPar == c.opGroupPar {
			continue
		}
		if c.info.Type == IADD_RS && i == RegisterNeedsDisplacement {
			continue
		}
		available = append(available, i)
	}
	reg, ok := selectRegister(available, gen)
	if ok {
		c.dst = reg
	}
	return ok
}

func (c *candidate) toInstruction() Instruction {
	ins := Instruction{
		Type:  c.info.Type,
		Dst:   c.dst,
		Src:   c.src,
		Mod:   c.mod,
		Imm32: c.imm32,
	}
	if ins.Src < 0 {
		ins.Src = ins.Dst
	}
	if ins.Type == IMUL_RCP {
		ins.Reciprocal = Reciprocal(ins.Imm32)
	}
	return ins
}

type portMap [cycleMapSize][3]bool

// scheduleUop finds the first cycle with a free port for uop, trying P5, P0
// then P1 so that the multiplier port stays available.
func scheduleUop(uop ExecutionPort, ports *portMap, cycle int, commit bool) int {
	for ; cycle < cycleMapSize; cycle++ {
		if uop&P5 != 0 && !ports[cycle][2] {
			if commit {
				ports[cycle][2] = true
			}
			return cycle
		}
		if uop&P0 != 0 && !ports[cycle][0] {
			if commit {
				ports[cycle][0] = true
			}
			return cycle
		}
		if uop&P1 != 0 && !ports[cycle][1] {
			if commit {
				ports[cycle][1] = true
			}
			return cycle
		}
	}
	return -1
}

// scheduleMop returns the issue cycle of mop or -1 when the ports are saturated.
func scheduleMop(mop *MacroOp, ports *portMap, cycle, depCycle int, commit bool) int {
	if mop.Dependent && depCycle > cycle {
		cycle = depCycle
	}
	if mop.IsEliminated() {
		return cycle
	}
	if mop.IsSimple() {
		return scheduleUop(mop.Uop1, ports, cycle, commit)
	}
	// both uops of a two-uop macro-op must issue in the same cycle
	for ; cycle < cycleMapSize; cycle++ {
		cycle1 := scheduleUop(mop.Uop1, ports, cycle, false)
		cycle2 := scheduleUop(mop.Uop2, ports, cycle, false)
		if cycle1 >= 0 && cycle1 == cycle2 {
			if commit {
				scheduleUop(mop.Uop1, ports, cycle1, true)
				scheduleUop(mop.Uop2, ports, cycle2, true)
			}
			return cycle1
		}
	}
	return -1
}

// Generate simulates decoding and scheduling on a 3-port out-of-order core
// and returns the resulting program. The result depends only on the bytes
// drawn from gen.
func Generate(gen ByteSource) *Program {
	return generate(gen, nil)
}

// generate is Generate with an optional observer called with the running
// multiplication count after every issued instruction.
func generate(gen ByteSource, issued func(mulCount int)) *Program {
	var (
		ports          portMap
		registers      [8]registerInfo
		cur            candidate
		macroOpIndex   int
		codeSize       int
		macroOpCount   int
		cycle          int
		depCycle       int
		retireCycle    int
		portsSaturated bool
		mulCount       int
		throwAwayCount int
		decodeCycle    int
	)
	for i := range registers {
		registers[i] = registerInfo{lastOpGroup: INVALID, lastOpPar: -1}
	}
	cur.setNull()
	prog := &Program{Instructions: make([]Instruction, 0, MaxSize)}

	for decodeCycle = 0; decodeCycle < Latency && !portsSaturated && len(prog.Instructions) < MaxSize; decodeCycle++ {
		buf := fetchNext(cur.info.Type, decodeCycle, mulCount, gen)
		bufferIndex := 0

		for bufferIndex < buf.Size() {
			topCycle := cycle

			if macroOpIndex >= cur.info.Size() {
				if portsSaturated || len(prog.Instructions) >= MaxSize {
					break
				}
				cur.createForSlot(gen, buf.Counts[bufferIndex], buf, buf.Size() == bufferIndex+1)
				macroOpIndex = 0
			}
			mop := &cur.info.Ops[macroOpIndex]

			scheduleCycle := scheduleMop(mop, &ports, cycle, depCycle, false)
			if scheduleCycle < 0 {
				portsSaturated = true
				break
			}

			if macroOpIndex == cur.info.SrcOp {
				forward := 0
				for ; forward < lookForwardCycles && !cur.selectSource(scheduleCycle, &registers, gen); forward++ {
					scheduleCycle++
					cycle++
				}
				if forward == lookForwardCycles {
					if throwAwayCount < maxThrowAwayCount {
						throwAwayCount++
						macroOpIndex = cur.info.Size()
						continue
					}
					cur.setNull()
					break
				}
			}
			if macroOpIndex == cur.info.DstOp {
				forward := 0
				for ; forward < lookForwardCycles && !cur.selectDestination(scheduleCycle, throwAwayCount > 0, &registers, gen); forward++ {
					scheduleCycle++
					cycle++
				}
				if forward == lookForwardCycles {
					if throwAwayCount < maxThrowAwayCount {
						throwAwayCount++
						macroOpIndex = cur.info.Size()
						continue
					}
					cur.setNull()
					break
				}
			}
			throwAwayCount = 0

			// operands are known now; commit the ports
			scheduleCycle = scheduleMop(mop, &ports, scheduleCycle, scheduleCycle, true)
			if scheduleCycle < 0 {
				portsSaturated = true
				break
			}
			depCycle = scheduleCycle + mop.Latency

			if macroOpIndex == cur.info.ResultOp {
				ri := &registers[cur.dst]
				retireCycle = depCycle
				ri.latency = retireCycle
				ri.lastOpGroup = cur.opGroup
				ri.lastOpPar = cur.groupPar()
			}
			codeSize += mop.Size
			bufferIndex++
			macroOpIndex++
			macroOpCount++

			if scheduleCycle >= Latency {
				portsSaturated = true
			}
			cycle = topCycle

			if macroOpIndex >= cur.info.Size() {
				prog.Instructions = append(prog.Instructions, cur.toInstruction())
				if cur.info.Type.IsMultiplication() {
					mulCount++
				}
				if issued != nil {
					issued(mulCount)
				}
			}
		}
		cycle++
	}

	m := &prog.Metrics
	for i := range prog.Instructions {
		ins := &prog.Instructions[i]
		latDst := m.ASICLatencies[ins.Dst] + 1
		latSrc := 0
		if ins.Dst != ins.Src {
			latSrc = m.ASICLatencies[ins.Src] + 1
		}
		m.ASICLatencies[ins.Dst] = max(latDst, latSrc)
	}
	for i := range registers {
		if m.ASICLatencies[i] > m.ASICLatency {
			m.ASICLatency = m.ASICLatencies[i]
			prog.AddressRegister = i
		}
		m.CPULatencies[i] = registers[i].latency
	}
	m.CPULatency = retireCycle
	m.CodeSize = codeSize
	m.MacroOps = macroOpCount
	m.DecodeCycles = decodeCycle
	m.MulCount = mulCount
	if retireCycle > 0 {
		m.IPC = float64(macroOpCount) / float64(retireCycle)
	}

	log.Trace(log.SuperscalarMonitoring, "superscalar program generated",
		"size", len(prog.Instructions), "addressReg", prog.AddressRegister, "metrics", m.String())
	return prog
}
