package vm

import (
	"fmt"
	"math/bits"

	"github.com/colorfulnotion/randomx/log"
	"github.com/colorfulnotion/randomx/program"
	"github.com/colorfulnotion/randomx/rxerrors"
	"github.com/colorfulnotion/randomx/superscalar"
)

// State of a Machine.
type State uint8

const (
	StateIdle State = iota
	StateLoaded
	StateRunning
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoaded:
		return "loaded"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Dataset serves 64-byte lines at cache-line aligned addresses. Implementations
// must allow concurrent reads.
type Dataset interface {
	ReadLine(addr uint64) [8]uint64
}

// Stats counts the work done by the last Run.
type Stats struct {
	Iterations    int
	Instructions  uint64
	BranchesTaken uint64
}

// Machine executes one program at a time over a private register file and
// scratchpad. A Machine is not safe for concurrent use.
type Machine struct {
	reg     RegisterFile
	sp      *Scratchpad
	dataset Dataset
	cfg     Configuration
	code    [program.Size]instr
	state   State
	stats   Stats
}

func NewMachine(dataset Dataset) *Machine {
	return &Machine{
		sp:      new(Scratchpad),
		dataset: dataset,
	}
}

// Load binds p, loads the A registers from its configuration and clears the
// working registers.
func (m *Machine) Load(p *program.Program) error {
	cfg, err := NewConfiguration(p.EntropyWords())
	if err != nil {
		return err
	}
	m.cfg = cfg
	m.reg.Reset()
	m.reg.A = cfg.A
	compile(p, &m.code)
	m.stats = Stats{}
	m.state = StateLoaded
	return nil
}

// ResetRounding restores round-to-nearest; done once per hash.
func (m *Machine) ResetRounding() { m.reg.FPRC = RoundNearest }

func (m *Machine) State() State { return m.state }
func (m *Machine) RegisterFile() *RegisterFile { return &m.reg }
func (m *Machine) Scratchpad() *Scratchpad { return m.sp }
func (m *Machine) Configuration() Configuration { return m.cfg }
func (m *Machine) Stats() Stats { return m.stats }
func (m *Machine) SetDataset(dataset Dataset) { m.dataset = dataset }

// Run executes ProgramIterations iterations of the loaded program.
func (m *Machine) Run() {
	if m.state != StateLoaded {
		rxerrors.Invariant("vm run", "machine is %s, want %s", m.state, StateLoaded)
	}
	m.state = StateRunning

	r := &m.reg.R
	cfg := &m.cfg
	sp := m.sp
	spAddr0 := cfg.Mx
	spAddr1 := cfg.Ma
	ma, mx := cfg.Ma, cfg.Mx

	for ic := 0; ic < ProgramIterations; ic++ {
		spMix := r[cfg.ReadReg[0]] ^ r[cfg.ReadReg[1]]
		spAddr0 ^= uint32(spMix)
		spAddr0 &= ScratchpadL3Mask64
		spAddr1 ^= uint32(spMix >> 32)
		spAddr1 &= ScratchpadL3Mask64

		for i := range r {
			r[i] ^= sp.Read64(spAddr0 + uint32(8*i))
		}
		for i := range m.reg.F {
			m.reg.F[i] = ConvertInt32Pair(sp.Read64(spAddr1 + uint32(8*i)))
		}
		for i := range m.reg.E {
			m.reg.E[i] = MaskE(ConvertInt32Pair(sp.Read64(spAddr1+uint32(8*(RegisterCountFlt+i)))), cfg.EMask)
		}

		m.execute()

		mx ^= uint32(r[cfg.ReadReg[2]] ^ r[cfg.ReadReg[3]])
		mx &= CacheLineAlignMask
		line := m.dataset.ReadLine(cfg.DatasetOffset + uint64(ma))
		for i := range r {
			r[i] ^= line[i]
		}
		mx, ma = ma, mx

		for i := range r {
			sp.Write64(spAddr1+uint32(8*i), r[i])
		}
		for i := range m.reg.F {
			m.reg.F[i] = m.reg.F[i].xorBits(m.reg.E[i].Bits())
			lo, hi := m.reg.F[i].Bits()
			sp.Write64(spAddr0+uint32(16*i), lo)
			sp.Write64(spAddr0+uint32(16*i+8), hi)
		}

		spAddr0 = 0
		spAddr1 = 0
		m.stats.Iterations++
	}
	m.state = StateHalted
	log.Trace(log.VMMonitoring, "program halted",
		"iterations", m.stats.Iterations, "instructions", m.stats.Instructions,
		"branches", m.stats.BranchesTaken, "fprc", m.reg.FPRC)
}

func (m *Machine) loadCvt(ins *instr, r *[RegistersCount]uint64) FloatReg {
	return ConvertInt32Pair(m.sp.Load64(ins.tier, ins.address(r)))
}

// execute runs the compiled program once.
func (m *Machine) execute() {
	r := &m.reg.R
	f := &m.reg.F
	e := &m.reg.E
	a := &m.reg.A
	mode := m.reg.FPRC

	for pc := 0; pc < program.Size; pc++ {
		ins := &m.code[pc]
		m.stats.Instructions++
		switch ins.kind {
		case program.IADD_RS:
			r[ins.dst] += r[ins.src]<<ins.shift + ins.imm
		case program.IADD_M:
			r[ins.dst] += m.sp.Load64(ins.tier, ins.address(r))
		case program.ISUB_R:
			r[ins.dst] -= ins.operand(r)
		case program.ISUB_M:
			r[ins.dst] -= m.sp.Load64(ins.tier, ins.address(r))
		case program.IMUL_R:
			r[ins.dst] *= ins.operand(r)
		case program.IMUL_M:
			r[ins.dst] *= m.sp.Load64(ins.tier, ins.address(r))
		case program.IMULH_R:
			r[ins.dst], _ = bits.Mul64(r[ins.dst], r[ins.src])
		case program.IMULH_M:
			r[ins.dst], _ = bits.Mul64(r[ins.dst], m.sp.Load64(ins.tier, ins.address(r)))
		case program.ISMULH_R:
			r[ins.dst] = superscalar.SignedMulHigh(r[ins.dst], r[ins.src])
		case program.ISMULH_M:
			r[ins.dst] = superscalar.SignedMulHigh(r[ins.dst], m.sp.Load64(ins.tier, ins.address(r)))
		case program.INEG_R:
			r[ins.dst] = -r[ins.dst]
		case program.IXOR_R:
			r[ins.dst] ^= ins.operand(r)
		case program.IXOR_M:
			r[ins.dst] ^= m.sp.Load64(ins.tier, ins.address(r))
		case program.IROR_R:
			r[ins.dst] = bits.RotateLeft64(r[ins.dst], -int(ins.operand(r)&63))
		case program.IROL_R:
			r[ins.dst] = bits.RotateLeft64(r[ins.dst], int(ins.operand(r)&63))
		case program.ISWAP_R:
			r[ins.dst], r[ins.src] = r[ins.src], r[ins.dst]

		case program.FSWAP_R:
			if ins.floatE {
				e[ins.dst].Lo, e[ins.dst].Hi = e[ins.dst].Hi, e[ins.dst].Lo
			} else {
				f[ins.dst].Lo, f[ins.dst].Hi = f[ins.dst].Hi, f[ins.dst].Lo
			}
		case program.FADD_R:
			f[ins.dst] = FloatReg{Add(mode, f[ins.dst].Lo, a[ins.src].Lo), Add(mode, f[ins.dst].Hi, a[ins.src].Hi)}
		case program.FADD_M:
			src := m.loadCvt(ins, r)
			f[ins.dst] = FloatReg{Add(mode, f[ins.dst].Lo, src.Lo), Add(mode, f[ins.dst].Hi, src.Hi)}
		case program.FSUB_R:
			f[ins.dst] = FloatReg{Sub(mode, f[ins.dst].Lo, a[ins.src].Lo), Sub(mode, f[ins.dst].Hi, a[ins.src].Hi)}
		case program.FSUB_M:
			src := m.loadCvt(ins, r)
			f[ins.dst] = FloatReg{Sub(mode, f[ins.dst].Lo, src.Lo), Sub(mode, f[ins.dst].Hi, src.Hi)}
		case program.FSCAL_R:
			f[ins.dst] = f[ins.dst].xorBits(FScalMask, FScalMask)
		case program.FMUL_R:
			e[ins.dst] = FloatReg{Mul(mode, e[ins.dst].Lo, a[ins.src].Lo), Mul(mode, e[ins.dst].Hi, a[ins.src].Hi)}
		case program.FDIV_M:
			src := MaskE(m.loadCvt(ins, r), m.cfg.EMask)
			e[ins.dst] = FloatReg{Div(mode, e[ins.dst].Lo, src.Lo), Div(mode, e[ins.dst].Hi, src.Hi)}
		case program.FSQRT_R:
			e[ins.dst] = FloatReg{Sqrt(mode, e[ins.dst].Lo), Sqrt(mode, e[ins.dst].Hi)}

		case program.CBRANCH:
			r[ins.dst] += ins.imm
			if r[ins.dst]&uint64(ins.memMask) == 0 {
				pc = int(ins.target)
				m.stats.BranchesTaken++
			}
		case program.CFROUND:
			mode = RoundingMode(bits.RotateLeft64(r[ins.src], -int(ins.imm)) % 4)
			m.reg.FPRC = mode
		case program.ISTORE:
			m.sp.Store64(ins.tier, uint32(r[ins.dst]+ins.imm)&ins.memMask, r[ins.src])
		case program.NOP:
		}
	}
}
