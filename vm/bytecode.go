package vm

import (
	"github.com/colorfulnotion/randomx/program"
	"github.com/colorfulnotion/randomx/superscalar"
)

const (
	jumpOffset       = 8
	conditionMask    = (1 << 8) - 1
	storeL3Condition = 14
)

// instr is one program instruction with operands resolved at load time.
type instr struct {
	kind program.Kind
	dst  uint8
	src  uint8
	// useImm replaces the source register by imm (R forms) or by zero (M forms).
	useImm  bool
	floatE  bool
	shift   uint8
	imm     uint64
	memMask uint32
	tier    Tier
	target  int16
}

// operand returns the integer source of R forms.
func (ins *instr) operand(r *[RegistersCount]uint64) uint64 {
	if ins.useImm {
		return ins.imm
	}
	return r[ins.src]
}

// address computes the scratchpad address of M forms and ISTORE.
func (ins *instr) address(r *[RegistersCount]uint64) uint32 {
	var base uint64
	if !ins.useImm {
		base = r[ins.src]
	}
	return uint32(base+ins.imm) & ins.memMask
}

func signExtend(imm uint32) uint64 { return uint64(int64(int32(imm))) }

func memTier(ins program.Instruction) Tier {
	if ins.ModMem() != 0 {
		return L1
	}
	return L2
}

func (ins *instr) setTier(t Tier) {
	ins.tier = t
	ins.memMask = t.Mask()
}

// compile resolves the operands of every instruction and the CBRANCH targets.
func compile(p *program.Program, code *[program.Size]instr) {
	var registerUsage [RegistersCount]int16
	for i := range registerUsage {
		registerUsage[i] = -1
	}
	for i := 0; i < program.Size; i++ {
		raw := p.At(i)
		ins := &code[i]
		*ins = instr{kind: raw.Kind()}
		dst := raw.Dst() % RegistersCount
		src := raw.Src() % RegistersCount
		ins.dst, ins.src = dst, src

		switch ins.kind {
		case program.IADD_RS:
			ins.shift = raw.ModShift()
			if dst == superscalar.RegisterNeedsDisplacement {
				ins.imm = signExtend(raw.Imm32())
			}
			registerUsage[dst] = int16(i)

		case program.IADD_M, program.ISUB_M, program.IMUL_M, program.IMULH_M, program.ISMULH_M, program.IXOR_M:
			ins.imm = signExtend(raw.Imm32())
			if src != dst {
				ins.setTier(memTier(raw))
			} else {
				ins.useImm = true
				ins.setTier(L3)
			}
			registerUsage[dst] = int16(i)

		case program.ISUB_R, program.IMUL_R, program.IXOR_R:
			if src == dst {
				ins.useImm = true
				ins.imm = signExtend(raw.Imm32())
			}
			registerUsage[dst] = int16(i)

		case program.IROR_R, program.IROL_R:
			if src == dst {
				ins.useImm = true
				ins.imm = uint64(raw.Imm32())
			}
			registerUsage[dst] = int16(i)

		case program.IMULH_R, program.ISMULH_R, program.INEG_R:
			registerUsage[dst] = int16(i)

		case program.IMUL_RCP:
			divisor := raw.Imm32()
			if superscalar.IsZeroOrPowerOf2(divisor) {
				ins.kind = program.NOP
				break
			}
			ins.kind = program.IMUL_R
			ins.useImm = true
			ins.imm = superscalar.Reciprocal(divisor)
			registerUsage[dst] = int16(i)

		case program.ISWAP_R:
			if src == dst {
				ins.kind = program.NOP
				break
			}
			registerUsage[dst] = int16(i)
			registerUsage[src] = int16(i)

		case program.FSWAP_R:
			if dst >= RegisterCountFlt {
				ins.floatE = true
				ins.dst = dst - RegisterCountFlt
			}

		case program.FADD_R, program.FSUB_R, program.FMUL_R:
			ins.dst = dst % RegisterCountFlt
			ins.src = src % RegisterCountFlt

		case program.FADD_M, program.FSUB_M, program.FDIV_M:
			ins.dst = dst % RegisterCountFlt
			ins.imm = signExtend(raw.Imm32())
			ins.setTier(memTier(raw))

		case program.FSCAL_R, program.FSQRT_R:
			ins.dst = dst % RegisterCountFlt

		case program.CBRANCH:
			ins.target = registerUsage[dst]
			shift := raw.ModCond() + jumpOffset
			ins.shift = shift
			ins.imm = signExtend(raw.Imm32()) | uint64(1)<<shift
			ins.imm &^= uint64(1) << (shift - 1)
			ins.memMask = conditionMask << shift
			for j := range registerUsage {
				registerUsage[j] = int16(i)
			}

		case program.CFROUND:
			ins.imm = uint64(raw.Imm32() & 63)

		case program.ISTORE:
			ins.imm = signExtend(raw.Imm32())
			if raw.ModCond() < storeL3Condition {
				ins.setTier(memTier(raw))
			} else {
				ins.setTier(L3)
			}
		}
	}
}
