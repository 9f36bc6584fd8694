package superscalar

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/holiman/uint256"
)

const (
	// Latency is the target critical path of one program in simulated cycles.
	Latency = 170
	// MaxSize bounds the number of instructions of one program.
	MaxSize = 3*Latency + 2
	// RegisterNeedsDisplacement cannot be the destination of IADD_RS.
	RegisterNeedsDisplacement = 5

	cycleMapSize      = Latency + 4
	lookForwardCycles = 4
	maxThrowAwayCount = 256
)

// ByteSource is the seed stream consumed by the generator.
type ByteSource interface {
	GetByte() byte
	GetUint32() uint32
}

// Instruction is one generated superscalar instruction.
type Instruction struct {
	Type  Type
	Dst   int
	Src   int
	Mod   byte
	Imm32 uint32
	// Reciprocal holds the precomputed multiplier of IMUL_RCP.
	Reciprocal uint64
}

// ModShift is the shift amount of IADD_RS.
func (ins *Instruction) ModShift() uint { return uint(ins.Mod>>2) % 4 }

func (ins *Instruction) String() string {
	switch ins.Type {
	case ISUB_R:
		return fmt.Sprintf("r%d -= r%d", ins.Dst, ins.Src)
	case IXOR_R:
		return fmt.Sprintf("r%d ^= r%d", ins.Dst, ins.Src)
	case IADD_RS:
		return fmt.Sprintf("r%d += r%d << %d", ins.Dst, ins.Src, ins.ModShift())
	case IMUL_R:
		return fmt.Sprintf("r%d *= r%d", ins.Dst, ins.Src)
	case IROR_C:
		return fmt.Sprintf("r%d = ror(r%d, %d)", ins.Dst, ins.Dst, ins.Imm32)
	case IADD_C7, IADD_C8, IADD_C9:
		return fmt.Sprintf("r%d += %d", ins.Dst, int32(ins.Imm32))
	case IXOR_C7, IXOR_C8, IXOR_C9:
		return fmt.Sprintf("r%d ^= %d", ins.Dst, int32(ins.Imm32))
	case IMULH_R:
		return fmt.Sprintf("r%d = mulh(r%d, r%d)", ins.Dst, ins.Dst, ins.Src)
	case ISMULH_R:
		return fmt.Sprintf("r%d = smulh(r%d, r%d)", ins.Dst, ins.Dst, ins.Src)
	case IMUL_RCP:
		return fmt.Sprintf("r%d *= rcp(%d)", ins.Dst, ins.Imm32)
	}
	return "nop"
}

// Metrics summarizes the simulated schedule of a program.
type Metrics struct {
	MacroOps      int
	DecodeCycles  int
	CPULatency    int
	ASICLatency   int
	MulCount      int
	CodeSize      int
	CPULatencies  [8]int
	ASICLatencies [8]int
	IPC           float64
}

func (m Metrics) String() string {
	return fmt.Sprintf("macroOps=%d decodeCycles=%d cpuLatency=%d asicLatency=%d mulCount=%d codeSize=%d ipc=%.3f",
		m.MacroOps, m.DecodeCycles, m.CPULatency, m.ASICLatency, m.MulCount, m.CodeSize, m.IPC)
}

// Program is a deterministic SuperscalarHash program and its schedule metrics.
type Program struct {
	Instructions    []Instruction
	AddressRegister int
	Metrics         Metrics
}

func (p *Program) Size() int { return len(p.Instructions) }

// Execute applies the program to the register set. It is safe for concurrent
// use with distinct register sets.
func (p *Program) Execute(r *[8]uint64) {
	for i := range p.Instructions {
		ins := &p.Instructions[i]
		src := r[ins.Src]
		dst := &r[ins.Dst]
		switch ins.Type {
		case ISUB_R:
			*dst -= src
		case IXOR_R:
			*dst ^= src
		case IADD_RS:
			*dst += src << ins.ModShift()
		case IMUL_R:
			*dst *= src
		case IROR_C:
			*dst = bits.RotateLeft64(*dst, -int(ins.Imm32))
		case IADD_C7, IADD_C8, IADD_C9:
			*dst += signExtend(ins.Imm32)
		case IXOR_C7, IXOR_C8, IXOR_C9:
			*dst ^= signExtend(ins.Imm32)
		case IMULH_R:
			*dst, _ = bits.Mul64(*dst, src)
		case ISMULH_R:
			*dst = SignedMulHigh(*dst, src)
		case IMUL_RCP:
			*dst *= ins.Reciprocal
		}
	}
}

func (p *Program) String() string {
	var sb strings.Builder
	for i := range p.Instructions {
		fmt.Fprintf(&sb, "%3d: %-8s %s\n", i, p.Instructions[i].Type, p.Instructions[i].String())
	}
	fmt.Fprintf(&sb, "address register: r%d\n", p.AddressRegister)
	return sb.String()
}

func signExtend(imm uint32) uint64 {
	return uint64(int64(int32(imm)))
}

// SignedMulHigh returns the high 64 bits of the signed 128-bit product.
func SignedMulHigh(a, b uint64) uint64 {
	hi, _ := bits.Mul64(a, b)
	if int64(a) < 0 {
		hi -= b
	}
	if int64(b) < 0 {
		hi -= a
	}
	return hi
}

// IsZeroOrPowerOf2 reports divisors without a useful reciprocal.
func IsZeroOrPowerOf2(x uint32) bool {
	return x&(x-1) == 0
}

// Reciprocal returns floor(2^(63+bitlen(d)) / d), the fixed-point multiplier
// used by IMUL_RCP. d must be neither zero nor a power of two.
func Reciprocal(d uint32) uint64 {
	shift := uint(bits.Len32(d))
	n := new(uint256.Int).Lsh(uint256.NewInt(1), 63+shift)
	return n.Div(n, uint256.NewInt(uint64(d))).Uint64()
}
