package program

// Instruction kinds of the hashing VM. Each opcode byte maps to exactly one
// kind through the cumulative frequency table below.
type Kind uint8

// Integer instructions.
const (
	IADD_RS Kind = iota
	IADD_M
	ISUB_R
	ISUB_M
	IMUL_R
	IMUL_M
	IMULH_R
	IMULH_M
	ISMULH_R
	ISMULH_M
	IMUL_RCP
	INEG_R
	IXOR_R
	IXOR_M
	IROR_R
	IROL_R
	ISWAP_R
)

// Floating point instructions.
const (
	FSWAP_R Kind = iota + ISWAP_R + 1
	FADD_R
	FADD_M
	FSUB_R
	FSUB_M
	FSCAL_R
	FMUL_R
	FDIV_M
	FSQRT_R
)

// Control and store instructions.
const (
	CBRANCH Kind = iota + FSQRT_R + 1
	CFROUND
	ISTORE
	NOP

	KindCount = int(NOP) + 1
)

type Group uint8

const (
	GroupInteger Group = iota
	GroupFloat
	GroupControl
	GroupStore
)

func (g Group) String() string {
	switch g {
	case GroupInteger:
		return "integer"
	case GroupFloat:
		return "float"
	case GroupControl:
		return "control"
	case GroupStore:
		return "store"
	}
	return "unknown"
}

// frequencies are out of 256 opcode values.
var frequencies = [KindCount]int{
	IADD_RS:  16,
	IADD_M:   7,
	ISUB_R:   16,
	ISUB_M:   7,
	IMUL_R:   16,
	IMUL_M:   4,
	IMULH_R:  4,
	IMULH_M:  1,
	ISMULH_R: 4,
	ISMULH_M: 1,
	IMUL_RCP: 8,
	INEG_R:   2,
	IXOR_R:   15,
	IXOR_M:   5,
	IROR_R:   8,
	IROL_R:   2,
	ISWAP_R:  4,

	FSWAP_R: 4,
	FADD_R:  16,
	FADD_M:  5,
	FSUB_R:  16,
	FSUB_M:  5,
	FSCAL_R: 6,
	FMUL_R:  32,
	FDIV_M:  4,
	FSQRT_R: 6,

	CBRANCH: 25,
	CFROUND: 1,
	ISTORE:  16,
	NOP:     0,
}

var kindNames = [KindCount]string{
	IADD_RS:  "IADD_RS",
	IADD_M:   "IADD_M",
	ISUB_R:   "ISUB_R",
	ISUB_M:   "ISUB_M",
	IMUL_R:   "IMUL_R",
	IMUL_M:   "IMUL_M",
	IMULH_R:  "IMULH_R",
	IMULH_M:  "IMULH_M",
	ISMULH_R: "ISMULH_R",
	ISMULH_M: "ISMULH_M",
	IMUL_RCP: "IMUL_RCP",
	INEG_R:   "INEG_R",
	IXOR_R:   "IXOR_R",
	IXOR_M:   "IXOR_M",
	IROR_R:   "IROR_R",
	IROL_R:   "IROL_R",
	ISWAP_R:  "ISWAP_R",
	FSWAP_R:  "FSWAP_R",
	FADD_R:   "FADD_R",
	FADD_M:   "FADD_M",
	FSUB_R:   "FSUB_R",
	FSUB_M:   "FSUB_M",
	FSCAL_R:  "FSCAL_R",
	FMUL_R:   "FMUL_R",
	FDIV_M:   "FDIV_M",
	FSQRT_R:  "FSQRT_R",
	CBRANCH:  "CBRANCH",
	CFROUND:  "CFROUND",
	ISTORE:   "ISTORE",
	NOP:      "NOP",
}

// opcodeTable resolves an opcode byte to its kind.
var opcodeTable [256]Kind

func init() {
	op := 0
	for k := 0; k < KindCount; k++ {
		for n := 0; n < frequencies[k]; n++ {
			opcodeTable[op] = Kind(k)
			op++
		}
	}
	if op != 256 {
		panic("program: instruction frequencies do not cover the opcode space")
	}
}

func (k Kind) String() string {
	if int(k) < KindCount {
		return kindNames[k]
	}
	return "UNKNOWN"
}

func (k Kind) Group() Group {
	switch {
	case k <= ISWAP_R:
		return GroupInteger
	case k <= FSQRT_R:
		return GroupFloat
	case k == ISTORE:
		return GroupStore
	default:
		return GroupControl
	}
}

// Frequency returns how many of the 256 opcode values decode to k.
func Frequency(k Kind) int {
	if int(k) >= KindCount {
		return 0
	}
	return frequencies[k]
}

// OpcodeRange returns the first and last opcode of k; ok is false for kinds without opcodes.
func OpcodeRange(k Kind) (first, last byte, ok bool) {
	start := 0
	for i := 0; i < int(k) && i < KindCount; i++ {
		start += frequencies[i]
	}
	if Frequency(k) == 0 {
		return 0, 0, false
	}
	return byte(start), byte(start + frequencies[k] - 1), true
}
