package superscalar

// ExecutionPort is a bit set of the simulated ALU ports an uop may issue to.
type ExecutionPort uint8

const (
	Null ExecutionPort = 0
	P0   ExecutionPort = 1
	P1   ExecutionPort = 2
	P5   ExecutionPort = 4
	P01                = P0 | P1
	P05                = P0 | P5
	P015               = P0 | P1 | P5
)

// MacroOp is one x86 macro-op: fetch size in bytes, result latency in cycles
// and up to two uops.
type MacroOp struct {
	Name      string
	Size      int
	Latency   int
	Uop1      ExecutionPort
	Uop2      ExecutionPort
	Dependent bool
}

// IsSimple reports a single-uop macro-op.
func (m *MacroOp) IsSimple() bool { return m.Uop2 == Null }

// IsEliminated reports a macro-op removed by register renaming.
func (m *MacroOp) IsEliminated() bool { return m.Uop1 == Null }

var (
	opSubRR     = MacroOp{Name: "sub r,r", Size: 3, Latency: 1, Uop1: P015}
	opXorRR     = MacroOp{Name: "xor r,r", Size: 3, Latency: 1, Uop1: P015}
	opImulR     = MacroOp{Name: "imul r", Size: 3, Latency: 4, Uop1: P1, Uop2: P5}
	opMulR      = MacroOp{Name: "mul r", Size: 3, Latency: 4, Uop1: P1, Uop2: P5}
	opMovRR     = MacroOp{Name: "mov r,r", Size: 3}
	opLeaSIB    = MacroOp{Name: "lea r,r+r*s", Size: 4, Latency: 1, Uop1: P01}
	opImulRR    = MacroOp{Name: "imul r,r", Size: 4, Latency: 3, Uop1: P1}
	opRorRI     = MacroOp{Name: "ror r,i", Size: 4, Latency: 1, Uop1: P05}
	opAddRI     = MacroOp{Name: "add r,i", Size: 7, Latency: 1, Uop1: P015}
	opXorRI     = MacroOp{Name: "xor r,i", Size: 7, Latency: 1, Uop1: P015}
	opMovRI64   = MacroOp{Name: "mov rax,i64", Size: 10, Latency: 1, Uop1: P015}
	opImulRRDep = MacroOp{Name: "imul r,r", Size: 4, Latency: 3, Uop1: P1, Dependent: true}
)


// Type is one of the 14 superscalar instruction kinds.
type Type int

const (
	ISUB_R Type = iota
	IXOR_R
	IADD_RS
	IMUL_R
	IROR_C
	IADD_C7
	IXOR_C7
	IADD_C8
	IXOR_C8
	IADD_C9
	IXOR_C9
	IMULH_R
	ISMULH_R
	IMUL_RCP

	TypeCount = int(IMUL_RCP) + 1

	INVALID Type = -1
)

func (t Type) String() string {
	if t >= 0 && int(t) < TypeCount {
		return infos[t].Name
	}
	return "INVALID"
}

// IsMultiplication marks the kinds that occupy the multiplier port.
func (t Type) IsMultiplication() bool {
	return t == IMUL_R || t == IMULH_R || t == ISMULH_R || t == IMUL_RCP
}

// InstructionInfo lists the macro-ops of an instruction and which of them
// reads the source, selects the destination and writes the result.
type InstructionInfo struct {
	Name     string
	Type     Type
	Ops      []MacroOp
	ResultOp int
	DstOp    int
	SrcOp    int
}

func (i *InstructionInfo) Size() int { return len(i.Ops) }

// Latency is the sum of the macro-op latencies.
func (i *InstructionInfo) Latency() int {
	l := 0
	for _, op := range i.Ops {
		l += op.Latency
	}
	return l
}

func single(name string, t Type, op MacroOp, srcOp int) InstructionInfo {
	return InstructionInfo{Name: name, Type: t, Ops: []MacroOp{op}, SrcOp: srcOp}
}

var infos = [TypeCount]InstructionInfo{
	ISUB_R:   single("ISUB_R", ISUB_R, opSubRR, 0),
	IXOR_R:   single("IXOR_R", IXOR_R, opXorRR, 0),
	IADD_RS:  single("IADD_RS", IADD_RS, opLeaSIB, 0),
	IMUL_R:   single("IMUL_R", IMUL_R, opImulRR, 0),
	IROR_C:   single("IROR_C", IROR_C, opRorRI, -1),
	IADD_C7:  single("IADD_C7", IADD_C7, opAddRI, -1),
	IXOR_C7:  single("IXOR_C7", IXOR_C7, opXorRI, -1),
	IADD_C8:  single("IADD_C8", IADD_C8, opAddRI, -1),
	IXOR_C8:  single("IXOR_C8", IXOR_C8, opXorRI, -1),
	IADD_C9:  single("IADD_C9", IADD_C9, opAddRI, -1),
	IXOR_C9:  single("IXOR_C9", IXOR_C9, opXorRI, -1),
	IMULH_R:  {Name: "IMULH_R", Type: IMULH_R, Ops: []MacroOp{opMovRR, opMulR, opMovRR}, ResultOp: 1, DstOp: 0, SrcOp: 1},
	ISMULH_R: {Name: "ISMULH_R", Type: ISMULH_R, Ops: []MacroOp{opMovRR, opImulR, opMovRR}, ResultOp: 1, DstOp: 0, SrcOp: 1},
	IMUL_RCP: {Name: "IMUL_RCP", Type: IMUL_RCP, Ops: []MacroOp{opMovRI64, opImulRRDep}, ResultOp: 1, DstOp: 1, SrcOp: -1},
}

// nopInfo stands for "no instruction"; it has no macro-ops.
var nopInfo = InstructionInfo{Name: "NOP", Type: INVALID}

// Info returns the static description of t.
func Info(t Type) *InstructionInfo {
	if t < 0 || int(t) >= TypeCount {
		return &nopInfo
	}
	return &infos[t]
}

// Slot candidates by the byte size of the decoder slot the first macro-op lands in.
var (
	slot3     = [2]Type{ISUB_R, IXOR_R}
	slot3Last = [4]Type{ISUB_R, IXOR_R, IMULH_R, ISMULH_R}
	slot4     = [2]Type{IROR_C, IADD_RS}
	slot7     = [2]Type{IXOR_C7, IADD_C7}
	slot8     = [2]Type{IXOR_C8, IADD_C8}
	slot9     = [2]Type{IXOR_C9, IADD_C9}
)
