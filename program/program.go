package program

import (
	"encoding/binary"
	"fmt"

	"github.com/colorfulnotion/randomx/rxerrors"
)

const (
	// Size is the number of instructions in one hashing program.
	Size = 256
	// EntropyWords is the number of configuration words preceding the instructions.
	EntropyWords = 16
	// InstructionSize is the encoded size of one instruction.
	InstructionSize = 8
	// BufferSize is the number of generator bytes that make up one program.
	BufferSize = EntropyWords*8 + Size*InstructionSize
)

// Instruction is one encoded 64-bit instruction word:
// opcode bits 0-7, dst 8-15, src 16-23, mod 24-31, imm32 32-63.
type Instruction uint64

func (i Instruction) Opcode() byte  { return byte(i) }
func (i Instruction) Dst() byte     { return byte(i >> 8) }
func (i Instruction) Src() byte     { return byte(i >> 16) }
func (i Instruction) Mod() byte     { return byte(i >> 24) }
func (i Instruction) Imm32() uint32 { return uint32(i >> 32) }

// ModMem selects the L1 (non-zero) or L2 (zero) scratchpad tier.
func (i Instruction) ModMem() byte { return i.Mod() % 4 }

// ModShift is the left shift applied to the source of IADD_RS.
func (i Instruction) ModShift() byte { return (i.Mod() >> 2) % 4 }

// ModCond is the CBRANCH condition offset and the ISTORE tier selector.
func (i Instruction) ModCond() byte { return i.Mod() >> 4 }

func (i Instruction) Kind() Kind { return opcodeTable[i.Opcode()] }

// NewInstruction packs the raw fields into a word.
func NewInstruction(opcode, dst, src, mod byte, imm uint32) Instruction {
	return Instruction(uint64(opcode) | uint64(dst)<<8 | uint64(src)<<16 | uint64(mod)<<24 | uint64(imm)<<32)
}

// Decoded is an instruction resolved to its kind with the raw fields.
type Decoded struct {
	Kind   Kind
	Opcode byte
	Dst    byte
	Src    byte
	Mod    byte
	Imm32  uint32
}

// Decode is total over all 64-bit words.
func Decode(word uint64) Decoded {
	i := Instruction(word)
	return Decoded{
		Kind:   i.Kind(),
		Opcode: i.Opcode(),
		Dst:    i.Dst(),
		Src:    i.Src(),
		Mod:    i.Mod(),
		Imm32:  i.Imm32(),
	}
}

func (d Decoded) String() string {
	return fmt.Sprintf("%-8s dst=r%d src=r%d mod=%#02x imm=%#08x", d.Kind, d.Dst%8, d.Src%8, d.Mod, d.Imm32)
}

// Program is the 16-word configuration followed by 256 instructions.
type Program struct {
	entropy      [EntropyWords]uint64
	instructions [Size]Instruction
}

// Parse reads a program from a BufferSize-byte generator output.
func Parse(buf []byte) (*Program, error) {
	if len(buf) != BufferSize {
		return nil, fmt.Errorf("program buffer of %d bytes: %w", len(buf), rxerrors.ErrCProgramSize)
	}
	p := new(Program)
	for i := range p.entropy {
		p.entropy[i] = binary.LittleEndian.Uint64(buf[8*i:])
	}
	code := buf[EntropyWords*8:]
	for i := range p.instructions {
		p.instructions[i] = Instruction(binary.LittleEndian.Uint64(code[InstructionSize*i:]))
	}
	return p, nil
}

// Entropy returns configuration word i.
func (p *Program) Entropy(i int) uint64 { return p.entropy[i] }

// EntropyWords returns a copy of the 16 configuration words.
func (p *Program) EntropyWords() []uint64 {
	out := make([]uint64, EntropyWords)
	copy(out, p.entropy[:])
	return out
}

// At returns instruction i.
func (p *Program) At(i int) Instruction { return p.instructions[i] }

// New builds a program from configuration words and code. Missing
// instructions are zero words.
func New(entropy []uint64, code []Instruction) *Program {
	p := new(Program)
	copy(p.entropy[:], entropy)
	copy(p.instructions[:], code)
	return p
}
