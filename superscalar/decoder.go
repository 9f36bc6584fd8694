package superscalar

// DecoderBuffer is one way the simulated decoder splits a 16-byte fetch
// window into instruction slots.
type DecoderBuffer struct {
	Name   string
	Index  int
	Counts []int
}

func (d *DecoderBuffer) Size() int { return len(d.Counts) }

var (
	buffer484  = DecoderBuffer{"4,8,4", 0, []int{4, 8, 4}}
	buffer7333 = DecoderBuffer{"7,3,3,3", 1, []int{7, 3, 3, 3}}
	buffer3733 = DecoderBuffer{"3,7,3,3", 2, []int{3, 7, 3, 3}}
	buffer493  = DecoderBuffer{"4,9,3", 3, []int{4, 9, 3}}
	buffer4444 = DecoderBuffer{"4,4,4,4", 4, []int{4, 4, 4, 4}}
	buffer3310 = DecoderBuffer{"3,3,10", 5, []int{3, 3, 10}}

	defaultBuffers = [4]*DecoderBuffer{&buffer484, &buffer7333, &buffer3733, &buffer493}
)

// fetchNext picks the slot layout of the next decode cycle.
func fetchNext(last Type, cycle, mulCount int, gen ByteSource) *DecoderBuffer {
	// a 128-bit multiply decodes to 2 uops and must be followed by a 3,3,10 layout
	if last == IMULH_R || last == ISMULH_R {
		return &buffer3310
	}
	// keep the multiplier port saturated
	if mulCount < cycle+1 {
		return &buffer4444
	}
	// the multiply half of IMUL_RCP needs a leading 4-byte slot
	if last == IMUL_RCP {
		if gen.GetByte()&1 != 0 {
			return &buffer484
		}
		return &buffer493
	}
	return defaultBuffers[gen.GetByte()&3]
}
