package hvp

import "encoding/binary"

// Variant identifies which of the three on-disk container shapes an archive
// uses.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantA               // "Obscure 1": HV PackFile
	VariantB               // "Obscure 2": CRC32 name dictionary
	VariantC               // "Final Exam": embedded names blob
)

func (v Variant) String() string {
	switch v {
	case VariantA:
		return "obscure1"
	case VariantB:
		return "obscure2"
	case VariantC:
		return "finalexam"
	default:
		return "unknown"
	}
}

var (
	magicA   = []byte("HV PackF") // first 8 bytes of "HV PackFile\0"
	magicBLE = []byte{0x00, 0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00}
	magicBBE = []byte{0x00, 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	magicCLE = []byte{0x00, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00}
	magicCBE = []byte{0x00, 0x05, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

// DetectVariant classifies the first 8 bytes of a candidate archive. It
// returns VariantUnknown if none of the three magics match.
func DetectVariant(head []byte) Variant {
	if len(head) < 8 {
		return VariantUnknown
	}
	switch {
	case string(head[:8]) == string(magicA):
		return VariantA
	case string(head[:8]) == string(magicBLE), string(head[:8]) == string(magicBBE):
		return VariantB
	case string(head[:8]) == string(magicCLE), string(head[:8]) == string(magicCBE):
		return VariantC
	default:
		return VariantUnknown
	}
}

// detectEndian returns the byte order implied by a Variant B/C magic. It
// panics if head isn't a recognized B/C magic; callers must only invoke it
// after DetectVariant has confirmed the variant.
func detectEndian(head []byte) binary.ByteOrder {
	switch {
	case string(head[:4]) == string(magicBLE[:4]), string(head[:4]) == string(magicCLE[:4]):
		return binary.LittleEndian
	case string(head[:4]) == string(magicBBE[:4]), string(head[:4]) == string(magicCBE[:4]):
		return binary.BigEndian
	default:
		panic("hvp: detectEndian called on non-B/C magic")
	}
}
