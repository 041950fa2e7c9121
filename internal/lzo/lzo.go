// Package lzo implements the LZO1X block compression format used by
// Variant B and Variant C archive payloads. No third-party Go module in
// the reachable ecosystem implements LZO1X; this mirrors the reference
// implementation's own reliance on a dedicated external crate for the same
// codec rather than hand-rolling a substitute compression scheme.
package lzo

import (
	"encoding/binary"
	"errors"
)

// ErrCorrupt is returned when a compressed stream violates the LZO1X
// grammar (a match distance reaching before the start of the output).
var ErrCorrupt = errors.New("lzo: corrupt compressed data")

// ErrInputUnderrun is returned when the compressed stream ends before a
// control sequence is fully consumed.
var ErrInputUnderrun = errors.New("lzo: input underrun")

// ErrOutputOverrun is returned when decompression would write past the
// caller-declared output size, which for this format means the stream is
// corrupt (HVP archives always record the exact uncompressed size).
var ErrOutputOverrun = errors.New("lzo: output overrun")

const (
	modeGeneral = iota // read a control byte: literal run (t<16) or match (t>=16)
	modeAfterLiteral   // read a control byte: M1 short match (t<16) or match (t>=16)
)

type decoder struct {
	src []byte
	ip  int
	out []byte
}

func (d *decoder) needIP(n int) error {
	if d.ip+n > len(d.src) {
		return ErrInputUnderrun
	}
	return nil
}

func (d *decoder) copyLiteral(n int) error {
	if err := d.needIP(n); err != nil {
		return err
	}
	d.out = append(d.out, d.src[d.ip:d.ip+n]...)
	d.ip += n
	return nil
}

// copyMatch appends n bytes read from dist bytes behind the current output
// position; it copies byte-by-byte since source and destination ranges may
// overlap (runs of a repeated byte are encoded exactly this way).
func (d *decoder) copyMatch(dist, n int) error {
	if dist <= 0 || dist > len(d.out) {
		return ErrCorrupt
	}
	mpos := len(d.out) - dist
	for i := 0; i < n; i++ {
		d.out = append(d.out, d.out[mpos+i])
	}
	return nil
}

var errEndMarker = errors.New("lzo: end marker")

// decodeMatch consumes a match operation whose control byte is t (t>=16
// must already hold; the M1 short-match case with t<16 is handled
// separately by the caller in modeAfterLiteral). It returns the number of
// trailing literal bytes packed into the low 2 bits of the last distance
// byte, or errEndMarker if this was the LZO1X end-of-stream marker (zero
// distance in the 16..31 case).
func (d *decoder) decodeMatch(t int) (trailing int, err error) {
	switch {
	case t >= 64:
		mlen := (t >> 5) - 1
		if err := d.needIP(1); err != nil {
			return 0, err
		}
		dist := ((t >> 2) & 7) + (int(d.src[d.ip]) << 3) + 1
		d.ip++
		if err := d.copyMatch(dist, mlen+2); err != nil {
			return 0, err
		}
		return t & 3, nil

	case t >= 32:
		mlen := t & 31
		if mlen == 0 {
			for d.ip < len(d.src) && d.src[d.ip] == 0 {
				mlen += 255
				d.ip++
			}
			if err := d.needIP(1); err != nil {
				return 0, err
			}
			mlen += 31 + int(d.src[d.ip])
			d.ip++
		}
		if err := d.needIP(2); err != nil {
			return 0, err
		}
		lo := d.src[d.ip]
		le16 := binary.LittleEndian.Uint16(d.src[d.ip : d.ip+2])
		d.ip += 2
		dist := int(le16>>2) + 1
		if err := d.copyMatch(dist, mlen+2); err != nil {
			return 0, err
		}
		return int(lo) & 3, nil

	default: // 16 <= t < 32
		mlen := t & 7
		if mlen == 0 {
			for d.ip < len(d.src) && d.src[d.ip] == 0 {
				mlen += 255
				d.ip++
			}
			if err := d.needIP(1); err != nil {
				return 0, err
			}
			mlen += 7 + int(d.src[d.ip])
			d.ip++
		}
		if err := d.needIP(2); err != nil {
			return 0, err
		}
		lo := d.src[d.ip]
		le16 := binary.LittleEndian.Uint16(d.src[d.ip : d.ip+2])
		d.ip += 2
		dist := (t&8)<<11 + int(le16>>2)
		if dist == 0 {
			return 0, errEndMarker
		}
		dist += 0x4000
		if err := d.copyMatch(dist, mlen+2); err != nil {
			return 0, err
		}
		return int(lo) & 3, nil
	}
}

// Decompress expands an LZO1X compressed block into at most outSize bytes;
// a stream that ends after fewer bytes is returned as decoded. It follows the canonical LZO1X decompress grammar (shared by every
// compression level since the format, not the encoder, defines it).
func Decompress(src []byte, outSize int) ([]byte, error) {
	if len(src) < 3 {
		return nil, ErrInputUnderrun
	}
	d := &decoder{src: src, out: make([]byte, 0, outSize)}

	mode := modeGeneral
	// longRun is set after a literal run of 4 or more bytes, where a t<16
	// control byte is a 3-byte match at distance 0x801 and beyond rather
	// than the 2-byte near match that follows trailing literals.
	longRun := false
	if d.src[0] > 17 {
		t := int(d.src[0]) - 17
		d.ip = 1
		if err := d.copyLiteral(t); err != nil {
			return nil, err
		}
		mode = modeAfterLiteral
		longRun = t >= 4
	}

	for {
		if len(d.out) > outSize {
			return nil, ErrOutputOverrun
		}
		switch mode {
		case modeGeneral:
			if d.ip >= len(d.src) {
				return nil, ErrInputUnderrun
			}
			t := int(d.src[d.ip])
			d.ip++
			if t >= 16 {
				trailing, err := d.decodeMatch(t)
				if err == errEndMarker {
					return d.finish(outSize)
				}
				if err != nil {
					return nil, err
				}
				if trailing > 0 {
					if err := d.copyLiteral(trailing); err != nil {
						return nil, err
					}
					mode = modeAfterLiteral
					longRun = false
				}
				continue
			}
			if t == 0 {
				for d.ip < len(d.src) && d.src[d.ip] == 0 {
					t += 255
					d.ip++
				}
				if err := d.needIP(1); err != nil {
					return nil, err
				}
				t += 15 + int(d.src[d.ip])
				d.ip++
			}
			if err := d.copyLiteral(t + 3); err != nil {
				return nil, err
			}
			mode = modeAfterLiteral
			longRun = true

		case modeAfterLiteral:
			if d.ip >= len(d.src) {
				return nil, ErrInputUnderrun
			}
			t := int(d.src[d.ip])
			d.ip++
			if t < 16 {
				if err := d.needIP(1); err != nil {
					return nil, err
				}
				dist := (t >> 2) + (int(d.src[d.ip]) << 2) + 1
				mlen := 2
				if longRun {
					dist += 0x800
					mlen = 3
				}
				d.ip++
				if err := d.copyMatch(dist, mlen); err != nil {
					return nil, err
				}
				trailing := t & 3
				if trailing > 0 {
					if err := d.copyLiteral(trailing); err != nil {
						return nil, err
					}
					mode = modeAfterLiteral
					longRun = false
				} else {
					mode = modeGeneral
				}
				continue
			}
			trailing, err := d.decodeMatch(t)
			if err == errEndMarker {
				return d.finish(outSize)
			}
			if err != nil {
				return nil, err
			}
			if trailing > 0 {
				if err := d.copyLiteral(trailing); err != nil {
					return nil, err
				}
				mode = modeAfterLiteral
				longRun = false
			} else {
				mode = modeGeneral
			}
		}
	}
}

func (d *decoder) finish(outSize int) ([]byte, error) {
	if len(d.out) > outSize {
		return nil, ErrOutputOverrun
	}
	return d.out, nil
}
