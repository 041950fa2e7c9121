package lzo

// Compress produces an LZO1X-compatible compressed block for src. It uses a
// straightforward greedy hash-chain match finder (4-byte hash, bounded
// chain depth) rather than the optimal-parse search a production LZO
// encoder would use; decompression is format-defined, so anything this
// encoder emits round-trips through Decompress (and through any other
// LZO1X decoder) even though the compression ratio is not optimal.
func Compress(src []byte) []byte {
	n := len(src)
	if n == 0 {
		return []byte{0x11, 0x00, 0x00}
	}

	segs := parse(src)
	return emit(src, segs)
}

// segment is either a literal run [start,start+litLen) or, when matchLen>0,
// a back-reference of matchLen bytes at matchDist, optionally preceded by a
// literal run of litLen bytes starting at start.
type segment struct {
	start    int
	litLen   int
	matchDist int
	matchLen int
}

const (
	minMatch  = 3
	maxWindow = 16384
	hashBits  = 15
	hashSize  = 1 << hashBits
	chainLen  = 32
)

// parse runs the greedy hash-chain search over src and returns the ordered
// sequence of literal-run/match segments describing it.
func parse(src []byte) []segment {
	n := len(src)
	head := make([]int, hashSize)
	for i := range head {
		head[i] = -1
	}
	prev := make([]int, n)

	hash4 := func(i int) uint32 {
		v := uint32(src[i]) | uint32(src[i+1])<<8 | uint32(src[i+2])<<16 | uint32(src[i+3])<<24
		return (v * 2654435761) >> (32 - hashBits)
	}
	insert := func(i int) {
		if i+4 > n {
			return
		}
		h := hash4(i)
		prev[i] = head[h]
		head[h] = i
	}
	findMatch := func(i int) (dist, length int) {
		if i+4 > n {
			return 0, 0
		}
		h := hash4(i)
		cand := head[h]
		best, bestCand := 0, -1
		tries := chainLen
		for cand >= 0 && tries > 0 {
			if i-cand > maxWindow {
				break
			}
			l, max := 0, n-i
			for l < max && src[cand+l] == src[i+l] {
				l++
			}
			if l > best {
				best, bestCand = l, cand
			}
			cand = prev[cand]
			tries--
		}
		if best < minMatch {
			return 0, 0
		}
		return i - bestCand, best
	}

	var segs []segment
	litStart := 0
	// Never start a match at position 0: every stream must open with a
	// literal run, however short, so the decoder's initial dispatch is
	// unambiguous.
	i := 1
	for i < n {
		dist, length := findMatch(i)
		if length < minMatch {
			insert(i)
			i++
			continue
		}
		segs = append(segs, segment{start: litStart, litLen: i - litStart, matchDist: dist, matchLen: length})
		insert(i)
		for k := i + 1; k < i+length; k++ {
			insert(k)
		}
		i += length
		litStart = i
	}
	if litStart < n {
		segs = append(segs, segment{start: litStart, litLen: n - litStart})
	}
	return segs
}

// emit serializes the parsed segments into an LZO1X byte stream. Each
// segment's literal run (if any) is written first; for every segment but the
// first, a literal run of 1-3 bytes is instead folded into the previous
// segment's match as packed trailing bytes so every token obeys the
// format's minimum-length rules.
func emit(src []byte, segs []segment) []byte {
	var out []byte
	havePrevMatch := false
	pendingTrailingPatch := -1 // index in out of the low-distance byte awaiting OR of trailing bits

	flushLiteral := func(data []byte, isFirst bool) {
		l := len(data)
		if l == 0 {
			return
		}
		if isFirst && l <= 3 {
			out = append(out, byte(17+l))
			out = append(out, data...)
			return
		}
		if l <= 18 {
			out = append(out, byte(l-3))
		} else {
			out = append(out, 0)
			rem := l - 18
			for rem > 255 {
				out = append(out, 0)
				rem -= 255
			}
			out = append(out, byte(rem))
		}
		out = append(out, data...)
	}

	for idx, s := range segs {
		isFirst := idx == 0
		litLen := s.litLen
		foldedTrailing := 0
		if !isFirst && havePrevMatch && litLen > 0 && litLen <= 3 {
			// Fold this short literal run into the previous match's
			// trailing bits instead of emitting a standalone token.
			foldedTrailing = litLen
			out[pendingTrailingPatch] |= byte(foldedTrailing)
			out = append(out, src[s.start:s.start+litLen]...)
		} else {
			flushLiteral(src[s.start:s.start+litLen], isFirst)
		}

		if s.matchLen == 0 {
			havePrevMatch = false
			continue
		}

		mlen := s.matchLen - 2
		d := s.matchDist - 1
		if mlen <= 31 {
			out = append(out, byte(32+mlen))
		} else {
			out = append(out, 32)
			rem := mlen - 31
			for rem > 255 {
				out = append(out, 0)
				rem -= 255
			}
			out = append(out, byte(rem))
		}
		out = append(out, byte(d<<2))
		pendingTrailingPatch = len(out) - 1
		out = append(out, byte(d>>6))
		havePrevMatch = true
	}

	out = append(out, 0x11, 0x00, 0x00)
	return out
}
