package hvp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/obscure-tools/hvparchive/internal/checksum"
	"github.com/obscure-tools/hvparchive/internal/lzo"
)

// RebuildProgress receives human-readable status lines as Rebuild walks the
// archive, mirroring a simple progress-bar callback.
type RebuildProgress interface {
	Inc(msg string)
	IncN(n int, msg string)
}

// NopProgress discards every progress report.
type NopProgress struct{}

func (NopProgress) Inc(string)       {}
func (NopProgress) IncN(int, string) {}

// Rebuild writes a complete archive to sink, applying every FileEntry
// update queued since the archive was mapped. With no updates queued, the
// output is byte-identical to the source file.
func (a *Archive) Rebuild(sink io.WriteSeeker, progress RebuildProgress) error {
	if progress == nil {
		progress = NopProgress{}
	}
	p := a.provider

	start, err := sink.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("hvp: rebuild: %w", err)
	}
	if _, err := sink.Seek(p.entriesOffset, io.SeekCurrent); err != nil {
		return fmt.Errorf("hvp: rebuild: reserve TOC space: %w", err)
	}

	rc := &rebuildCtx{
		sink:     sink,
		provider: p,
		progress: progress,
		endian:   p.endian,
		skip:     a.opts.SkipCompression,
		cursor:   start + p.entriesOffset,
	}

	switch p.variant {
	case VariantA:
		clone := p.rawA.clone()
		if err := rc.walkA(clone.Entries, a.root); err != nil {
			return err
		}
		// writeVariantA recomputes clone.Checksum itself (big-endian, magic
		// included) when Header.MinorVersion == 1, so no CRC work happens here.
		if _, err := sink.Seek(start, io.SeekStart); err != nil {
			return fmt.Errorf("hvp: rebuild: seek to TOC: %w", err)
		}
		return writeVariantA(sink, clone)

	case VariantB:
		clone := p.rawB.clone()
		root := clone.Entries[0]
		lo, hi := root.Dir.entriesRange()
		if err := rc.walkB(clone.Entries, lo, hi, a.root); err != nil {
			return err
		}
		if _, err := sink.Seek(start, io.SeekStart); err != nil {
			return fmt.Errorf("hvp: rebuild: seek to TOC: %w", err)
		}
		return writeVariantB(sink, clone)

	case VariantC:
		clone := p.rawC.clone()
		root := clone.Entries[0]
		lo, hi := root.Dir.entriesRange()
		if err := rc.padToAlignment(); err != nil {
			return err
		}
		if err := rc.walkC(clone.Entries, lo, hi, a.root); err != nil {
			return err
		}
		if _, err := sink.Seek(start, io.SeekStart); err != nil {
			return fmt.Errorf("hvp: rebuild: seek to TOC: %w", err)
		}
		return writeVariantC(sink, clone)

	default:
		return fmt.Errorf("%w: unhandled variant %v", ErrLoadFailed, p.variant)
	}
}

type rebuildCtx struct {
	sink     io.Writer
	provider *Provider
	progress RebuildProgress
	endian   binary.ByteOrder
	skip     bool
	cursor   int64
}

// padToAlignment applies Variant C's 4-byte payload alignment rule: emitted
// once before the first payload and once after every payload.
func (rc *rebuildCtx) padToAlignment() error {
	if rem := rc.cursor % 4; rem != 0 {
		n := 4 - rem
		if _, err := rc.sink.Write(make([]byte, n)); err != nil {
			return err
		}
		rc.cursor += n
	}
	return nil
}

func (rc *rebuildCtx) write(p []byte) error {
	n, err := rc.sink.Write(p)
	rc.cursor += int64(n)
	return err
}

// payloadResult is what processPayload computes for one file, to be
// written back into whichever raw entry representation the caller holds.
type payloadResult struct {
	offset           uint32
	compressedSize   uint32
	uncompressedSize uint32
	checksum         int32
	compressed       bool
}

// processPayload implements §4.9 step 4 for a single file, independent of
// which variant's raw entry type holds the result.
func (rc *rebuildCtx) processPayload(name string, origOffset, origCompressedSize, origUncompressedSize uint32, origChecksum int32, origCompressed bool, unified *FileEntry, variant Variant) (payloadResult, error) {
	if origUncompressedSize == 0 {
		rc.progress.Inc(fmt.Sprintf("(skp) %s", name))
		return payloadResult{offset: origOffset, compressedSize: origCompressedSize, uncompressedSize: origUncompressedSize, checksum: origChecksum, compressed: origCompressed}, nil
	}

	offset := rc.cursor32()

	if !unified.HasUpdate() {
		raw, err := rc.provider.GetBytes(origOffset, origCompressedSize)
		if err != nil {
			return payloadResult{}, fmt.Errorf("hvp: rebuild %s: %w", name, err)
		}
		if sum := checksum.WrappingSum(raw, rc.endian); sum != origChecksum {
			panic(fmt.Sprintf("hvp: rebuild: checksum desync for %s: have %d want %d", name, sum, origChecksum))
		}
		if err := rc.write(raw); err != nil {
			return payloadResult{}, err
		}
		rc.progress.Inc(fmt.Sprintf("(src) %s", name))
		if variant == VariantC {
			if err := rc.padToAlignment(); err != nil {
				return payloadResult{}, err
			}
		}
		return payloadResult{offset: offset, compressedSize: origCompressedSize, uncompressedSize: origUncompressedSize, checksum: origChecksum, compressed: origCompressed}, nil
	}

	plaintext, err := unified.update.Bytes()
	if err != nil {
		return payloadResult{}, fmt.Errorf("hvp: rebuild %s: read update: %w", name, err)
	}
	res := payloadResult{offset: offset}
	if rc.skip || !origCompressed {
		res.compressedSize = uint32(len(plaintext))
		res.uncompressedSize = uint32(len(plaintext))
		res.checksum = checksum.WrappingSum(plaintext, rc.endian)
		res.compressed = false
		if err := rc.write(plaintext); err != nil {
			return payloadResult{}, err
		}
	} else {
		compressed, err := compressForVariant(variant, plaintext)
		if err != nil {
			return payloadResult{}, fmt.Errorf("%w: %s: %v", ErrCompress, name, err)
		}
		res.compressedSize = uint32(len(compressed))
		res.uncompressedSize = uint32(len(plaintext))
		res.checksum = checksum.WrappingSum(compressed, rc.endian)
		res.compressed = true
		if err := rc.write(compressed); err != nil {
			return payloadResult{}, err
		}
	}
	rc.progress.Inc(fmt.Sprintf("(upd) %s", name))
	if variant == VariantC {
		if err := rc.padToAlignment(); err != nil {
			return payloadResult{}, err
		}
	}
	return res, nil
}

func (rc *rebuildCtx) cursor32() uint32 { return uint32(rc.cursor) }

func compressForVariant(variant Variant, plaintext []byte) ([]byte, error) {
	switch variant {
	case VariantA:
		var buf bytes.Buffer
		zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(plaintext); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return lzo.Compress(plaintext), nil
	}
}

func (rc *rebuildCtx) walkA(orig []*rawAEntry, unified []*Entry) error {
	if len(orig) != len(unified) {
		panic("hvp: rebuild: variant A tree shape mismatch")
	}
	for i, oe := range orig {
		ue := unified[i]
		if (oe.Kind == rawAKindFile) != !ue.IsDir() {
			panic("hvp: rebuild: variant A file/dir mismatch at lockstep position")
		}
		if oe.Kind == rawAKindFile {
			res, err := rc.processPayload(ue.File.Name, oe.File.Offset, oe.File.CompressedSize, oe.File.UncompressedSize, oe.File.Checksum, oe.File.IsCompressed, ue.File, VariantA)
			if err != nil {
				return err
			}
			oe.File.Offset = res.offset
			oe.File.CompressedSize = res.compressedSize
			oe.File.UncompressedSize = res.uncompressedSize
			oe.File.Checksum = res.checksum
			oe.File.IsCompressed = res.compressed
		} else {
			if err := rc.walkA(oe.Dir.Entries, ue.Dir.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rc *rebuildCtx) walkB(entries []*rawBEntry, lo, hi uint32, unified []*Entry) error {
	if int(hi-lo) != len(unified) {
		panic("hvp: rebuild: variant B tree shape mismatch")
	}
	for i := lo; i < hi; i++ {
		oe := entries[i]
		ue := unified[i-lo]
		isFile := oe.Kind == rawBKindFile || oe.Kind == rawBKindFileCompressed
		if isFile != !ue.IsDir() {
			panic("hvp: rebuild: variant B file/dir mismatch at lockstep position")
		}
		if isFile {
			res, err := rc.processPayload(ue.File.Name, oe.File.Offset, oe.File.CompressedSize, oe.File.UncompressedSize, oe.File.Checksum, oe.Kind == rawBKindFileCompressed, ue.File, VariantB)
			if err != nil {
				return err
			}
			oe.File.Offset = res.offset
			oe.File.CompressedSize = res.compressedSize
			oe.File.UncompressedSize = res.uncompressedSize
			oe.File.Checksum = res.checksum
			if res.compressed {
				oe.Kind = rawBKindFileCompressed
			} else {
				oe.Kind = rawBKindFile
			}
		} else {
			childLo, childHi := oe.Dir.entriesRange()
			if err := rc.walkB(entries, childLo, childHi, ue.Dir.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

func (rc *rebuildCtx) walkC(entries []*rawCEntry, lo, hi uint32, unified []*Entry) error {
	if int(hi-lo) != len(unified) {
		panic("hvp: rebuild: variant C tree shape mismatch")
	}
	for i := lo; i < hi; i++ {
		oe := entries[i]
		ue := unified[i-lo]
		isFile := oe.Kind == rawCKindFile || oe.Kind == rawCKindFileCompressed
		if isFile != !ue.IsDir() {
			panic("hvp: rebuild: variant C file/dir mismatch at lockstep position")
		}
		if isFile {
			res, err := rc.processPayload(ue.File.Name, oe.File.Offset, oe.File.CompressedSize, oe.File.UncompressedSize, oe.File.Checksum, oe.Kind == rawCKindFileCompressed, ue.File, VariantC)
			if err != nil {
				return err
			}
			oe.File.Offset = res.offset
			oe.File.CompressedSize = res.compressedSize
			oe.File.UncompressedSize = res.uncompressedSize
			oe.File.Checksum = res.checksum
			if res.compressed {
				oe.Kind = rawCKindFileCompressed
			} else {
				oe.Kind = rawCKindFile
			}
		} else {
			childLo, childHi := oe.Dir.entriesRange()
			if err := rc.walkC(entries, childLo, childHi, ue.Dir.Children); err != nil {
				return err
			}
		}
	}
	return nil
}
