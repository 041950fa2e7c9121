package hvp

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/obscure-tools/hvparchive/internal/lzo"
)

// DecodePayload returns fe's fully decoded payload bytes: the raw mmap
// slice when the entry is stored uncompressed, or the result of running it
// through the variant's compression codec otherwise. Entries with
// UncompressedSize == 0 yield an empty slice without reading their
// (possibly garbage) offset and size.
func DecodePayload(p *Provider, fe *FileEntry) ([]byte, error) {
	if fe.UncompressedSize == 0 {
		return []byte{}, nil
	}
	raw, err := p.GetBytes(fe.Offset, fe.CompressedSize)
	if err != nil {
		return nil, err
	}
	if !fe.Compressed {
		return raw, nil
	}
	switch p.Variant() {
	case VariantA:
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
		}
		defer zr.Close()
		out := make([]byte, 0, fe.UncompressedSize)
		buf := bytes.NewBuffer(out)
		if _, err := io.Copy(buf, zr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
		}
		return buf.Bytes(), nil
	default:
		out, err := lzo.Decompress(raw, int(fe.UncompressedSize))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompress, err)
		}
		return out, nil
	}
}
