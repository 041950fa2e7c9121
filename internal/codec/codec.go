// Package codec holds the small endian-aware integer and length-prefixed
// string primitives shared by every HVP archive variant codec.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// ReadU16 reads a uint16 in the given byte order.
func ReadU16(r io.Reader, order binary.ByteOrder) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return order.Uint16(buf[:]), nil
}

// ReadU32 reads a uint32 in the given byte order.
func ReadU32(r io.Reader, order binary.ByteOrder) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return order.Uint32(buf[:]), nil
}

// ReadI32 reads an int32 in the given byte order.
func ReadI32(r io.Reader, order binary.ByteOrder) (int32, error) {
	v, err := ReadU32(r, order)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// WriteU16 writes a uint16 in the given byte order.
func WriteU16(w io.Writer, order binary.ByteOrder, v uint16) error {
	var buf [2]byte
	order.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteU32 writes a uint32 in the given byte order.
func WriteU32(w io.Writer, order binary.ByteOrder, v uint32) error {
	var buf [4]byte
	order.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

// WriteI32 writes an int32 in the given byte order.
func WriteI32(w io.Writer, order binary.ByteOrder, v int32) error {
	return WriteU32(w, order, uint32(v))
}

// ReadString reads a u32 length prefix followed by that many bytes,
// validated as UTF-8. Used by Variant A for inline entry names.
func ReadString(r io.Reader, order binary.ByteOrder) (string, error) {
	n, err := ReadU32(r, order)
	if err != nil {
		return "", fmt.Errorf("read string length: %w", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read string body (len=%d): %w", n, err)
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("string body is not valid utf-8")
	}
	return string(buf), nil
}

// WriteString writes a u32 length prefix followed by the string's bytes.
func WriteString(w io.Writer, order binary.ByteOrder, s string) error {
	if err := WriteU32(w, order, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

// NameFromNulBuf scans buf starting at offset for a NUL terminator and
// returns the UTF-8 string before it. Used by Variant C's embedded names
// blob.
func NameFromNulBuf(buf []byte, offset uint32) (string, error) {
	if int(offset) > len(buf) {
		return "", fmt.Errorf("name offset %d exceeds names blob length %d", offset, len(buf))
	}
	rest := buf[offset:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		end = len(rest)
	}
	name := rest[:end]
	if !utf8.Valid(name) {
		return "", fmt.Errorf("name at offset %d is not valid utf-8", offset)
	}
	return string(name), nil
}
