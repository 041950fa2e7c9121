package codec

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestReadWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteU16(&buf, binary.LittleEndian, 0xABCD); err != nil {
		t.Fatal(err)
	}
	if err := WriteU32(&buf, binary.LittleEndian, 0xDEADBEEF); err != nil {
		t.Fatal(err)
	}
	if err := WriteI32(&buf, binary.LittleEndian, -42); err != nil {
		t.Fatal(err)
	}
	if err := WriteString(&buf, binary.LittleEndian, "hello"); err != nil {
		t.Fatal(err)
	}

	r := bytes.NewReader(buf.Bytes())
	u16, err := ReadU16(r, binary.LittleEndian)
	if err != nil || u16 != 0xABCD {
		t.Fatalf("ReadU16: got (%v, %v)", u16, err)
	}
	u32, err := ReadU32(r, binary.LittleEndian)
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("ReadU32: got (%v, %v)", u32, err)
	}
	i32, err := ReadI32(r, binary.LittleEndian)
	if err != nil || i32 != -42 {
		t.Fatalf("ReadI32: got (%v, %v)", i32, err)
	}
	s, err := ReadString(r, binary.LittleEndian)
	if err != nil || s != "hello" {
		t.Fatalf("ReadString: got (%q, %v)", s, err)
	}
}

func TestReadStringRejectsInvalidUTF8(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteU32(&buf, binary.LittleEndian, 2)
	buf.Write([]byte{0xFF, 0xFE})
	if _, err := ReadString(bytes.NewReader(buf.Bytes()), binary.LittleEndian); err == nil {
		t.Fatal("expected error for invalid utf-8, got nil")
	}
}

func TestNameFromNulBuf(t *testing.T) {
	buf := []byte("abc\x00def\x00")
	name, err := NameFromNulBuf(buf, 0)
	if err != nil || name != "abc" {
		t.Fatalf("got (%q, %v)", name, err)
	}
	name, err = NameFromNulBuf(buf, 4)
	if err != nil || name != "def" {
		t.Fatalf("got (%q, %v)", name, err)
	}
}

func TestNameFromNulBufOffsetOutOfRange(t *testing.T) {
	buf := []byte("abc\x00")
	if _, err := NameFromNulBuf(buf, 100); err == nil {
		t.Fatal("expected error for out-of-range offset")
	}
}
