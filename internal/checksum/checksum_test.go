package checksum

import (
	"encoding/binary"
	"testing"
)

func TestWrappingSumEmpty(t *testing.T) {
	if got := WrappingSum(nil, binary.LittleEndian); got != 0 {
		t.Fatalf("empty input: got %d, want 0", got)
	}
}

func TestWrappingSumWraps(t *testing.T) {
	// Two words that individually fit in int32 but overflow when summed.
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:4], 0x7FFFFFFF)
	binary.LittleEndian.PutUint32(data[4:8], 0x00000002)
	got := WrappingSum(data, binary.LittleEndian)
	want := int32(-0x7FFFFFFF) // 0x7FFFFFFF + 2 overflows int32 and wraps to 0x80000001
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestWrappingSumTrailingBytes(t *testing.T) {
	data := []byte{0x01, 0x00, 0x00, 0x00, 0x05, 0x06, 0x07}
	got := WrappingSum(data, binary.LittleEndian)
	want := int32(1) + int32(5) + int32(6) + int32(7)
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestWrappingSumEndianSensitive(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x01}
	le := WrappingSum(data, binary.LittleEndian)
	be := WrappingSum(data, binary.BigEndian)
	if le == be {
		t.Fatalf("expected different sums for different byte orders, got %d for both", le)
	}
	if be != 1 {
		t.Fatalf("big-endian sum: got %d, want 1", be)
	}
	if le != 1<<24 {
		t.Fatalf("little-endian sum: got %d, want %d", le, 1<<24)
	}
}

func TestCRC32KnownValue(t *testing.T) {
	// CRC32-IEEE of "123456789" is the standard check value 0xCBF43926.
	got := CRC32([]byte("123456789"))
	want := uint32(0xCBF43926)
	if got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}
