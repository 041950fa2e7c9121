package hvp

import (
	"testing"

	"github.com/obscure-tools/hvparchive/internal/checksum"
)

func TestNameCRC32ASCII(t *testing.T) {
	crc1, err := NameCRC32("hello.dat")
	if err != nil {
		t.Fatal(err)
	}
	crc2, err := NameCRC32("hello.dat")
	if err != nil {
		t.Fatal(err)
	}
	if crc1 != crc2 {
		t.Fatal("expected deterministic hash")
	}
}

func TestNameCRC32AccentFold(t *testing.T) {
	// 'é' folds to the single byte 0xE9 before hashing.
	got, err := NameCRC32("résumé")
	if err != nil {
		t.Fatalf("unexpected error for é-containing name: %v", err)
	}
	if want := checksum.CRC32([]byte{'r', 0xE9, 's', 'u', 'm', 0xE9}); got != want {
		t.Fatalf("got %#x, want %#x", got, want)
	}
}

func TestNameCRC32RejectsOtherNonASCII(t *testing.T) {
	if _, err := NameCRC32("caféü"); err == nil {
		t.Fatal("expected error for non-ASCII, non-é character")
	}
}

func TestNameMapLookup(t *testing.T) {
	m, err := NewNameMap([]string{"a.dat", "b/c.dat"})
	if err != nil {
		t.Fatal(err)
	}
	crc, _ := NameCRC32("a.dat")
	name, ok := m.Lookup(crc)
	if !ok || name != "a.dat" {
		t.Fatalf("got (%q, %v)", name, ok)
	}
	if _, ok := m.Lookup(0xFFFFFFFF); ok {
		t.Fatal("expected miss for unregistered crc")
	}
}

func TestFallbackName(t *testing.T) {
	if got := fallbackName(0xDEADBEEF, false); got != "unk_file_3735928559.dat" {
		t.Fatalf("got %q", got)
	}
	if got := fallbackName(0xDEADBEEF, true); got != "unk_folder_3735928559" {
		t.Fatalf("got %q", got)
	}
}
