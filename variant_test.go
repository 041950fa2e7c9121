package hvp

import "testing"

func TestDetectVariant(t *testing.T) {
	cases := []struct {
		name string
		head []byte
		want Variant
	}{
		{"A", []byte("HV PackFile\x00"), VariantA},
		{"B-LE", []byte{0, 0, 4, 0, 0, 0, 0, 0}, VariantB},
		{"B-BE", []byte{0, 4, 0, 0, 0, 0, 0, 0}, VariantB},
		{"C-LE", []byte{0, 0, 5, 0, 0, 0, 0, 0}, VariantC},
		{"C-BE", []byte{0, 5, 0, 0, 0, 0, 0, 0}, VariantC},
		{"unknown", []byte{1, 2, 3, 4, 5, 6, 7, 8}, VariantUnknown},
		{"short", []byte{0, 0, 4}, VariantUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := DetectVariant(c.head); got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestDetectEndian(t *testing.T) {
	if detectEndian([]byte{0, 0, 4, 0, 0, 0, 0, 0}).String() != "LittleEndian" {
		t.Fatal("expected little endian for B LE magic")
	}
	if detectEndian([]byte{0, 4, 0, 0, 0, 0, 0, 0}).String() != "BigEndian" {
		t.Fatal("expected big endian for B BE magic")
	}
}
