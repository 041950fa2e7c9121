package lzo

import (
	"bytes"
	"math/rand"
	"testing"
)

func roundTrip(t *testing.T, data []byte) {
	t.Helper()
	compressed := Compress(data)
	out, err := Decompress(compressed, len(data))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("round trip mismatch: len(out)=%d len(data)=%d", len(out), len(data))
	}
}

func TestRoundTripEmpty(t *testing.T) {
	roundTrip(t, nil)
}

func TestRoundTripShortLiteral(t *testing.T) {
	roundTrip(t, []byte("hi"))
}

func TestRoundTripNoMatches(t *testing.T) {
	data := make([]byte, 64)
	for i := range data {
		data[i] = byte(i * 37 % 251)
	}
	roundTrip(t, data)
}

func TestRoundTripRepeatedByte(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 5000)
	roundTrip(t, data)
}

func TestRoundTripRepeatedPattern(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog, "), 300)
	roundTrip(t, data)
}

func TestRoundTripLongLiteralRun(t *testing.T) {
	data := make([]byte, 2000)
	rng := rand.New(rand.NewSource(1))
	rng.Read(data)
	roundTrip(t, data)
}

func TestRoundTripMixed(t *testing.T) {
	var data []byte
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 50; i++ {
		chunk := make([]byte, rng.Intn(40)+1)
		rng.Read(chunk)
		data = append(data, chunk...)
		data = append(data, bytes.Repeat([]byte{byte(i)}, rng.Intn(30)+3)...)
	}
	roundTrip(t, data)
}

func TestRoundTripSingleByte(t *testing.T) {
	roundTrip(t, []byte{0x7F})
}

func TestRoundTripExactlyThreeBytes(t *testing.T) {
	roundTrip(t, []byte{1, 2, 3})
}
