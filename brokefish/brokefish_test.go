package brokefish

import (
	"bytes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"math/rand"
	"testing"

	"golang.org/x/crypto/blowfish"

	"badc0de.net/pkg/go-lobby/ttesting"
)

var _ cipher.Block = (*Cipher)(nil)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %s", s, err)
	}
	return b
}

func mustCipher(t *testing.T, key []byte) *Cipher {
	t.Helper()
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("NewCipher(% x): %s", key, err)
	}
	return c
}

func TestInitialTables(t *testing.T) {
	ttesting.AssertEqualUint32(t, "p[0]", p[0], 0x243f6a88)
	ttesting.AssertEqualUint32(t, "p[17]", p[17], 0x8979fb1b)
	ttesting.AssertEqualUint32(t, "s0[0]", s0[0], 0xd1310ba6)
	ttesting.AssertEqualUint32(t, "s1[0]", s1[0], 0x4b7a70e9)
	ttesting.AssertEqualUint32(t, "s2[0]", s2[0], 0xe93d5a68)
	ttesting.AssertEqualUint32(t, "s3[255]", s3[255], 0x3ac372e6)
}

func TestKnownVectors(t *testing.T) {
	// The key is what the lobby derives from an all-zero seed and phrase.
	key := mustHex(t, "2e0b8865499f8988e1f221bd140d298d")
	c := mustCipher(t, key)

	ttesting.AssertEqualUint32(t, "expanded p[0]", c.p[0], 0x29fb4ea2)
	ttesting.AssertEqualUint32(t, "expanded s3[255]", c.s3[255], 0xae0788c1)

	for _, tc := range []struct {
		name       string
		plain, enc string
	}{
		{"zero block", "0000000000000000", "ebde0e82d55c41fb"},
		{"two counting blocks", "000102030405060708090a0b0c0d0e0f", "533cbd3e550bd85baa7d3d89a3b0fb5f"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := c.EncryptBlocks(mustHex(t, tc.plain))
			if want := mustHex(t, tc.enc); !bytes.Equal(got, want) {
				t.Errorf("EncryptBlocks = % x; want % x", got, want)
			}
			back := c.DecryptBlocks(got)
			if want := mustHex(t, tc.plain); !bytes.Equal(back, want) {
				t.Errorf("DecryptBlocks = % x; want % x", back, want)
			}
		})
	}
}

// swapWords reverses the byte order of each 32-bit word, converting between
// Brokefish's little-endian halves and Blowfish's big-endian ones.
func swapWords(b []byte) []byte {
	out := make([]byte, len(b))
	for i := 0; i+4 <= len(b); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = b[i+3], b[i+2], b[i+1], b[i]
	}
	return out
}

func TestMatchesBlowfishForLowKeyBytes(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	for n := 0; n < 20; n++ {
		key := make([]byte, 4+rnd.Intn(40))
		for i := range key {
			key[i] = byte(rnd.Intn(0x80))
		}
		bf, err := blowfish.NewCipher(key)
		if err != nil {
			t.Fatalf("blowfish.NewCipher: %s", err)
		}
		c := mustCipher(t, key)

		src := make([]byte, BlockSize)
		rnd.Read(src)

		got := make([]byte, BlockSize)
		c.Encrypt(got, src)

		want := make([]byte, BlockSize)
		bf.Encrypt(want, swapWords(src))
		want = swapWords(want)

		if !bytes.Equal(got, want) {
			t.Errorf("key % x: brokefish % x; blowfish % x", key, got, want)
		}
	}
}

func TestSignExtendedKeyBytes(t *testing.T) {
	key := []byte{0x01, 0x80, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

	ttesting.AssertEqualUint32(t, "high byte clobbers earlier bytes", nextWord(key, new(int)), 0xff800203)

	bf, err := blowfish.NewCipher(key)
	if err != nil {
		t.Fatalf("blowfish.NewCipher: %s", err)
	}
	c := mustCipher(t, key)

	got := make([]byte, BlockSize)
	c.Encrypt(got, make([]byte, BlockSize))
	textbook := make([]byte, BlockSize)
	bf.Encrypt(textbook, make([]byte, BlockSize))
	if bytes.Equal(got, swapWords(textbook)) {
		t.Errorf("key with high bytes expanded like textbook Blowfish")
	}
}

func TestKeyWrapsAround(t *testing.T) {
	pos := 0
	key := []byte{0x01, 0x02, 0x03}
	ttesting.AssertEqualUint32(t, "first word", nextWord(key, &pos), 0x01020301)
	ttesting.AssertEqualUint32(t, "second word", nextWord(key, &pos), 0x02030102)
}

func TestRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	key := make([]byte, 16)
	rnd.Read(key)
	c := mustCipher(t, key)

	for _, n := range []int{0, 8, 16, 64, 0x290} {
		data := make([]byte, n)
		rnd.Read(data)
		enc := c.EncryptBlocks(data)
		if n > 0 && bytes.Equal(enc, data) {
			t.Errorf("len %d: EncryptBlocks returned plaintext", n)
		}
		if got := c.DecryptBlocks(enc); !bytes.Equal(got, data) {
			t.Errorf("len %d: DecryptBlocks(EncryptBlocks(x)) != x", n)
		}
	}
}

func TestPartialBlockPassesThrough(t *testing.T) {
	c := mustCipher(t, []byte("0123456789abcdef"))
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

	enc := c.EncryptBlocks(data)
	ttesting.AssertEqualInt(t, "length preserved", len(enc), len(data))
	ttesting.AssertEqualBytes(t, "tail untouched", enc[8:], data[8:])
	ttesting.AssertEqualBytes(t, "round trip", c.DecryptBlocks(enc), data)
	ttesting.AssertEqualBytes(t, "input not modified", data, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
}

func TestDeterministicExpansion(t *testing.T) {
	key := []byte{0xde, 0xad, 0xbe, 0xef, 0x80, 0x7f, 0x00, 0xff}
	a := mustCipher(t, key)
	b := mustCipher(t, key)
	if *a != *b {
		t.Errorf("two ciphers from the same key differ")
	}
}

func TestKeySize(t *testing.T) {
	for _, n := range []int{0, MaxKeySize + 1} {
		_, err := NewCipher(make([]byte, n))
		var kse KeySizeError
		if !errors.As(err, &kse) || int(kse) != n {
			t.Errorf("NewCipher(len %d) error = %v; want KeySizeError(%d)", n, err, n)
		}
	}
}
