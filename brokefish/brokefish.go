// Package brokefish implements the block cipher protecting lobby IPC
// messages.
//
// Brokefish is structurally Blowfish: same 64-bit block, same 16-round
// Feistel network, same initial tables. It differs in two ways which
// clients depend on:
//
//   - While expanding the key, every key byte is sign-extended to 32 bits
//     before it is shifted into the P-array word. For key bytes >= 0x80 this
//     clobbers the bytes read before it.
//   - Blocks are read and written as two little-endian 32-bit halves.
//
// For keys made only of bytes < 0x80 the key schedule is identical to the
// textbook one.
package brokefish

import (
	"encoding/binary"
	"strconv"
)

// BlockSize is the Brokefish block size in bytes.
const BlockSize = 8

// MaxKeySize is the longest key, in bytes, that contributes to the key
// schedule. Longer keys are accepted by Blowfish implementations but the
// extra bytes never reach the P-array.
const MaxKeySize = 72

// KeySizeError is returned when a key of unusable length is passed to
// NewCipher.
type KeySizeError int

func (k KeySizeError) Error() string {
	return "brokefish: invalid key size " + strconv.Itoa(int(k))
}

// Cipher is an instance of Brokefish expanded for one particular key.
//
// A Cipher is immutable once NewCipher returns and is safe for concurrent
// reads, but the lobby never shares one between sessions.
type Cipher struct {
	p              [18]uint32
	s0, s1, s2, s3 [256]uint32
}

// NewCipher creates and returns a Cipher expanded from key.
func NewCipher(key []byte) (*Cipher, error) {
	if k := len(key); k < 1 || k > MaxKeySize {
		return nil, KeySizeError(k)
	}
	c := &Cipher{p: p, s0: s0, s1: s1, s2: s2, s3: s3}
	c.expandKey(key)
	return c, nil
}

// nextWord reads four key bytes starting at *pos, wrapping around the key,
// each sign-extended before being shifted in.
func nextWord(key []byte, pos *int) uint32 {
	var w uint32
	for i := 0; i < 4; i++ {
		if *pos >= len(key) {
			*pos = 0
		}
		w = w<<8 | uint32(int32(int8(key[*pos])))
		*pos++
	}
	return w
}

func (c *Cipher) expandKey(key []byte) {
	pos := 0
	for i := range c.p {
		c.p[i] ^= nextWord(key, &pos)
	}

	var l, r uint32
	for i := 0; i < len(c.p); i += 2 {
		l, r = c.encryptBlock(l, r)
		c.p[i], c.p[i+1] = l, r
	}
	for _, s := range []*[256]uint32{&c.s0, &c.s1, &c.s2, &c.s3} {
		for i := 0; i < len(s); i += 2 {
			l, r = c.encryptBlock(l, r)
			s[i], s[i+1] = l, r
		}
	}
}

func (c *Cipher) f(x uint32) uint32 {
	return ((c.s0[byte(x>>24)] + c.s1[byte(x>>16)]) ^ c.s2[byte(x>>8)]) + c.s3[byte(x)]
}

func (c *Cipher) encryptBlock(l, r uint32) (uint32, uint32) {
	for i := 0; i < 16; i += 2 {
		l ^= c.p[i]
		r ^= c.f(l)
		r ^= c.p[i+1]
		l ^= c.f(r)
	}
	l ^= c.p[16]
	r ^= c.p[17]
	return r, l
}

func (c *Cipher) decryptBlock(l, r uint32) (uint32, uint32) {
	for i := 16; i > 0; i -= 2 {
		l ^= c.p[i+1]
		r ^= c.f(l)
		r ^= c.p[i]
		l ^= c.f(r)
	}
	l ^= c.p[1]
	r ^= c.p[0]
	return r, l
}

// BlockSize returns the Brokefish block size, 8 bytes. It is necessary to
// satisfy the crypto/cipher.Block interface.
func (c *Cipher) BlockSize() int { return BlockSize }

// Encrypt encrypts the 8-byte block in src and stores the result in dst.
// dst and src may overlap entirely.
func (c *Cipher) Encrypt(dst, src []byte) {
	l := binary.LittleEndian.Uint32(src[0:4])
	r := binary.LittleEndian.Uint32(src[4:8])
	l, r = c.encryptBlock(l, r)
	binary.LittleEndian.PutUint32(dst[0:4], l)
	binary.LittleEndian.PutUint32(dst[4:8], r)
}

// Decrypt decrypts the 8-byte block in src and stores the result in dst.
func (c *Cipher) Decrypt(dst, src []byte) {
	l := binary.LittleEndian.Uint32(src[0:4])
	r := binary.LittleEndian.Uint32(src[4:8])
	l, r = c.decryptBlock(l, r)
	binary.LittleEndian.PutUint32(dst[0:4], l)
	binary.LittleEndian.PutUint32(dst[4:8], r)
}

// EncryptBlocks returns a copy of data with every whole 8-byte block
// encrypted independently of the others.
//
// A trailing partial block is copied through untouched, so the result is
// always exactly as long as data.
func (c *Cipher) EncryptBlocks(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i+BlockSize <= len(out); i += BlockSize {
		c.Encrypt(out[i:i+BlockSize], out[i:i+BlockSize])
	}
	return out
}

// DecryptBlocks is the inverse of EncryptBlocks.
func (c *Cipher) DecryptBlocks(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	for i := 0; i+BlockSize <= len(out); i += BlockSize {
		c.Decrypt(out[i:i+BlockSize], out[i:i+BlockSize])
	}
	return out
}
