// Package streamcipher stands in for the symmetric stream cipher that
// for the log region's payload encryption: "CFB-style, IV-seeded,
// stateful; exposes encrypt(in,out,len), decrypt(in,out,len), reset(iv,len),
// get_key(buf), fill_random_iv(buf)".
//
// The implementation is AES in counter mode, addressed directly by byte
// position rather than by incremental XORKeyStream calls, because the core's
// invariant #5 ("the cipher's internal keystream position equals
// actual_size") requires a cipher that can be repositioned to an arbitrary
// offset on load and after a partial reload — something crypto/cipher's
// Stream interface does not expose. The key schedule and per-block
// transform are still the untouched stdlib AES block cipher; only the
// keystream addressing is custom.
package streamcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"

	"github.com/pkg/errors"
)

// IVSize is the width of the cipher's IV, matching the 16-byte iv field of
// MetaRecord.
const IVSize = 16

const blockSize = aes.BlockSize // 16

// Cipher is a positionable AES-CTR stream. It is not safe for concurrent
// use; callers serialize access the same way the rest of the store does.
type Cipher struct {
	block cipher.Block
	key   [16]byte
	iv    [IVSize]byte
	pos   uint64
}

// New builds a Cipher from an arbitrary-length key. Keys that are not
// exactly 16 bytes are folded down via MD5, mirroring how short or
// human-chosen crypt keys get turned into a fixed-width AES-128 key in
// practice.
func New(key []byte) (*Cipher, error) {
	var k [16]byte
	if len(key) == 16 {
		copy(k[:], key)
	} else {
		k = md5.Sum(key)
	}
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, errors.Wrap(err, "streamcipher: new AES cipher")
	}
	return &Cipher{block: block, key: k}, nil
}

// Key copies the cipher's 16-byte derived AES key into buf (get_key).
func (c *Cipher) Key(buf []byte) {
	copy(buf, c.key[:])
}

// FillRandomIV draws a fresh random IV into buf, which must be IVSize
// bytes (fill_random_iv).
func FillRandomIV(buf []byte) error {
	if len(buf) < IVSize {
		return errors.Errorf("streamcipher: iv buffer too small (%d < %d)", len(buf), IVSize)
	}
	if _, err := rand.Read(buf[:IVSize]); err != nil {
		return errors.Wrap(err, "streamcipher: fill random iv")
	}
	return nil
}

// Reset reinitializes the cipher with iv and positions its keystream at
// byte offset pos.
func (c *Cipher) Reset(iv [IVSize]byte, pos uint64) {
	c.iv = iv
	c.pos = pos
}

// IV returns the cipher's current IV.
func (c *Cipher) IV() [IVSize]byte {
	return c.iv
}

// Pos returns the cipher's current keystream position.
func (c *Cipher) Pos() uint64 {
	return c.pos
}

// Encrypt XORs src against the keystream starting at the cipher's current
// position, writes the result to dst, and advances the position by
// len(src). dst and src may alias.
func (c *Cipher) Encrypt(dst, src []byte) {
	c.xor(dst, src)
	c.pos += uint64(len(src))
}

// Decrypt is identical to Encrypt: CTR keystream XOR is its own inverse.
func (c *Cipher) Decrypt(dst, src []byte) {
	c.Encrypt(dst, src)
}

func (c *Cipher) xor(dst, src []byte) {
	var keystream [blockSize]byte
	var counter [blockSize]byte

	blockIdx := c.pos / blockSize
	off := int(c.pos % blockSize)

	produced := 0
	for produced < len(src) {
		counter = c.iv
		addCounter(&counter, blockIdx)
		c.block.Encrypt(keystream[:], counter[:])

		n := blockSize - off
		if remaining := len(src) - produced; n > remaining {
			n = remaining
		}
		for i := 0; i < n; i++ {
			dst[produced+i] = src[produced+i] ^ keystream[off+i]
		}
		produced += n
		off = 0
		blockIdx++
	}
}

// addCounter adds delta to the big-endian 128-bit integer held in ctr,
// treating ctr as the IV-seeded counter base (standard CTR-mode counter
// construction).
func addCounter(ctr *[blockSize]byte, delta uint64) {
	carry := delta
	for i := blockSize - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(ctr[i]) + carry
		ctr[i] = byte(sum)
		carry = sum >> 8
	}
}
