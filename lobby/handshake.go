package lobby

import (
	"crypto/md5"
	"encoding/binary"

	"github.com/pkg/errors"

	"badc0de.net/pkg/go-lobby/secrets"
)

// KeySize is the length of a derived session key.
const KeySize = md5.Size

// BaseKey lays out the buffer which is hashed into the session key, taking
// the key phrase and key seed from an EncryptionInit payload at the offsets
// given by layout.
//
//	[0:4)   BaseKeyMagic, little-endian
//	[4:8)   key seed
//	[8:10)  layout.Version, little-endian
//	[12:44) key phrase
func BaseKey(layout secrets.KeyLayout, payload []byte) ([secrets.BaseKeySize]byte, error) {
	var base [secrets.BaseKeySize]byte
	if err := layout.Validate(); err != nil {
		return base, errors.Wrap(ErrKeyMaterial, err.Error())
	}
	if len(payload) < layout.MinPayload() {
		return base, errors.Wrapf(ErrKeyMaterial, "encryption init payload is %d bytes, version %d needs %d", len(payload), layout.Version, layout.MinPayload())
	}

	binary.LittleEndian.PutUint32(base[0:4], secrets.BaseKeyMagic)
	copy(base[4:8], payload[layout.SeedOffset:layout.SeedOffset+secrets.SeedLength])
	binary.LittleEndian.PutUint16(base[8:10], layout.Version)
	copy(base[12:], payload[layout.PhraseOffset:layout.PhraseOffset+layout.PhraseLength])
	return base, nil
}

// DeriveKey computes the session key from an EncryptionInit payload.
func DeriveKey(layout secrets.KeyLayout, payload []byte) ([KeySize]byte, error) {
	base, err := BaseKey(layout, payload)
	if err != nil {
		return [KeySize]byte{}, err
	}
	return md5.Sum(base[:]), nil
}

// EncryptionInitAck returns the payload the server answers EncryptionInit
// with.
func EncryptionInitAck() []byte {
	b := make([]byte, secrets.EncryptionInitAckSize)
	binary.LittleEndian.PutUint32(b[0:4], secrets.EncryptionInitAckMagic)
	return b
}
