package lobby

import (
	"github.com/pkg/errors"

	"badc0de.net/pkg/go-lobby/brokefish"
	tnet "badc0de.net/pkg/go-lobby/net"
)

// ReservedTrailerSize is the length of the region at the end of every
// enciphered IPC payload which is never encrypted or decrypted.
const ReservedTrailerSize = 8

// OpenIPC deciphers an IPC segment payload. The result is as long as
// payload; its trailing ReservedTrailerSize bytes are copied unchanged.
func OpenIPC(c *brokefish.Cipher, payload []byte) ([]byte, error) {
	if len(payload) < ReservedTrailerSize {
		return nil, &tnet.FramingError{
			Op:  "decipher",
			Err: errors.Wrapf(tnet.ErrTruncated, "ipc payload of %d bytes has no reserved trailer", len(payload)),
		}
	}
	n := len(payload) - ReservedTrailerSize
	out := c.DecryptBlocks(payload[:n])
	return append(out, payload[n:]...), nil
}

// SealIPC enciphers a serialized IPC message for sending: the message is
// zero-padded to whole blocks, encrypted, and followed by a zeroed reserved
// trailer.
func SealIPC(c *brokefish.Cipher, msg []byte) []byte {
	n := len(msg)
	if r := n % brokefish.BlockSize; r != 0 {
		n += brokefish.BlockSize - r
	}
	padded := make([]byte, n, n+ReservedTrailerSize)
	copy(padded, msg)
	out := c.EncryptBlocks(padded)
	return append(out, make([]byte, ReservedTrailerSize)...)
}
