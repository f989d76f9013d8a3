// Package secrets holds the fixed values client and server share for the
// lobby encryption handshake, and the per-version table describing where the
// client puts its key material.
package secrets

import (
	"bytes"
	"io"
	"sort"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"badc0de.net/pkg/go-lobby/datafiles"
)

const (
	// BaseKeyMagic opens the buffer which is hashed into the session key.
	BaseKeyMagic uint32 = 0x12345678

	// BaseKeySize is the length of the buffer hashed into the session key.
	BaseKeySize = 0x2c

	// SeedLength is the length of the key seed in the EncryptionInit payload.
	SeedLength = 4

	// MaxPhraseLength is the room reserved for the key phrase in the base
	// key.
	MaxPhraseLength = 32

	// EncryptionInitAckMagic opens the server's reply to EncryptionInit.
	EncryptionInitAckMagic uint32 = 0xe0003c2a

	// EncryptionInitAckSize is the length of the server's reply to
	// EncryptionInit.
	EncryptionInitAckSize = 0x290

	// DefaultGameVersion is the client version the lobby speaks unless told
	// otherwise.
	DefaultGameVersion uint16 = 6100
)

// KeyLayout says where a given client version puts the key phrase and key
// seed inside the EncryptionInit payload.
type KeyLayout struct {
	Version      uint16 `yaml:"version" json:"version"`
	PhraseOffset int    `yaml:"phrase_offset" json:"phrase_offset"`
	PhraseLength int    `yaml:"phrase_length" json:"phrase_length"`
	SeedOffset   int    `yaml:"seed_offset" json:"seed_offset"`
}

// Validate checks that the layout can be used to build a base key.
func (l KeyLayout) Validate() error {
	if l.PhraseLength <= 0 || l.PhraseLength > MaxPhraseLength {
		return errors.Errorf("version %d: phrase length %d not in [1,%d]", l.Version, l.PhraseLength, MaxPhraseLength)
	}
	if l.PhraseOffset < 0 || l.SeedOffset < 0 {
		return errors.Errorf("version %d: negative offset", l.Version)
	}
	return nil
}

// MinPayload is the shortest EncryptionInit payload holding both the phrase
// and the seed.
func (l KeyLayout) MinPayload() int {
	n := l.PhraseOffset + l.PhraseLength
	if s := l.SeedOffset + SeedLength; s > n {
		n = s
	}
	return n
}

// KeyLayouts maps a client game version to its key layout.
type KeyLayouts map[uint16]KeyLayout

type keyLayoutsFile struct {
	Layouts []KeyLayout `yaml:"layouts"`
}

// LoadKeyLayouts reads a YAML key layout table from r.
func LoadKeyLayouts(r io.Reader) (KeyLayouts, error) {
	var f keyLayoutsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding key layouts")
	}

	kl := make(KeyLayouts, len(f.Layouts))
	for _, l := range f.Layouts {
		if err := l.Validate(); err != nil {
			return nil, err
		}
		if _, dup := kl[l.Version]; dup {
			return nil, errors.Errorf("version %d listed twice", l.Version)
		}
		kl[l.Version] = l
	}
	return kl, nil
}

// Lookup returns the layout for the given client version.
func (kl KeyLayouts) Lookup(version uint16) (KeyLayout, bool) {
	l, ok := kl[version]
	return l, ok
}

// Merge returns a new table with the entries of other added to kl,
// replacing entries of the same version.
func (kl KeyLayouts) Merge(other KeyLayouts) KeyLayouts {
	out := make(KeyLayouts, len(kl)+len(other))
	for v, l := range kl {
		out[v] = l
	}
	for v, l := range other {
		out[v] = l
	}
	return out
}

// Sorted returns the layouts ordered by version.
func (kl KeyLayouts) Sorted() []KeyLayout {
	out := make([]KeyLayout, 0, len(kl))
	for _, l := range kl {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

var defaultKeyLayouts KeyLayouts

func init() {
	kl, err := LoadKeyLayouts(bytes.NewReader(datafiles.KeyLayoutsYAML))
	if err != nil {
		glog.Errorf("secrets: embedded key layouts: %s", err)
		return
	}
	defaultKeyLayouts = kl
}

// DefaultKeyLayouts returns a copy of the key layout table built into the
// binary.
func DefaultKeyLayouts() KeyLayouts {
	return defaultKeyLayouts.Merge(nil)
}
