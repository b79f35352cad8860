package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// AccountIDLen is the size of an account identifier in bytes.
const AccountIDLen = 32

// DefaultSS58Prefix is the generic Substrate address format.
const DefaultSS58Prefix uint16 = 42

var (
	ErrInvalidAccount = errors.New("invalid account id")
	ErrBadChecksum    = errors.New("ss58 checksum mismatch")
)

var ss58Preamble = []byte("SS58PRE")

// AccountID is the opaque identity of a ledger participant. Two account IDs
// are equal when their bytes are equal, so the type is usable as a map key.
type AccountID [AccountIDLen]byte

// AccountFromPublicKey copies a raw 32-byte public key into an AccountID.
func AccountFromPublicKey(pub []byte) (AccountID, error) {
	var id AccountID
	if len(pub) != AccountIDLen {
		return id, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidAccount, AccountIDLen, len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

// ParseAccountID accepts hex (with or without 0x) or an SS58 address.
func ParseAccountID(s string) (AccountID, error) {
	s = strings.TrimSpace(s)
	raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(raw) == AccountIDLen*2 {
		if b, err := hex.DecodeString(raw); err == nil {
			return AccountFromPublicKey(b)
		}
	}
	id, _, err := DecodeSS58(s)
	if err != nil {
		return AccountID{}, fmt.Errorf("%w: %q", ErrInvalidAccount, s)
	}
	return id, nil
}

// String returns the lower-case hex form used as the storage key.
func (a AccountID) String() string {
	return hex.EncodeToString(a[:])
}

// Bytes returns a copy of the underlying bytes.
func (a AccountID) Bytes() []byte {
	return append([]byte(nil), a[:]...)
}

func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// SS58 encodes the account with the given network prefix.
func (a AccountID) SS58(prefix uint16) string {
	var payload []byte
	switch {
	case prefix < 64:
		payload = []byte{byte(prefix)}
	default:
		first := byte((prefix&0x00fc)>>2) | 0x40
		second := byte(prefix>>8) | byte((prefix&0x03)<<6)
		payload = []byte{first, second}
	}
	payload = append(payload, a[:]...)
	sum := ss58Checksum(payload)
	return base58.Encode(append(payload, sum[:2]...))
}

// DecodeSS58 returns the account and network prefix of an SS58 address.
func DecodeSS58(addr string) (AccountID, uint16, error) {
	var id AccountID
	data, err := base58.Decode(addr)
	if err != nil {
		return id, 0, fmt.Errorf("decode base58: %w", err)
	}
	if len(data) < 1 {
		return id, 0, ErrInvalidAccount
	}

	var prefixLen int
	var prefix uint16
	switch {
	case data[0] < 64:
		prefixLen, prefix = 1, uint16(data[0])
	case data[0] < 128:
		if len(data) < 2 {
			return id, 0, ErrInvalidAccount
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		prefixLen, prefix = 2, uint16(lower)|uint16(upper)<<8
	default:
		return id, 0, fmt.Errorf("%w: reserved ss58 prefix", ErrInvalidAccount)
	}

	if len(data) != prefixLen+AccountIDLen+2 {
		return id, 0, fmt.Errorf("%w: unexpected ss58 length %d", ErrInvalidAccount, len(data))
	}

	body := data[:prefixLen+AccountIDLen]
	sum := ss58Checksum(body)
	if !bytes.Equal(sum[:2], data[prefixLen+AccountIDLen:]) {
		return id, 0, ErrBadChecksum
	}
	copy(id[:], body[prefixLen:])
	return id, prefix, nil
}

func ss58Checksum(payload []byte) [blake2b.Size]byte {
	return blake2b.Sum512(append(append([]byte(nil), ss58Preamble...), payload...))
}
