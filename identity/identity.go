// Package identity implements the swarm's signing key pair and the
// public-key-to-address derivation used to name peers, grounded on the
// teacher lineage's crypto.PubKey2Address (crypto/address.go).
package identity

import (
	"encoding/hex"
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// AddressLength mirrors the teacher's crypto.AddressLength: the low 20 bytes
// of the Keccak256 hash of the uncompressed public key.
const AddressLength = 20

// Address is the swarm's short peer identifier, derived from a public key.
type Address [AddressLength]byte

func (a Address) String() string {
	return hex.EncodeToString(a[:])
}

// IsZero reports whether a is the zero address (used as a local-identity
// sentinel in tests; never a valid derived address in practice).
func (a Address) IsZero() bool {
	return a == Address{}
}

// AddressFromPubKey derives the 20-byte address of a public key the same way
// crypto.PubKey2Address does: Keccak256 over the serialized key, low 20 bytes.
func AddressFromPubKey(pub *secp256k1.PublicKey) Address {
	digest := sha3.NewLegacyKeccak256()
	digest.Write(pub.SerializeUncompressed())
	sum := digest.Sum(nil)
	var addr Address
	copy(addr[:], sum[len(sum)-AddressLength:])
	return addr
}

// Identity is a signing key pair with its derived address. It is created
// once at swarm construction and never mutated afterward (§3).
type Identity struct {
	priv    *secp256k1.PrivateKey
	pub     *secp256k1.PublicKey
	address Address
}

// New generates a fresh random identity.
func New() (*Identity, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return FromPrivateKey(priv), nil
}

// FromPrivateKey builds an Identity from an existing private scalar.
func FromPrivateKey(priv *secp256k1.PrivateKey) *Identity {
	pub := priv.PubKey()
	return &Identity{
		priv:    priv,
		pub:     pub,
		address: AddressFromPubKey(pub),
	}
}

// PublicKey returns the identity's public key.
func (id *Identity) PublicKey() *secp256k1.PublicKey {
	return id.pub
}

// Address returns the identity's derived address.
func (id *Identity) Address() Address {
	return id.address
}

// Sign signs an arbitrary message, returning a compact recoverable
// signature. The digest is Keccak256 of msg, matching the hash convention
// used throughout the teacher lineage's crypto package.
func (id *Identity) Sign(msg []byte) ([]byte, error) {
	digest := hash(msg)
	sig := ecdsa.SignCompact(id.priv, digest, true)
	return sig, nil
}

// Verify recovers the signer's public key from sig over msg and returns
// the address derived from it. The boolean is false only when sig is
// malformed or no key can be recovered; it does not compare the result
// against any expected sender, so callers that know one (or, like the
// server endpoint recovering "Identity" per §4.1, do not) check the
// returned address themselves.
func Verify(msg, sig []byte) (Address, bool) {
	if len(sig) != 65 {
		return Address{}, false
	}
	digest := hash(msg)
	pub, _, err := ecdsa.RecoverCompact(sig, digest)
	if err != nil {
		return Address{}, false
	}
	return AddressFromPubKey(pub), true
}

func hash(msg []byte) []byte {
	digest := sha3.NewLegacyKeccak256()
	digest.Write(msg)
	return digest.Sum(nil)
}

// ErrInvalidSignature is returned by callers that need a typed error rather
// than Verify's boolean form.
var ErrInvalidSignature = errors.New("identity: invalid signature")
