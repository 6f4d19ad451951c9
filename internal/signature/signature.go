package signature

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"energy-subsidy/internal/identity"
)

// CompactSigLen is the length of a recoverable compact signature:
// one recovery header byte followed by R and S.
const CompactSigLen = 65

// ReportDigest builds the canonical message digest an oracle agent signs for
// an energy report. The encoding is fixed-width big-endian so producer and
// verifier agree bit for bit: installationID || targetPeriodHeight ||
// microUnitsProduced, 8 bytes each, hashed once with SHA-256.
func ReportDigest(installationID, targetPeriodHeight, microUnitsProduced uint64) [32]byte {
	var msg [24]byte
	binary.BigEndian.PutUint64(msg[0:8], installationID)
	binary.BigEndian.PutUint64(msg[8:16], targetPeriodHeight)
	binary.BigEndian.PutUint64(msg[16:24], microUnitsProduced)
	return sha256.Sum256(msg[:])
}

// Verify recovers the signer of a compact recoverable signature over digest
// and reports whether the recovered identity equals claimed. It fails closed:
// malformed length, an invalid recovery id, or any decode error yields false,
// never a panic.
func Verify(digest [32]byte, sig []byte, claimed identity.Address) bool {
	if len(sig) != CompactSigLen || claimed.IsZero() {
		return false
	}
	pub, _, err := ecdsa.RecoverCompact(sig, digest[:])
	if err != nil {
		return false
	}
	return identity.FromPublicKey(pub) == claimed
}
