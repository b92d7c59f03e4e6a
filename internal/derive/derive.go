// Package derive computes program-derived account addresses. A derived
// address is a hash of its seeds plus a one-byte bump, constrained to never
// be a valid ed25519 curve point, so no keypair can ever exist for it. The
// engine is therefore the only party able to authorize transfers out of a
// derived account: authority is proven by re-deriving the address, not by a
// signature.
package derive

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"filippo.io/edwards25519"

	"github.com/nikhil/taskfi/internal/models"
)

// Namespace seeds for the three derived account kinds.
const (
	SeedTeam  = "team"
	SeedVault = "vault"
	SeedTask  = "task"
)

// programTag domain-separates this engine's derivations from any other use
// of the same seeds.
const programTag = "taskfi/escrow/v1"

// ErrNoBump is returned when no bump in [0,255] yields an off-curve
// address. With a 256-way search the odds are astronomically against it,
// but the search is finite so the case exists.
var ErrNoBump = errors.New("derive: no valid bump for seeds")

// ErrOnCurve is returned by WithBump when the recorded bump produces an
// address that lies on the ed25519 curve, meaning the bump was never valid
// for these seeds.
var ErrOnCurve = errors.New("derive: address for bump lies on curve")

// Derive finds the highest bump for which the seeds hash to an off-curve
// address. The returned bump must be recorded and supplied on every future
// re-derivation; it is the account's capability byte.
func Derive(seeds ...[]byte) (models.Address, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		addr, err := WithBump(uint8(bump), seeds...)
		if err == nil {
			return addr, uint8(bump), nil
		}
	}
	return models.ZeroAddress, 0, ErrNoBump
}

// WithBump re-derives the address for seeds under a recorded bump.
func WithBump(bump uint8, seeds ...[]byte) (models.Address, error) {
	h := sha256.New()
	h.Write([]byte(programTag))
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write([]byte{bump})

	var addr models.Address
	h.Sum(addr[:0])

	// A digest that decodes as a canonical curve point could collide with
	// a real keypair's public key, so it is not usable as a derived
	// address.
	if _, err := new(edwards25519.Point).SetBytes(addr[:]); err == nil {
		return models.ZeroAddress, ErrOnCurve
	}
	return addr, nil
}

// TeamSeeds builds the seed set for a team record account.
func TeamSeeds(authority models.Address, teamID uint64) [][]byte {
	return [][]byte{[]byte(SeedTeam), authority[:], uint64LE(teamID)}
}

// VaultSeeds builds the seed set for a team's vault account.
func VaultSeeds(team models.Address) [][]byte {
	return [][]byte{[]byte(SeedVault), team[:]}
}

// TaskSeeds builds the seed set for a task record account.
func TaskSeeds(team models.Address, taskID uint64) [][]byte {
	return [][]byte{[]byte(SeedTask), team[:], uint64LE(taskID)}
}

func uint64LE(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}
