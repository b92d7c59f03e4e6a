package models

import (
	"encoding/binary"
	"fmt"
)

// TeamRecordLen is the fixed size of a serialized Team record:
// authority(32) | team_id(8) | vault_capability(1).
const TeamRecordLen = AddressLen + 8 + 1

// Team is the persistent record created once per (authority, team_id) pair.
// It is the sole source of truth for the vault's signing capability: the
// vault address must re-derive from the team address and VaultCapability,
// and nothing else can authorize moving vault funds.
type Team struct {
	Authority       Address `json:"authority"`
	TeamID          uint64  `json:"team_id"`
	VaultCapability uint8   `json:"vault_capability"`
}

// Encode serializes the team record into its fixed storage layout.
func (t Team) Encode() []byte {
	buf := make([]byte, TeamRecordLen)
	copy(buf[:AddressLen], t.Authority[:])
	binary.LittleEndian.PutUint64(buf[AddressLen:AddressLen+8], t.TeamID)
	buf[AddressLen+8] = t.VaultCapability
	return buf
}

// DecodeTeam deserializes a team record from its fixed storage layout.
func DecodeTeam(data []byte) (Team, error) {
	var t Team
	if len(data) != TeamRecordLen {
		return t, fmt.Errorf("team record: want %d bytes, got %d", TeamRecordLen, len(data))
	}
	copy(t.Authority[:], data[:AddressLen])
	t.TeamID = binary.LittleEndian.Uint64(data[AddressLen : AddressLen+8])
	t.VaultCapability = data[AddressLen+8]
	return t, nil
}
