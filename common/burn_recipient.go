package common

/*
Defines the 32-byte recipient tag a user passes to wNCG.burn(amount, to).
The tag tells the bridge which planet and which Chain-N address the
unwrapped NCG should be delivered to:

	planet id (6 bytes) || recipient address (20 bytes) || zero padding (6 bytes)

Tags with an unexpected planet id or dirty padding are rejected; the burn
has already happened on Chain-E, so a bad tag can only be paged, never
refunded.
*/

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// PlanetIDByteLen is the width of the planet id prefix.
const PlanetIDByteLen = 6

type PlanetID [PlanetIDByteLen]byte

var (
	ErrUnknownPlanet = errors.New("recipient tag carries an unexpected planet id")
	ErrDirtyPadding  = errors.New("recipient tag padding is not zero")
)

// PlanetIDFromHex parses a planet id such as "0x100000000001".
func PlanetIDFromHex(hexStr string) (PlanetID, error) {
	var id PlanetID
	b, err := hex.DecodeString(Trim0xPrefix(hexStr))
	if err != nil {
		return id, fmt.Errorf("invalid planet id %q: %w", hexStr, err)
	}
	if len(b) != PlanetIDByteLen {
		return id, fmt.Errorf("invalid planet id %q: want %d bytes, got %d", hexStr, PlanetIDByteLen, len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id PlanetID) Hex() string {
	return Prepend0xPrefix(hex.EncodeToString(id[:]))
}

// MakeBurnRecipient composes the 32-byte tag for a planet and address.
func MakeBurnRecipient(planet PlanetID, recipient ethcommon.Address) [32]byte {
	var tag [32]byte
	copy(tag[:PlanetIDByteLen], planet[:])
	copy(tag[PlanetIDByteLen:PlanetIDByteLen+ethcommon.AddressLength], recipient[:])
	return tag
}

// ParseBurnRecipient validates a tag against the expected planet id and
// extracts the Chain-N recipient address.
func ParseBurnRecipient(tag [32]byte, want PlanetID) (ethcommon.Address, error) {
	var recipient ethcommon.Address
	if !bytes.Equal(tag[:PlanetIDByteLen], want[:]) {
		return recipient, fmt.Errorf("%w: got %s, want %s",
			ErrUnknownPlanet, hex.EncodeToString(tag[:PlanetIDByteLen]), want.Hex())
	}
	pad := tag[PlanetIDByteLen+ethcommon.AddressLength:]
	if !bytes.Equal(pad, make([]byte, len(pad))) {
		return recipient, ErrDirtyPadding
	}
	copy(recipient[:], tag[PlanetIDByteLen:PlanetIDByteLen+ethcommon.AddressLength])
	return recipient, nil
}
