package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// The returned string has No 0x prefix
func ByteSliceToPureHexStr(b []byte) string {
	return hex.EncodeToString(b)
}

// HexStrToByteSlice decodes a hex string with or without a 0x prefix.
func HexStrToByteSlice(hexStr string) ([]byte, error) {
	b, err := hex.DecodeString(Trim0xPrefix(hexStr))
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", hexStr, err)
	}
	return b, nil
}

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	n, err := rand.Read(b[:])
	if err != nil {
		return [32]byte{}
	}
	if n != 32 {
		return [32]byte{}
	}
	return b
}

// RandTxIDHex generates a 64-char lowercase hex string shaped like a tx id.
func RandTxIDHex() string {
	b := RandBytes32()
	return ByteSliceToPureHexStr(b[:])
}

// RandEthAddress generates a random 20-byte address.
func RandEthAddress() ethcommon.Address {
	var b [ethcommon.AddressLength]byte
	if _, err := rand.Read(b[:]); err != nil {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(b[:])
}
