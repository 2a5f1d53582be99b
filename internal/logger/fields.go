package logger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Address logs an address in checksummed hex
func Address(key string, addr common.Address) zap.Field {
	return zap.String(key, addr.Hex())
}

// Hash logs a 32-byte hash in hex
func Hash(key string, h common.Hash) zap.Field {
	return zap.String(key, h.Hex())
}

// BigInt logs an arbitrary precision integer as a decimal string
func BigInt(key string, v *big.Int) zap.Field {
	if v == nil {
		return zap.String(key, "<nil>")
	}
	return zap.String(key, v.String())
}
