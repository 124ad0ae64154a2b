package ethereum

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

var (
	//go:embed rps.abi
	rpsABIJSON string

	//go:embed rps.bin
	rpsBinHex string
)

// contractABI parses the embedded game contract ABI
func contractABI() (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(rpsABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse contract abi: %w", err)
	}
	return parsed, nil
}

// contractBytecode decodes the embedded creation bytecode
func contractBytecode() ([]byte, error) {
	code, err := hex.DecodeString(strings.TrimSpace(rpsBinHex))
	if err != nil {
		return nil, fmt.Errorf("decode contract bytecode: %w", err)
	}
	return code, nil
}
