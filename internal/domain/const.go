package domain

import "math/big"

const (
	// PPMDenominator is 100% expressed in parts-per-million
	PPMDenominator = 1_000_000

	// HubChainName names the hub event chain in its genesis tip
	HubChainName = "UntronV3"
	// ControllerChainName names the controller event chain in its genesis tip
	ControllerChainName = "UntronController"

	// EIP712Name and EIP712Version form the typed-data signing domain
	EIP712Name    = "UntronV3"
	EIP712Version = "1"
)

// PPM returns the parts-per-million denominator as a big integer
func PPM() *big.Int {
	return big.NewInt(PPMDenominator)
}
