package predictor

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	minimalProxyPrefix = common.FromHex("0x3d602d80600a3d3981f3363d3d373d3d3d363d73")
	minimalProxySuffix = common.FromHex("0x5af43d82803e903d91602b57fd5bf3")
)

// MinimalProxyInitCode returns the EIP-1167 creation code of a proxy delegating to implementation
func MinimalProxyInitCode(implementation common.Address) []byte {
	code := make([]byte, 0, len(minimalProxyPrefix)+common.AddressLength+len(minimalProxySuffix))
	code = append(code, minimalProxyPrefix...)
	code = append(code, implementation.Bytes()...)
	return append(code, minimalProxySuffix...)
}

// Predictor derives receiver addresses created by a controller with CREATE2
type Predictor struct {
	controller   common.Address
	initCodeHash common.Hash
}

// New creates a predictor for a known receiver init code hash
func New(controller common.Address, initCodeHash common.Hash) *Predictor {
	return &Predictor{
		controller:   controller,
		initCodeHash: initCodeHash,
	}
}

// NewForImplementation creates a predictor for minimal proxies of implementation
func NewForImplementation(controller, implementation common.Address) *Predictor {
	return New(controller, crypto.Keccak256Hash(MinimalProxyInitCode(implementation)))
}

// Controller returns the default controller
func (p *Predictor) Controller() common.Address {
	return p.controller
}

// InitCodeHash returns the configured init code hash
func (p *Predictor) InitCodeHash() common.Hash {
	return p.initCodeHash
}

// Predict returns last20(keccak256(0xff ‖ controller ‖ salt ‖ initCodeHash))
func (p *Predictor) Predict(controller common.Address, salt common.Hash) common.Address {
	return crypto.CreateAddress2(controller, salt, p.initCodeHash[:])
}

// PredictDefault predicts with the default controller
func (p *Predictor) PredictDefault(salt common.Hash) common.Address {
	return p.Predict(p.controller, salt)
}
