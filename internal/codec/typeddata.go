package codec

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/untron/untron-v3-engine/internal/domain"
)

const (
	domainTypeDescriptor       = "EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"
	payoutConfigTypeDescriptor = "PayoutConfig(uint256 targetChainId,address targetToken,address beneficiary)"

	// PayoutConfigUpdateTypeDescriptor is the primary type signed by lessees, referenced types appended
	PayoutConfigUpdateTypeDescriptor = "PayoutConfigUpdate(uint256 leaseId,uint256 nonce,PayoutConfig payout,uint256 deadline)" +
		payoutConfigTypeDescriptor
)

var (
	domainFields       = MustArguments("bytes32", "bytes32", "uint256", "address")
	payoutConfigFields = MustArguments("uint256", "address", "address")
	payoutUpdateFields = MustArguments("uint256", "uint256", "bytes32", "uint256")
)

// DomainSeparator computes the typed-data domain separator of the hub
func DomainSeparator(chainID *big.Int, verifyingContract common.Address) (common.Hash, error) {
	return HashStruct(domainTypeDescriptor, domainFields,
		crypto.Keccak256Hash([]byte(domain.EIP712Name)),
		crypto.Keccak256Hash([]byte(domain.EIP712Version)),
		chainID,
		verifyingContract,
	)
}

// PayoutConfigHash is the struct hash of a payout config
func PayoutConfigHash(p domain.PayoutConfig) (common.Hash, error) {
	chainID := p.TargetChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	return HashStruct(payoutConfigTypeDescriptor, payoutConfigFields, chainID, p.TargetToken, p.Beneficiary)
}

// PayoutUpdateDigest is the digest a lessee signs to authorise a payout change
func PayoutUpdateDigest(domainSeparator common.Hash, leaseID, nonce uint64, payout domain.PayoutConfig, deadline uint64) (common.Hash, error) {
	payoutHash, err := PayoutConfigHash(payout)
	if err != nil {
		return common.Hash{}, err
	}
	structHash, err := HashStruct(PayoutConfigUpdateTypeDescriptor, payoutUpdateFields,
		new(big.Int).SetUint64(leaseID),
		new(big.Int).SetUint64(nonce),
		payoutHash,
		new(big.Int).SetUint64(deadline),
	)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash([]byte{0x19, 0x01}, domainSeparator[:], structHash[:]), nil
}

// RecoverSigner returns the address that produced a 65-byte [R || S || V] signature over digest.
// V may be 0/1 or 27/28.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, domain.ErrInvalidSignature
	}
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, domain.ErrInvalidSignature
	}

	pub, err := crypto.SigToPub(digest[:], normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignDigest signs a digest and returns the signature with V in 27/28 form
func SignDigest(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
