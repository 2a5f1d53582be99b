package codec

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/untron/untron-v3-engine/internal/domain"
)

// Event names emitted by the hub
const (
	EventLeaseCreated                     = "LeaseCreated"
	EventPayoutConfigUpdated              = "PayoutConfigUpdated"
	EventLeaseNonceUpdated                = "LeaseNonceUpdated"
	EventLeaseClosed                      = "LeaseClosed"
	EventLeaseNuked                       = "LeaseNuked"
	EventClaimCreated                     = "ClaimCreated"
	EventClaimFilled                      = "ClaimFilled"
	EventClaimRerouted                    = "ClaimRerouted"
	EventClaimDropped                     = "ClaimDropped"
	EventDepositRecognized                = "DepositRecognized"
	EventSubjectivePreEntitled            = "SubjectivePreEntitled"
	EventSubjectivePreEntitlementConsumed = "SubjectivePreEntitlementConsumed"
	EventProtocolPnlUpdated               = "ProtocolPnlUpdated"
	EventLpDeposited                      = "LpDeposited"
	EventLpWithdrawn                      = "LpWithdrawn"
	EventProtocolProfitWithdrawn          = "ProtocolProfitWithdrawn"
	EventTokensRescued                    = "TokensRescued"
	EventFrontedLiquidityReleased         = "FrontedLiquidityReleased"
	EventControllerEventProcessed         = "ControllerEventProcessed"
	EventEventAppended                    = "EventAppended"
	EventProtocolFloorsSet                = "ProtocolFloorsSet"
	EventRealtorSet                       = "RealtorSet"
	EventRealtorMinFeeSet                 = "RealtorMinFeeSet"
	EventRealtorMaxLeaseDurationSet       = "RealtorMaxLeaseDurationSet"
	EventLeaseRateLimitSet                = "LeaseRateLimitSet"
	EventPayoutConfigRateLimitSet         = "PayoutConfigRateLimitSet"
	EventSwapRateSet                      = "SwapRateSet"
	EventBridgerSet                       = "BridgerSet"
	EventChainDeprecatedSet               = "ChainDeprecatedSet"
	EventLpAllowedSet                     = "LpAllowedSet"
	EventSubjectiveSponsorSet             = "SubjectiveSponsorSet"
	EventIdentitiesInitialized            = "IdentitiesInitialized"
	EventPaused                           = "Paused"
	EventUnpaused                         = "Unpaused"
	EventOwnershipTransferred             = "OwnershipTransferred"

	// Emitted by the controller on the counterparty chain
	EventReceiverPulled = "ReceiverPulled"
	EventUsdtRebalanced = "UsdtRebalanced"
)

// eventDefs lists every event as "type name [indexed]" parameters, in declaration order
var eventDefs = []struct {
	name   string
	params []string
}{
	{EventLeaseCreated, []string{
		"uint256 leaseId indexed", "bytes32 receiverSalt indexed", "address realtor indexed",
		"uint256 leaseNumber", "address lessee", "uint64 startTime", "uint64 nukeableAfter",
		"uint32 leaseFeePpm", "uint64 flatFee", "uint256 targetChainId", "address targetToken", "address beneficiary",
	}},
	{EventPayoutConfigUpdated, []string{
		"uint256 leaseId indexed", "uint256 targetChainId", "address targetToken", "address beneficiary",
	}},
	{EventLeaseNonceUpdated, []string{"uint256 leaseId indexed", "uint256 nonce"}},
	{EventLeaseClosed, []string{"uint256 leaseId indexed", "address closedBy"}},
	{EventLeaseNuked, []string{"uint256 leaseId indexed", "uint256 droppedClaims", "uint256 droppedUsdt"}},
	{EventClaimCreated, []string{
		"uint256 claimId indexed", "uint256 leaseId indexed", "address targetToken indexed",
		"uint256 seqInLease", "uint256 queueIndex", "uint256 amountUsdt", "uint256 targetChainId", "address beneficiary",
		"uint8 originKind", "bytes32 originId", "address originActor", "address originToken",
		"uint256 originTimestamp", "uint256 originRawAmount",
	}},
	{EventClaimFilled, []string{
		"uint256 claimId indexed", "uint256 leaseId indexed", "address targetToken indexed",
		"uint256 queueIndex", "uint256 amountUsdt", "uint256 fee", "uint256 payout",
		"uint256 targetChainId", "address beneficiary",
	}},
	{EventClaimRerouted, []string{
		"uint256 claimId indexed", "address fromToken indexed", "address toToken indexed",
		"uint256 fromQueueIndex", "uint256 toQueueIndex",
	}},
	{EventClaimDropped, []string{
		"uint256 claimId indexed", "uint256 leaseId indexed", "address targetToken indexed",
		"uint256 queueIndex", "uint256 amountUsdt",
	}},
	{EventDepositRecognized, []string{
		"bytes32 txId indexed", "bytes32 receiverSalt indexed", "address token indexed",
		"uint256 leaseId", "uint256 rawAmount", "uint256 timestamp", "uint8 originKind",
	}},
	{EventSubjectivePreEntitled, []string{
		"bytes32 txId indexed", "address sponsor indexed", "uint256 leaseId indexed",
		"uint256 rawAmount", "uint256 amountUsdt", "uint256 queueIndex", "uint256 claimId",
	}},
	{EventSubjectivePreEntitlementConsumed, []string{
		"bytes32 txId indexed", "uint256 leaseId indexed", "uint256 reservedRaw", "uint256 recognizedRaw",
	}},
	{EventProtocolPnlUpdated, []string{"int256 pnl", "int256 delta", "uint8 reason"}},
	{EventLpDeposited, []string{"address lp indexed", "uint256 amount"}},
	{EventLpWithdrawn, []string{"address lp indexed", "uint256 amount"}},
	{EventProtocolProfitWithdrawn, []string{"address to indexed", "uint256 amount"}},
	{EventTokensRescued, []string{"address token indexed", "address to indexed", "uint256 amount"}},
	{EventFrontedLiquidityReleased, []string{"uint256 amount", "uint256 fronted"}},
	{EventControllerEventProcessed, []string{
		"uint256 eventSeq indexed", "bytes32 prevTip", "bytes32 newTip", "bytes32 eventSignature", "bytes abiEncodedEventData",
	}},
	{EventEventAppended, []string{
		"uint256 eventSeq indexed", "bytes32 prevTip indexed", "bytes32 newTip indexed",
		"bytes32 eventSignature", "bytes abiEncodedEventData",
	}},
	{EventProtocolFloorsSet, []string{"uint32 floorPpm", "uint64 floorFlatFee", "uint64 maxLeaseDurationSeconds"}},
	{EventRealtorSet, []string{"address realtor indexed", "bool allowed"}},
	{EventRealtorMinFeeSet, []string{"address realtor indexed", "uint32 minFeePpm", "uint64 minFlatFee"}},
	{EventRealtorMaxLeaseDurationSet, []string{"address realtor indexed", "uint64 maxLeaseDurationSeconds"}},
	{EventLeaseRateLimitSet, []string{"address realtor indexed", "uint256 maxLeases", "uint256 windowSeconds"}},
	{EventPayoutConfigRateLimitSet, []string{"uint256 maxUpdates", "uint256 windowSeconds"}},
	{EventSwapRateSet, []string{"address token indexed", "uint256 ratePpm"}},
	{EventBridgerSet, []string{"address token indexed", "uint256 chainId indexed", "address bridger"}},
	{EventChainDeprecatedSet, []string{"uint256 chainId indexed", "bool deprecated"}},
	{EventLpAllowedSet, []string{"address lp indexed", "bool allowed"}},
	{EventSubjectiveSponsorSet, []string{"address sponsor indexed", "bool allowed"}},
	{EventIdentitiesInitialized, []string{
		"address usdt", "address tronUsdt", "address tronReader", "address controller",
	}},
	{EventPaused, []string{"address account"}},
	{EventUnpaused, []string{"address account"}},
	{EventOwnershipTransferred, []string{"address previousOwner indexed", "address newOwner indexed"}},
	{EventReceiverPulled, []string{"bytes32 receiverSalt indexed", "address token indexed", "uint256 rawAmount"}},
	{EventUsdtRebalanced, []string{"uint256 amount"}},
}

var (
	events      = map[string]abi.Event{}
	eventsByID  = map[common.Hash]abi.Event{}
	payloadArgs = map[string]abi.Arguments{}
)

func init() {
	for _, def := range eventDefs {
		inputs := make(abi.Arguments, 0, len(def.params))
		for _, p := range def.params {
			fields := strings.Fields(p)
			typ, err := abi.NewType(fields[0], "", nil)
			if err != nil {
				panic(fmt.Sprintf("codec: event %s: %v", def.name, err))
			}
			inputs = append(inputs, abi.Argument{
				Name:    fields[1],
				Type:    typ,
				Indexed: len(fields) > 2 && fields[2] == "indexed",
			})
		}
		ev := abi.NewEvent(def.name, def.name, false, inputs)
		events[def.name] = ev
		eventsByID[ev.ID] = ev

		flat := make(abi.Arguments, len(inputs))
		for i, in := range inputs {
			flat[i] = abi.Argument{Name: in.Name, Type: in.Type}
		}
		payloadArgs[def.name] = flat
	}
}

// Event returns the ABI definition of a named event
func Event(name string) (abi.Event, bool) {
	ev, ok := events[name]
	return ev, ok
}

// EventByTopic returns the event whose signature hash is topic0
func EventByTopic(topic0 common.Hash) (abi.Event, bool) {
	ev, ok := eventsByID[topic0]
	return ev, ok
}

// EventTopic returns topic0 of a named event
func EventTopic(name string) common.Hash {
	return events[name].ID
}

// PackEvent encodes an event as a log: topic0, one topic per indexed parameter, and the
// head-tail encoding of the remaining parameters. Values follow declaration order.
func PackEvent(name string, values ...interface{}) (*domain.EventRecord, error) {
	ev, ok := events[name]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrUnknownSelector, name)
	}
	if len(values) != len(ev.Inputs) {
		return nil, fmt.Errorf("%w: event %s takes %d values, got %d", ErrCodecMalformed, name, len(ev.Inputs), len(values))
	}

	topics := []common.Hash{ev.ID}
	nonIndexed := make([]interface{}, 0, len(values))
	args := make(map[string]interface{}, len(values))
	for i, in := range ev.Inputs {
		args[in.Name] = JSONValue(values[i])
		if !in.Indexed {
			nonIndexed = append(nonIndexed, values[i])
			continue
		}
		topic, err := EncodeTopic(in.Type, values[i])
		if err != nil {
			return nil, fmt.Errorf("event %s topic %s: %w", name, in.Name, err)
		}
		topics = append(topics, topic)
	}

	data, err := ev.Inputs.NonIndexed().Pack(nonIndexed...)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: %v", ErrCodecMalformed, name, err)
	}

	return &domain.EventRecord{
		Name:   name,
		Topics: topics,
		Data:   data,
		Args:   args,
	}, nil
}

// EventPayload is the head-tail encoding of every event parameter, indexed or not.
// It is the payload an event contributes to the event chain.
func EventPayload(name string, values ...interface{}) ([]byte, error) {
	args, ok := payloadArgs[name]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrUnknownSelector, name)
	}
	payload, err := args.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("%w: event %s: %v", ErrCodecMalformed, name, err)
	}
	return payload, nil
}

// UnpackEvent decodes a log of the named event into a map keyed by parameter name
func UnpackEvent(name string, topics []common.Hash, data []byte) (map[string]interface{}, error) {
	ev, ok := events[name]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrUnknownSelector, name)
	}
	if len(topics) == 0 || topics[0] != ev.ID {
		return nil, fmt.Errorf("%w: topic0 does not match event %s", ErrCodecMalformed, name)
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(topics)-1 != len(indexed) {
		return nil, fmt.Errorf("%w: event %s expects %d indexed topics, got %d", ErrCodecMalformed, name, len(indexed), len(topics)-1)
	}

	out := make(map[string]interface{}, len(ev.Inputs))
	if err := abi.ParseTopicsIntoMap(out, indexed, topics[1:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	if err := ev.Inputs.UnpackIntoMap(out, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	return out, nil
}

// UnpackPayload decodes an event chain payload of the named event
func UnpackPayload(name string, payload []byte) (map[string]interface{}, error) {
	args, ok := payloadArgs[name]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", ErrUnknownSelector, name)
	}
	out := make(map[string]interface{}, len(args))
	if err := args.UnpackIntoMap(out, payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCodecMalformed, err)
	}
	return out, nil
}

// JSONValue converts an ABI value into a JSON friendly form
func JSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case common.Address:
		return t.Hex()
	case common.Hash:
		return t.Hex()
	case [32]byte:
		return common.Hash(t).Hex()
	case *big.Int:
		if t == nil {
			return "0"
		}
		return t.String()
	case []byte:
		return hexutil.Encode(t)
	default:
		return v
	}
}
