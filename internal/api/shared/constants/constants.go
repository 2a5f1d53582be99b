package constants

import "github.com/untron/untron-v3-engine/internal/api/shared/types"

const (
	MAX_PAGE_SIZE           = 100
	MAX_CLAIMS_PER_FILL     = 256
	MAX_EVENT_CHAIN_RANGE   = 500
	MAX_EVENT_NAMES         = 16
	DEFAULT_OFFSET          = uint64(0)
	DEFAULT_EVENTS_LIMIT    = 20
	DEFAULT_PENDING_LIMIT   = 20
	DEFAULT_EVENTS_ORDER    = types.OrderAsc
	REQUEST_ID_HEADER       = "X-Request-ID"
	DEFAULT_FILL_MAX_CLAIMS = uint64(32)
)
