package rest

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/untron/untron-v3-engine/internal/api/shared/constants"
	"github.com/untron/untron-v3-engine/internal/api/shared/types"
)

// ListEventsQueryParams holds query parameters for GET /events
type ListEventsQueryParams struct {
	// Filters
	Names   []string `form:"name"`
	FromSeq *uint64  `form:"from_seq"`
	ToSeq   *uint64  `form:"to_seq"`

	// Pagination
	Limit  int         `form:"limit,default=20"`
	Offset uint64      `form:"offset,default=0"`
	Order  types.Order `form:"order,default=asc"`
}

// ParseListEventsQuery parses query parameters for GET /events
func ParseListEventsQuery(c *gin.Context) (*ListEventsQueryParams, error) {
	var params ListEventsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if len(params.Names) > constants.MAX_EVENT_NAMES {
		return nil, fmt.Errorf("at most %d event names", constants.MAX_EVENT_NAMES)
	}
	if params.FromSeq != nil && params.ToSeq != nil && *params.FromSeq > *params.ToSeq {
		return nil, fmt.Errorf("from_seq is after to_seq")
	}

	// Cap limit
	if params.Limit <= 0 {
		params.Limit = constants.DEFAULT_EVENTS_LIMIT
	}
	if params.Limit > constants.MAX_PAGE_SIZE {
		params.Limit = constants.MAX_PAGE_SIZE
	}

	if !params.Order.Valid() {
		params.Order = constants.DEFAULT_EVENTS_ORDER
	}

	return &params, nil
}

// PendingClaimsQueryParams holds query parameters for GET /queues/:token/claims
type PendingClaimsQueryParams struct {
	Limit uint64 `form:"limit,default=20"`
}

// ParsePendingClaimsQuery parses query parameters for GET /queues/:token/claims
func ParsePendingClaimsQuery(c *gin.Context) (*PendingClaimsQueryParams, error) {
	var params PendingClaimsQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.Limit == 0 {
		params.Limit = constants.DEFAULT_PENDING_LIMIT
	}
	if params.Limit > constants.MAX_PAGE_SIZE {
		params.Limit = constants.MAX_PAGE_SIZE
	}

	return &params, nil
}

// EventChainRangeQueryParams holds query parameters for GET /event-chain/entries
type EventChainRangeQueryParams struct {
	From uint64 `form:"from"`
	To   uint64 `form:"to"`
}

// ParseEventChainRangeQuery parses query parameters for GET /event-chain/entries
func ParseEventChainRangeQuery(c *gin.Context) (*EventChainRangeQueryParams, error) {
	var params EventChainRangeQueryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		return nil, err
	}

	if params.From == 0 {
		return nil, fmt.Errorf("from must be at least 1")
	}
	if params.To < params.From {
		return nil, fmt.Errorf("to is before from")
	}
	if params.To-params.From >= constants.MAX_EVENT_CHAIN_RANGE {
		return nil, fmt.Errorf("range spans more than %d entries", constants.MAX_EVENT_CHAIN_RANGE)
	}

	return &params, nil
}

// parseUintParam parses a numeric path parameter
func parseUintParam(c *gin.Context, name string) (uint64, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %s", name, c.Param(name))
	}
	return v, nil
}
