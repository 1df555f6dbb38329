package rafflemetrics

import (
	"context"
	"time"

	"github.com/holiman/uint256"
)

type noop struct{}

// NewNoop returns a recorder that drops everything.
func NewNoop() RaffleMetrics { return noop{} }

func (noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (noop) RecordOperationFailure(context.Context, string, string)                 {}
func (noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noop) RecordHandlerAttempt(context.Context, string)                           {}
func (noop) RecordHandlerSuccess(context.Context, string)                           {}
func (noop) RecordHandlerFailure(context.Context, string)                           {}
func (noop) RecordHandlerDuration(context.Context, string, time.Duration)           {}
func (noop) SetPlayers(context.Context, int)                                        {}
func (noop) SetState(context.Context, uint8)                                        {}
func (noop) RecordPayout(context.Context, *uint256.Int)                             {}
