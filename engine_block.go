package marketAuth

import (
	"context"

	"github.com/MrEthical07/marketAuth/credential"
)

// checkBlock returns the block in force for accountID at the engine's
// current time, or nil.
func (e *Engine) checkBlock(ctx context.Context, accountID string) (*credential.BlockRecord, error) {
	records, err := e.store.BlockRecords(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return credential.ActiveBlock(records, e.now()), nil
}

// enforceBlock turns an active block into a *BlockedError. Store failures
// become ErrInternal.
func (e *Engine) enforceBlock(ctx context.Context, accountID string) error {
	rec, err := e.checkBlock(ctx, accountID)
	if err != nil {
		return e.internalError("load block records", accountID, err)
	}
	if rec == nil {
		return nil
	}
	e.metricInc(MetricBlockedRejected)
	return blockedError(rec)
}

func blockedError(rec *credential.BlockRecord) *BlockedError {
	be := &BlockedError{Reason: rec.Reason}
	if rec.ExpiresAt != nil {
		until := *rec.ExpiresAt
		be.Until = &until
	}
	return be
}
