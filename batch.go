package verdict

import "time"

// BatchItem is one entry of an ordered batch call.
type BatchItem struct {
	ID      string
	Payload []byte
}

// ItemOutcome is the per-item settlement of one batch entry. Order of
// outcomes mirrors the input batch order. On failure, Code carries the
// backend's per-item error code and Message its description; on
// success, Payload carries the per-item outcome.
type ItemOutcome struct {
	ID      string
	OK      bool
	Payload any
	Code    string
	Message string
}

// BatchResult partitions the per-item outcomes of one batch call.
//
// OK=true together with a non-empty Failed list is a valid, expected
// state: batch acceptance is per-item, so the call as a whole succeeds
// even when individual items were rejected. OK=false is reserved for a
// batch call that failed before any per-item outcome existed; in that
// case Successful and Failed are both nil — not empty — to distinguish
// "no attempt" from "zero failures".
type BatchResult struct {
	Successful []ItemOutcome
	Failed     []ItemOutcome
	OK         bool
}

// Reconcile partitions ordered per-item outcomes into successful and
// failed lists, preserving relative order within each partition.
func Reconcile(outcomes []ItemOutcome) *BatchResult {
	res := &BatchResult{
		Successful: []ItemOutcome{},
		Failed:     []ItemOutcome{},
	}
	for _, o := range outcomes {
		if o.OK {
			res.Successful = append(res.Successful, o)
		} else {
			res.Failed = append(res.Failed, o)
		}
	}
	res.OK = len(res.Failed) == 0
	return res
}

// UnattemptedBatch is the BatchResult for a batch call that failed as a
// whole before any item was dispatched.
func UnattemptedBatch() *BatchResult {
	return &BatchResult{OK: false}
}

// SettleBatch settles one batch attempt. When err is nil the outcomes
// are reconciled into partitions and the Result is successful — even
// with per-item failures present, since partial acceptance is data,
// not an error. When err is non-nil the whole call failed: the Result
// carries an UnattemptedBatch payload and classification follows the
// same policy as Settle.
func SettleBatch(
	kind string,
	outcomes []ItemOutcome,
	err error,
	elapsed time.Duration,
	opts Options,
	tax Taxonomy,
) (*Result[*BatchResult], error) {
	if err == nil {
		return Success(kind, Reconcile(outcomes), elapsed), nil
	}

	res, verr := Settle[*BatchResult](kind, nil, err, elapsed, opts, tax)
	res.Payload = UnattemptedBatch()
	return res, verr
}
