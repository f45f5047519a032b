package chain

import "time"

// receiptPollInterval is how often AwaitReceipt polls for a transaction
// receipt. A var, not a const, so tests can shrink it.
var receiptPollInterval = 500 * time.Millisecond

func pollTick() <-chan time.Time {
	return time.After(receiptPollInterval)
}
