// Package oracle defines the narrow price-oracle collaborator used by
// the Pipeline's USD-threshold filter (§6). The interface is
// deliberately minimal: "oracle absent" (a nil Oracle) turns the caller's
// USD filter off, and "oracle call failed" (a non-nil error) sends it to
// its native-unit fallback (any positive profit passes), so the interface
// doesn't need a separate capability check.
package oracle

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var errUnconfigured = errors.New("oracle: no price source configured")

// Oracle quotes a token's USD price.
type Oracle interface {
	Quote(ctx context.Context, token common.Address) (usdPerToken *big.Float, err error)
}

// NoOp always fails its quote, forcing every caller onto the native-unit
// fallback path. Useful as the default when no oracle is configured,
// without special-casing a nil Oracle at every call site.
type NoOp struct{}

func (NoOp) Quote(ctx context.Context, token common.Address) (*big.Float, error) {
	return nil, errUnconfigured
}
