package orderengine

import "github.com/epic1st/contestcore/internal/oracle"

// resolveExecutionQuote is the single policy boundary spec.md §9's design
// note calls for: a client-supplied locked quote is honored only when
// still fresh (see LockedQuote.fresh), otherwise the freshly-fetched quote
// is used instead. The bool return tells the caller which branch was
// taken, since the caller computes slippage differently for each (against
// the locked mid when honored, against the order's requested price
// otherwise).
func resolveExecutionQuote(locked *LockedQuote, fresh oracle.Quote) (oracle.Quote, bool) {
	if locked.fresh(timeNow()) {
		return oracle.Quote{
			Symbol:    fresh.Symbol,
			Bid:       locked.Bid,
			Ask:       locked.Ask,
			Mid:       (locked.Bid + locked.Ask) / 2,
			Spread:    locked.Ask - locked.Bid,
			Timestamp: locked.Timestamp,
		}, true
	}
	return fresh, false
}
