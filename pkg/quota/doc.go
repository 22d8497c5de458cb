// Package quota enforces a per-owner, per-feature, per-calendar-day usage cap.
//
// Each successful Consume increments a ledger entry keyed by
// "<featureKey>_<YYYY-MM-DD>" under the owner. A call that would push the count
// past the limit is rejected without changing it. Days follow the configured
// time zone, so counters reset at that zone's midnight.
//
//	counter := quota.NewCounter(ledger, quota.WithLocation(loc))
//	res, err := counter.Consume(ctx, userID, "password_export", 3)
//	if err != nil {
//		return err
//	}
//	if !res.OK {
//		// limit reached, res.Count is the stored count
//	}
//
// Ledger implementations live next to their storage: MemoryLedger here, a
// transactional MongoDB ledger in store/mongostore and an optimistic
// WATCH/MULTI ledger in store/redisstore.
package quota
