package services

// Prize and pool arithmetic for the competition lifecycle. All amounts are
// integer minor currency units; splits use integer floor division with the
// remainder folded into the last paid share so the payouts always sum
// exactly to the pool.

// DefaultPlatformFeeBps is the authoritative platform cut on entry fees at
// join time, in basis points (10%).
const DefaultPlatformFeeBps = 1000

// PoolIncrement returns how much one paid entry adds to the prize pool after
// the platform cut: entryFee − floor(entryFee × feeBps / 10000). The cut is
// computed per join, never on the aggregate pool.
func PoolIncrement(entryFee int64, feeBps int) int64 {
	if entryFee <= 0 {
		return 0
	}
	cut := entryFee * int64(feeBps) / 10000
	return entryFee - cut
}

// PrizeBreakdown splits a prize pool across the top three ranks of a
// competition with n participants:
//
//	pool ≤ 0 or n < 2:  nothing is paid out
//	n == 2:             70% / remainder
//	n ≥ 3:              60% / 25% / remainder
//
// Ranks beyond third receive nothing.
func PrizeBreakdown(pool int64, n int) (first, second, third int64) {
	if pool <= 0 || n < 2 {
		return 0, 0, 0
	}
	if n == 2 {
		first = pool * 70 / 100
		second = pool - first
		return first, second, 0
	}
	first = pool * 60 / 100
	second = pool * 25 / 100
	third = pool - first - second
	return first, second, third
}
