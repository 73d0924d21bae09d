package service

// finalStandings produces the finish order for a completed tournament,
// index 0 being the champion. Eliminated players finish in reverse
// elimination order: the later you bust, the better you place.
func finalStandings(champion int64, eliminations []int64) []int64 {
	standings := make([]int64, 0, len(eliminations)+1)
	standings = append(standings, champion)
	for i := len(eliminations) - 1; i >= 0; i-- {
		standings = append(standings, eliminations[i])
	}
	return standings
}

// payoutAmounts computes per-rank winnings from the prize pool and payout
// curve. Index i holds the amount for rank i+1. Ranks beyond the curve win
// nothing. Integer division truncates; any remainder stays in the pool.
func payoutAmounts(prizePool int64, curve []int32, places int) []int64 {
	amounts := make([]int64, places)
	for i := 0; i < places && i < len(curve); i++ {
		amounts[i] = prizePool * int64(curve[i]) / 100
	}
	return amounts
}
