// Package seating partitions registered players into table groups.
package seating

// MinTableSize is the smallest group that can form a playable table.
const MinTableSize = 2

// Partition slices players, in the order given, into consecutive groups of
// perTable. A trailing group smaller than MinTableSize is too small to play
// and is returned as leftover instead of a group; callers decide how to
// surface it. Partition is deterministic and does not mutate players.
//
// Seating happens once at tournament start. Tables are not rebalanced as
// players bust out.
func Partition(players []int64, perTable int) (groups [][]int64, leftover []int64) {
	if perTable < MinTableSize {
		return nil, players
	}

	for start := 0; start < len(players); start += perTable {
		end := start + perTable
		if end > len(players) {
			end = len(players)
		}
		group := players[start:end]
		if len(group) < MinTableSize {
			leftover = group
			break
		}
		groups = append(groups, group)
	}
	return groups, leftover
}
