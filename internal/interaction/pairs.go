package interaction

import (
	"iter"
	"strings"

	"github.com/ppiankov/stackguard/internal/model"
)

// Pair is an unordered pair of distinct stack items
type Pair struct {
	A model.StackItem
	B model.StackItem
}

// Dedupe drops items whose id or normalized name was already seen, keeping
// the first occurrence and the original order.
func Dedupe(items []model.StackItem) []model.StackItem {
	seenNames := make(map[string]bool, len(items))
	seenIDs := make(map[string]bool, len(items))

	out := make([]model.StackItem, 0, len(items))
	for _, item := range items {
		name := model.NormalizeName(item.Name)
		id := strings.TrimSpace(item.ID)
		if seenNames[name] || (id != "" && seenIDs[id]) {
			continue
		}
		seenNames[name] = true
		if id != "" {
			seenIDs[id] = true
		}
		out = append(out, item)
	}
	return out
}

// UniquePairs yields every unordered pair (i < j) of items that differ by id
// and by normalized name. The index counts yielded pairs from zero. Breaking
// out of the range loop stops the iteration.
func UniquePairs(items []model.StackItem) iter.Seq2[int, Pair] {
	return func(yield func(int, Pair) bool) {
		n := 0
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				if sameItem(items[i], items[j]) {
					continue
				}
				if !yield(n, Pair{A: items[i], B: items[j]}) {
					return
				}
				n++
			}
		}
	}
}

// PairCount is the number of pairs UniquePairs yields for deduplicated items
func PairCount(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

func sameItem(a, b model.StackItem) bool {
	if a.ID != "" && a.ID == b.ID {
		return true
	}
	return model.NormalizeName(a.Name) == model.NormalizeName(b.Name)
}
