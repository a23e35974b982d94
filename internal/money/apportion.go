package money

import "sort"

// Apportion splits total across weights in proportion, at cent precision,
// with the largest-remainder correction so the shares sum to total exactly.
// Each share starts at its floored proportional value; the leftover cents go
// one each to the shares with the largest discarded remainders, earlier
// index winning ties. Negative or zero weights receive nothing, and a zero
// weight base yields all-zero shares.
func Apportion(total Decimal, weights []Decimal) []Decimal {
	shares := make([]Decimal, len(weights))
	var base int64
	for _, w := range weights {
		if w > 0 {
			base += int64(w)
		}
	}
	if base <= 0 || total <= 0 {
		return shares
	}

	// Exact share of weight w is total*w/base. Working in cents, the
	// floored share is totalRaw*w / (base*10) and the remainder orders the
	// leftover distribution.
	centDen := base * 10
	remainders := make([]int64, len(weights))
	var distributed int64
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		num := int64(total) * int64(w)
		cents := num / centDen
		remainders[i] = num % centDen
		shares[i] = Cents(cents)
		distributed += cents
	}

	leftover := total.Cents() - distributed
	order := make([]int, 0, len(weights))
	for i, w := range weights {
		if w > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]] > remainders[order[b]]
	})
	for k := 0; leftover > 0 && k < len(order); k++ {
		shares[order[k]] += Cents(1)
		leftover--
	}
	return shares
}
