package service

import "github.com/iliyamo/cityhelp/internal/model"

// ClosurePolicy decides when reports close an occurrence.  A zero threshold
// disables its rule.  Counters are always exposed regardless of the policy.
type ClosurePolicy struct {
	// ClosureThreshold closes once closure reports reach this count.
	ClosureThreshold int
	// NonExistingThreshold closes once non-existing reports reach this count
	// and outnumber existing confirmations.
	NonExistingThreshold int
}

func DefaultClosurePolicy() ClosurePolicy {
	return ClosurePolicy{ClosureThreshold: 3, NonExistingThreshold: 3}
}

func (p ClosurePolicy) ShouldClose(c model.Counters) bool {
	if p.ClosureThreshold > 0 && int(c.Closure) >= p.ClosureThreshold {
		return true
	}
	if p.NonExistingThreshold > 0 && int(c.NonExisting) >= p.NonExistingThreshold && c.NonExisting > c.Existing {
		return true
	}
	return false
}
