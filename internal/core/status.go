package core

// ValidStatus reports whether s is one of the three lifecycle states.
func ValidStatus(s TransactionStatus) bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// TransitionEffect returns the inventory movement a status change must
// generate per line item, and whether the transition carries one at all.
//
// Stock is committed only on the completed⇄cancelled boundary. A pending sale
// never reserved stock, so pending→completed deliberately performs no
// inventory action; the state graph itself rejects nothing.
func TransitionEffect(from, to TransactionStatus) (MovementType, string, bool) {
	switch {
	case from == StatusCompleted && to == StatusCancelled:
		return MovementIn, RefTransactionCancellation, true
	case from == StatusCancelled && to == StatusCompleted:
		return MovementOut, RefTransactionCompletion, true
	}
	return "", "", false
}
