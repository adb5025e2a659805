package models

// CanTransition reports whether strict mode allows moving from one status to
// another: staying put, or moving forward in the lifecycle. Nothing leaves PAID.
func CanTransition(from, to OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return to.rank() > from.rank()
}
