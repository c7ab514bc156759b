package order

// Status is the lifecycle state of an Order. The zero value is not valid;
// orders are created as StatusPending.
type Status string

// Order statuses. Paid and Cancelled are terminal.
const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// orderTransitions is the closed transition table for Order statuses.
// Cancellation is allowed from every non-terminal state; payment from every
// open state (a cashier may settle before the food is served).
var orderTransitions = map[Status][]Status{
	StatusPending:   {StatusAccepted, StatusPaid, StatusCancelled},
	StatusAccepted:  {StatusPreparing, StatusPaid, StatusCancelled},
	StatusPreparing: {StatusReady, StatusPaid, StatusCancelled},
	StatusReady:     {StatusServed, StatusPaid, StatusCancelled},
	StatusServed:    {StatusPaid, StatusCancelled},
	StatusPaid:      nil,
	StatusCancelled: nil,
}

// Valid reports whether s is one of the known order statuses.
func (s Status) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// CanTransition reports whether the order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range orderTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// ItemStatus is the independent per-line lifecycle state of an order Item.
type ItemStatus string

// Item statuses. Completed and Cancelled are terminal; Completed is only
// reached when the parent order is paid.
const (
	ItemPending   ItemStatus = "pending"
	ItemPreparing ItemStatus = "preparing"
	ItemReady     ItemStatus = "ready"
	ItemServed    ItemStatus = "served"
	ItemCompleted ItemStatus = "completed"
	ItemCancelled ItemStatus = "cancelled"
)

// itemRank orders item statuses along the kitchen pipeline so that bulk
// propagation from the parent order never moves a line backwards.
var itemRank = map[ItemStatus]int{
	ItemPending:   0,
	ItemPreparing: 1,
	ItemReady:     2,
	ItemServed:    3,
	ItemCompleted: 4,
	ItemCancelled: 4,
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:   {ItemPreparing, ItemReady, ItemCancelled},
	ItemPreparing: {ItemReady},
	ItemReady:     {ItemServed},
	ItemServed:    {ItemCompleted},
	ItemCompleted: nil,
	ItemCancelled: nil,
}

// Valid reports whether s is one of the known item statuses.
func (s ItemStatus) Valid() bool {
	_, ok := itemTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s ItemStatus) Terminal() bool {
	return s == ItemCompleted || s == ItemCancelled
}

// CanTransition reports whether a line may move from s to next.
func (s ItemStatus) CanTransition(next ItemStatus) bool {
	for _, t := range itemTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// PropagatedItemStatus maps an order transition target to the status its
// non-terminal items should be bulk-moved to, or "" when the transition does
// not touch item statuses (accepted, served). Items already at or past the
// target rank are left alone.
func PropagatedItemStatus(to Status) ItemStatus {
	switch to {
	case StatusPreparing:
		return ItemPreparing
	case StatusReady:
		return ItemReady
	case StatusPaid:
		return ItemCompleted
	case StatusCancelled:
		return ItemCancelled
	default:
		return ""
	}
}

// TransitionSources returns the order statuses from which to is reachable.
func TransitionSources(to Status) []Status {
	var from []Status
	for s, targets := range orderTransitions {
		for _, t := range targets {
			if t == to {
				from = append(from, s)
			}
		}
	}
	return from
}

// ItemTransitionSources returns the item statuses from which to is reachable.
func ItemTransitionSources(to ItemStatus) []ItemStatus {
	var from []ItemStatus
	for s, targets := range itemTransitions {
		for _, t := range targets {
			if t == to {
				from = append(from, s)
			}
		}
	}
	return from
}

// PropagationSources returns the item statuses that bulk propagation moves to
// target, per ShouldPropagate.
func PropagationSources(target ItemStatus) []ItemStatus {
	var from []ItemStatus
	for s := range itemTransitions {
		if ShouldPropagate(s, target) {
			from = append(from, s)
		}
	}
	return from
}

// ShouldPropagate reports whether bulk propagation applies to a line currently
// at from when its order moves items to target: the line must be non-terminal
// and strictly behind the target rank. Order cancellation only cancels lines
// that were never started; anything the kitchen already worked on keeps its
// status for the record.
func ShouldPropagate(from ItemStatus, target ItemStatus) bool {
	if target == "" || from.Terminal() {
		return false
	}
	if target == ItemCancelled {
		return from == ItemPending
	}
	return itemRank[from] < itemRank[target]
}
