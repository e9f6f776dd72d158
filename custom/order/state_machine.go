package order

import (
	"restaurant_pos/constants"
)

// Allowed order status transitions. COMPLETED is terminal.
var orderTransitions = map[string][]string{
	constants.ORDER_STATUS_PENDING:   {constants.ORDER_STATUS_PREPARING, constants.ORDER_STATUS_COMPLETED},
	constants.ORDER_STATUS_PREPARING: {constants.ORDER_STATUS_PENDING, constants.ORDER_STATUS_COMPLETED},
}

func isKnownStatus(status string) bool {
	switch status {
	case constants.ORDER_STATUS_PENDING, constants.ORDER_STATUS_PREPARING, constants.ORDER_STATUS_COMPLETED:
		return true
	}
	return false
}

func canTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func isTerminal(status string) bool {
	return status == constants.ORDER_STATUS_COMPLETED
}
