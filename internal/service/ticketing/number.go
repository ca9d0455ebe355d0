package ticketing

import (
	"fmt"
)

// PlanNumbers returns the ticket numbers still to be issued for a booking:
// sequential `{reference}-NNNN` values continuing after the existing count.
// With existing == expected the plan is empty, which is what makes
// re-issuance a no-op.
func PlanNumbers(reference string, existing, expected int) []string {
	if existing >= expected {
		return nil
	}

	numbers := make([]string, 0, expected-existing)
	for i := existing + 1; i <= expected; i++ {
		numbers = append(numbers, fmt.Sprintf("%s-%04d", reference, i))
	}

	return numbers
}
