package wtpager

import "fmt"

// PageNotFoundError is returned when a link refers to a page index that
// does not exist in the pager's page vector.
type PageNotFoundError struct {
	PageID uint32
}

func (e *PageNotFoundError) Error() string {
	return fmt.Sprintf("wtpager: page not found: %d", e.PageID)
}
