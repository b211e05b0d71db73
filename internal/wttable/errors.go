package wttable

import "errors"

// ErrKeyNotFound is returned by the primary/secondary key lookups when no
// entry is indexed under the given key.
var ErrKeyNotFound = errors.New("wttable: key not found")
