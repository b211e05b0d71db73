package wtpage

import "fmt"

// ErrInvalidLink is returned when a link's geometry no longer matches the
// page it claims to point at: stale offset/length, or a page-id mismatch
// passed to the wrong page. It is always reachable through errors.Is on a
// *DataPageError with Kind == KindInvalidLink.
var ErrInvalidLink = fmt.Errorf("wtpage: invalid link")

// DataPageErrorKind discriminates the ways a DataPage operation can fail,
// spec.md §7's "error kinds, not type names" framing: one wrapping type,
// switched on Kind, rather than a distinct Go type per failure mode.
type DataPageErrorKind int

const (
	KindInvalidLink DataPageErrorKind = iota
	KindPageIsFull
	KindSerializeError
	KindDeserializeError
)

func (k DataPageErrorKind) String() string {
	switch k {
	case KindInvalidLink:
		return "invalid_link"
	case KindPageIsFull:
		return "page_is_full"
	case KindSerializeError:
		return "serialize_error"
	case KindDeserializeError:
		return "deserialize_error"
	default:
		return "unknown"
	}
}

// DataPageError is the single error type every DataPage operation fails
// with, discriminated by Kind. Free/Required are only meaningful for
// KindPageIsFull; err is the wrapped codec failure for KindSerializeError/
// KindDeserializeError and ErrInvalidLink for KindInvalidLink.
type DataPageError struct {
	Kind     DataPageErrorKind
	Free     uint32
	Required uint32

	err error
}

func (e *DataPageError) Error() string {
	switch e.Kind {
	case KindPageIsFull:
		return fmt.Sprintf("wtpage: page is full, free=%d required=%d", e.Free, e.Required)
	case KindSerializeError:
		return fmt.Sprintf("wtpage: serialize row: %v", e.err)
	case KindDeserializeError:
		return fmt.Sprintf("wtpage: deserialize row: %v", e.err)
	default:
		return e.err.Error()
	}
}

func (e *DataPageError) Unwrap() error {
	return e.err
}

func invalidLinkErr() *DataPageError {
	return &DataPageError{Kind: KindInvalidLink, err: ErrInvalidLink}
}

func pageIsFullErr(free, required uint32) *DataPageError {
	return &DataPageError{Kind: KindPageIsFull, Free: free, Required: required}
}

func serializeErr(err error) *DataPageError {
	return &DataPageError{Kind: KindSerializeError, err: err}
}

func deserializeErr(err error) *DataPageError {
	return &DataPageError{Kind: KindDeserializeError, err: err}
}
