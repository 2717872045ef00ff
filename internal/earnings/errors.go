package earnings

import (
	"fmt"
	"strings"
)

// Kind classifies a FetchError.
type Kind string

const (
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindDecode    Kind = "decode"
	KindQuery     Kind = "query"
)

// GraphQLError is one entry of a top-level "errors" list.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// FetchError is returned for every failed earnings lookup.
type FetchError struct {
	Kind   Kind
	Status int
	Body   string
	Errors []GraphQLError
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("HTTP error! status: %d, details: %s", e.Status, e.Body)
	case KindQuery:
		msgs := make([]string, 0, len(e.Errors))
		for _, ge := range e.Errors {
			msgs = append(msgs, ge.Message)
		}
		return "GraphQL errors in the response: " + strings.Join(msgs, "; ")
	case KindDecode:
		return fmt.Sprintf("invalid analytics response: %v", e.Err)
	}
	return fmt.Sprintf("analytics request failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
