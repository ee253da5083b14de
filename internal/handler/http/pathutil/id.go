package pathutil

import (
	"errors"
	"net/http"
)

// ErrInvalidID is returned when the ID in the URL path is invalid.
var ErrInvalidID = errors.New("invalid id")

const maxIDLength = 128

// SourceID returns the {id} wildcard of a routed request. Source IDs are
// opaque strings; an empty, overlong or non-printable value is rejected.
func SourceID(r *http.Request) (string, error) {
	return validID(r.PathValue("id"))
}

func validID(id string) (string, error) {
	if id == "" || len(id) > maxIDLength {
		return "", ErrInvalidID
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e || c == '/' {
			return "", ErrInvalidID
		}
	}
	return id, nil
}
