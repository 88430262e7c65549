package id

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-uuid"
)

// New generates a random ID with an optional prefix. The ID is a uuid with its
// dashes removed, which keeps it safe for cookie values and query parameters.
func New(optionalPrefix string) (string, error) {
	const op = "id.New"
	u, err := uuid.GenerateUUID()
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w", op, err)
	}
	id := strings.ReplaceAll(u, "-", "")
	switch {
	case optionalPrefix != "":
		return fmt.Sprintf("%s_%s", optionalPrefix, id), nil
	default:
		return id, nil
	}
}
