// Package access decides whether an identity may mutate a resource.
package access

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
)

type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Authorize allows a mutation only when identity is present and is the
// resource's owner. uuid.Nil stands for "no identity".
func Authorize(identity, owner uuid.UUID) Decision {
	if identity == uuid.Nil || owner == uuid.Nil {
		return Deny
	}
	if identity != owner {
		return Deny
	}
	return Allow
}

// Require turns a Deny into the error the caller should surface:
// unauthenticated without an identity, forbidden otherwise.
func Require(identity, owner uuid.UUID, resource string) error {
	if Authorize(identity, owner) == Allow {
		return nil
	}
	if identity == uuid.Nil {
		return fmt.Errorf("%s: %w", resource, errs.ErrUnauthenticated)
	}
	return fmt.Errorf("%s: %w", resource, errs.ErrForbidden)
}
