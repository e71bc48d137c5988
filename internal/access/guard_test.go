package access

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
)

func TestAuthorize(t *testing.T) {
	owner := uuid.New()
	other := uuid.New()

	tests := []struct {
		name     string
		identity uuid.UUID
		owner    uuid.UUID
		want     Decision
	}{
		{"owner", owner, owner, Allow},
		{"someone else", other, owner, Deny},
		{"anonymous", uuid.Nil, owner, Deny},
		{"ownerless resource", owner, uuid.Nil, Deny},
		{"anonymous and ownerless", uuid.Nil, uuid.Nil, Deny},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Authorize(tt.identity, tt.owner); got != tt.want {
				t.Errorf("Authorize = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	owner := uuid.New()

	if err := Require(owner, owner, "song"); err != nil {
		t.Errorf("owner should pass, got %v", err)
	}
	if err := Require(uuid.New(), owner, "song"); !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
	if err := Require(uuid.Nil, owner, "song"); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Errorf("expected unauthenticated, got %v", err)
	}
}
