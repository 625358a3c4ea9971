// Package authz is the single ownership check every patient-scoped operation
// goes through before it reads or mutates a resource.
package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/patientportal/portal/internal/platform/apperror"
)

// Kind names a class of patient-owned resource.
type Kind string

const (
	// KindConversation is owned by the conversation's patient.
	KindConversation Kind = "conversation"
	// KindAuthoredMessage is owned by the patient who wrote the message, and
	// only while the conversation also belongs to them.
	KindAuthoredMessage Kind = "authored-message"
	// KindNotification is owned by its recipient.
	KindNotification Kind = "notification"
)

// OwnerFunc reports whether patientID owns the resource id. A missing
// resource is not an error; it reports false.
type OwnerFunc func(ctx context.Context, patientID, id uuid.UUID) (bool, error)

type rule struct {
	owns   OwnerFunc
	denial string
}

// Guard maps each Kind to its owner lookup and denial message.
type Guard struct {
	rules map[Kind]rule
}

func NewGuard() *Guard {
	return &Guard{rules: make(map[Kind]rule)}
}

// Register installs the lookup for kind. denial is the client message of the
// Forbidden error Require returns when the lookup says no.
func (g *Guard) Register(kind Kind, denial string, owns OwnerFunc) *Guard {
	g.rules[kind] = rule{owns: owns, denial: denial}
	return g
}

// Require returns nil when patientID owns the resource, Forbidden when it does
// not (or does not exist), and Internal when the lookup fails. Kinds without
// a registered lookup are denied.
func (g *Guard) Require(ctx context.Context, patientID uuid.UUID, kind Kind, id uuid.UUID) error {
	r, ok := g.rules[kind]
	if !ok {
		return &apperror.Error{
			Kind:    apperror.KindForbidden,
			Message: "Access denied",
			Err:     fmt.Errorf("no ownership rule for kind %q", kind),
		}
	}

	owned, err := r.owns(ctx, patientID, id)
	if err != nil {
		return apperror.Internal("Failed to verify access", fmt.Errorf("check %s ownership: %w", kind, err))
	}
	if !owned {
		return apperror.Forbidden(r.denial)
	}
	return nil
}
