// internal/domain/purchasable/purchasable.go
package purchasable

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownKind is returned when a reference names a kind with no registered resolver
	ErrUnknownKind = errors.New("unknown item kind")
	// ErrNotFound is returned by resolvers when the referenced entity no longer exists
	ErrNotFound = errors.New("purchasable item not found")
)

// Kind tags the entity table a reference points into
type Kind string

const (
	KindService    Kind = "service"
	KindMentorship Kind = "mentorship_session"
)

// Purchasable is implemented by every entity that can be put in a cart
type Purchasable interface {
	UnitPrice() decimal.Decimal
	DisplayTitle() string
	Summary() string
	ItemType() string
}

// ImageSource is implemented by purchasables that carry a display image
type ImageSource interface {
	ImageURL() string
}

// ImageOf returns the item's image url or "" if it has none
func ImageOf(p Purchasable) string {
	if src, ok := p.(ImageSource); ok {
		return src.ImageURL()
	}
	return ""
}

// Ref is a polymorphic reference to a sellable entity
type Ref struct {
	Kind Kind      `json:"kind"`
	ID   uuid.UUID `json:"id"`
}

// NewRef builds a reference from its string parts
func NewRef(kind, id string) (Ref, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Ref{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid item id %q: %w", id, err)
	}
	return Ref{Kind: k, ID: parsed}, nil
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// ParseKind normalizes a kind tag. It does not check the registry.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindService, "services":
		return KindService, nil
	case KindMentorship, "mentorship", "mentorships":
		return KindMentorship, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}
