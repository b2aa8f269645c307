package types

import "github.com/google/uuid"

type ownerKind int

const (
	ownerNone ownerKind = iota
	ownerUser
	ownerGuest
)

// CartOwner is a tagged variant: a cart belongs to exactly one authenticated
// user or exactly one anonymous session, never both.
type CartOwner struct {
	kind      ownerKind
	userID    uuid.UUID
	sessionID string
}

// UserOwner builds the owner variant for an authenticated user.
func UserOwner(userID uuid.UUID) CartOwner {
	return CartOwner{kind: ownerUser, userID: userID}
}

// GuestOwner builds the owner variant for an anonymous session.
func GuestOwner(sessionID string) CartOwner {
	return CartOwner{kind: ownerGuest, sessionID: sessionID}
}

func (o CartOwner) IsUser() bool  { return o.kind == ownerUser }
func (o CartOwner) IsGuest() bool { return o.kind == ownerGuest }
func (o CartOwner) IsZero() bool  { return o.kind == ownerNone }

// UserID returns the owning user id when the owner is a user.
func (o CartOwner) UserID() (uuid.UUID, bool) {
	if o.kind != ownerUser {
		return uuid.Nil, false
	}
	return o.userID, true
}

// SessionID returns the owning session id when the owner is a guest.
func (o CartOwner) SessionID() (string, bool) {
	if o.kind != ownerGuest {
		return "", false
	}
	return o.sessionID, true
}

// Identity is the caller identity resolved by the request layer. During the
// login transition window both ids may be present; cart resolution uses the
// session id only to merge a leftover guest cart into the user cart.
type Identity struct {
	UserID    *uuid.UUID
	SessionID *string
}

// Owner collapses the identity onto the cart owner variant, preferring the
// authenticated user.
func (i Identity) Owner() CartOwner {
	if i.UserID != nil && *i.UserID != uuid.Nil {
		return UserOwner(*i.UserID)
	}
	if i.SessionID != nil && *i.SessionID != "" {
		return GuestOwner(*i.SessionID)
	}
	return CartOwner{}
}

// GuestSessionID returns the session id carried alongside the identity, if any.
func (i Identity) GuestSessionID() (string, bool) {
	if i.SessionID == nil || *i.SessionID == "" {
		return "", false
	}
	return *i.SessionID, true
}
