// Package gate decides whether a link may be resolved.
//
// Evaluate is a pure function: it reads the record and the request context and
// nothing else. The current time is always passed in by the caller.
package gate

import (
	"time"

	"github.com/atinyakov/linkgate/internal/storage"
)

// Reason explains why a link was not resolved.
type Reason int

const (
	NotFound Reason = iota + 1
	Disabled
	Expired
	ViewLimitReached
	PasswordRequired
	PasswordIncorrect
)

var reasonNames = map[Reason]string{
	NotFound:          "not_found",
	Disabled:          "disabled",
	Expired:           "expired",
	ViewLimitReached:  "view_limit_reached",
	PasswordRequired:  "password_required",
	PasswordIncorrect: "password_incorrect",
}

func (r Reason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return "unknown"
}

// Soft reports whether the denial asks the client for input instead of failing.
func (r Reason) Soft() bool {
	return r == PasswordRequired
}

// RequestContext carries what the caller knows about the request.
type RequestContext struct {
	// SuppliedPassword is empty when the caller did not provide one.
	SuppliedPassword string
	Now              time.Time
}

// TargetDescriptor is the resolved destination of a link.
type TargetDescriptor struct {
	ID          string
	URL         string
	DisplayName string
	Kind        storage.TargetKind
}

// Decision is either Denied or Resolved.
type Decision interface {
	isDecision()
}

type Denied struct {
	Reason Reason
}

type Resolved struct {
	Target TargetDescriptor
}

func (Denied) isDecision()   {}
func (Resolved) isDecision() {}

// Evaluate applies the access policy of record in a fixed order and stops at the first denial:
// missing, inactive, expired, view limit, password.
func Evaluate(record *storage.LinkRecord, rc RequestContext) Decision {
	if record == nil {
		return Denied{Reason: NotFound}
	}

	if !record.IsActive {
		return Denied{Reason: Disabled}
	}

	if record.ExpiresAt != nil && !rc.Now.Before(*record.ExpiresAt) {
		return Denied{Reason: Expired}
	}

	if record.MaxViews != nil && record.ViewCount >= *record.MaxViews {
		return Denied{Reason: ViewLimitReached}
	}

	if record.HasPassword() {
		if rc.SuppliedPassword == "" {
			return Denied{Reason: PasswordRequired}
		}
		if !PasswordMatches(record.PasswordHash, rc.SuppliedPassword) {
			return Denied{Reason: PasswordIncorrect}
		}
	}

	target, ok := Describe(record.Target)
	if !ok {
		return Denied{Reason: NotFound}
	}
	return Resolved{Target: target}
}

// Describe computes the URL and display name of a target.
// It returns false for a nil target.
func Describe(t storage.Target) (TargetDescriptor, bool) {
	switch ref := t.(type) {
	case storage.AssetRef:
		return TargetDescriptor{
			ID:          ref.ID,
			URL:         ref.PublicPath,
			DisplayName: ref.Filename,
			Kind:        storage.TargetAsset,
		}, true
	case storage.CollectionRef:
		return TargetDescriptor{
			ID:          ref.ID,
			URL:         "/c/" + ref.Slug,
			DisplayName: ref.Name,
			Kind:        storage.TargetCollection,
		}, true
	}
	return TargetDescriptor{}, false
}
