// Package domain holds identifier primitives shared across bounded contexts.
// Identifiers are parsed once at the trust boundary and carried as distinct
// types so a review ID can never be passed where a decision ID is expected.
package domain

import (
	"regexp"

	"github.com/google/uuid"

	dErrors "skillcred/pkg/domain-errors"
)

// SubjectID identifies the person whose credentials are assessed.
// Subject IDs come from upstream systems and are opaque slugs, not UUIDs.
type SubjectID string

// DecisionID identifies one evaluation lineage for a subject.
type DecisionID uuid.UUID

// ReviewID identifies a review case in the escalation queue.
type ReviewID uuid.UUID

// ReviewerID identifies the human who resolved a review case.
type ReviewerID uuid.UUID

const maxSubjectIDLen = 128

var subjectIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:@-]*$`)

// ParseSubjectID validates an upstream subject identifier.
func ParseSubjectID(s string) (SubjectID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	if len(s) > maxSubjectIDLen {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id is too long")
	}
	if !subjectIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id contains invalid characters")
	}
	return SubjectID(s), nil
}

func (id SubjectID) String() string { return string(id) }

func (id SubjectID) IsZero() bool { return id == "" }

func NewDecisionID() DecisionID { return DecisionID(uuid.New()) }

func NewReviewID() ReviewID { return ReviewID(uuid.New()) }

func ParseDecisionID(s string) (DecisionID, error) {
	u, err := parseUUID(s, "decision")
	return DecisionID(u), err
}

func ParseReviewID(s string) (ReviewID, error) {
	u, err := parseUUID(s, "review")
	return ReviewID(u), err
}

func ParseReviewerID(s string) (ReviewerID, error) {
	u, err := parseUUID(s, "reviewer")
	return ReviewerID(u), err
}

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return u, nil
}

func (id DecisionID) String() string { return uuid.UUID(id).String() }
func (id DecisionID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id DecisionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *DecisionID) UnmarshalText(b []byte) error {
	parsed, err := ParseDecisionID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ReviewID) String() string { return uuid.UUID(id).String() }
func (id ReviewID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ReviewID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReviewID) UnmarshalText(b []byte) error {
	parsed, err := ParseReviewID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ReviewerID) String() string { return uuid.UUID(id).String() }
func (id ReviewerID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

func (id ReviewerID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *ReviewerID) UnmarshalText(b []byte) error {
	parsed, err := ParseReviewerID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
