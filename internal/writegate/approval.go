package writegate

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// ApprovalIssuer mints and verifies GovernanceApproval tokens. This signs
// the act of approval, never the ChangePlan itself — plan signing is an
// explicit Non-goal.
type ApprovalIssuer struct {
	secret []byte
}

// NewApprovalIssuer builds an issuer backed by an HMAC secret. In
// production this secret is an operator credential, not derived from
// plan content.
func NewApprovalIssuer(secret []byte) *ApprovalIssuer {
	return &ApprovalIssuer{secret: secret}
}

type approvalClaims struct {
	jwt.RegisteredClaims
	DecisionID string `json:"decision_id"`
	ApprovedBy string `json:"approved_by"`
}

// Issue mints a GovernanceApproval for the given decision, signed by the
// operator identified by approvedBy.
func (a *ApprovalIssuer) Issue(decisionID, approvedBy string, ttl time.Duration) (*contracts.GovernanceApproval, error) {
	now := time.Now().UTC()
	claims := approvalClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Subject:   decisionID,
		},
		DecisionID: decisionID,
		ApprovedBy: approvedBy,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return nil, fmt.Errorf("writegate: signing approval token: %w", err)
	}
	return &contracts.GovernanceApproval{
		ApprovalID: signed[:16],
		DecisionID: decisionID,
		ApprovedBy: approvedBy,
		Token:      signed,
		ApprovedAt: now,
	}, nil
}

// Verify checks an approval's token is valid, unexpired, and references
// the given decision ID.
func (a *ApprovalIssuer) Verify(approval *contracts.GovernanceApproval, decisionID string) error {
	if approval == nil {
		return fmt.Errorf("not_approved: missing approval")
	}
	claims := &approvalClaims{}
	_, err := jwt.ParseWithClaims(approval.Token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return fmt.Errorf("not_approved: invalid approval token: %w", err)
	}
	if claims.DecisionID != decisionID {
		return fmt.Errorf("not_approved: approval references decision %s, want %s", claims.DecisionID, decisionID)
	}
	return nil
}
