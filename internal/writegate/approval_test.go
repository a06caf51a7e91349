package writegate

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

func TestApprovalIssuer_IssueAndVerifyRoundTrip(t *testing.T) {
	issuer := NewApprovalIssuer([]byte("test-secret"))

	approval, err := issuer.Issue("decision-1", "alice", time.Hour)
	require.NoError(t, err)
	require.Equal(t, "decision-1", approval.DecisionID)
	require.Equal(t, "alice", approval.ApprovedBy)

	require.NoError(t, issuer.Verify(approval, "decision-1"))
}

func TestApprovalIssuer_VerifyRejectsWrongDecision(t *testing.T) {
	issuer := NewApprovalIssuer([]byte("test-secret"))

	approval, err := issuer.Issue("decision-1", "alice", time.Hour)
	require.NoError(t, err)

	err = issuer.Verify(approval, "decision-2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not_approved")
}

func TestApprovalIssuer_VerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewApprovalIssuer([]byte("test-secret"))

	approval, err := issuer.Issue("decision-1", "alice", -time.Minute)
	require.NoError(t, err)

	err = issuer.Verify(approval, "decision-1")
	require.Error(t, err)
}

func TestApprovalIssuer_VerifyRejectsWrongSecret(t *testing.T) {
	issuer := NewApprovalIssuer([]byte("test-secret"))
	other := NewApprovalIssuer([]byte("different-secret"))

	approval, err := issuer.Issue("decision-1", "alice", time.Hour)
	require.NoError(t, err)

	err = other.Verify(approval, "decision-1")
	require.Error(t, err)
}

func TestApprovalIssuer_VerifyRejectsNilApproval(t *testing.T) {
	issuer := NewApprovalIssuer([]byte("test-secret"))
	err := issuer.Verify(nil, "decision-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not_approved")
}

func TestApprovalIssuer_VerifyRejectsAlgNone(t *testing.T) {
	issuer := NewApprovalIssuer([]byte("test-secret"))

	claims := approvalClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "decision-1"},
		DecisionID:       "decision-1",
		ApprovedBy:       "mallory",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
	unsigned, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	forged := &contracts.GovernanceApproval{Token: unsigned, DecisionID: "decision-1"}
	err = issuer.Verify(forged, "decision-1")
	require.Error(t, err)
}
