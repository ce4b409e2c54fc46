package dealing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDocumentShareLink(t *testing.T) {
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 1, testIssueContext())
	require.NoError(t, err)

	link, rawToken, err := NewDocumentShareLink(doc, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rawToken)
	assert.NotEqual(t, rawToken, link.TokenHash)
	assert.Equal(t, doc.ID, link.DocumentID)
	assert.Equal(t, doc.DealerID(), link.DealerID)

	// The stored hash must be recomputable from the presented token
	assert.Equal(t, HashShareToken(rawToken), link.TokenHash)
	assert.True(t, link.Matches(rawToken))
	assert.False(t, link.Matches("forged-token"))
}

func TestNewDocumentShareLink_RequiresIssued(t *testing.T) {
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 1, testIssueContext())
	require.NoError(t, err)
	require.NoError(t, doc.Void("mistake"))

	_, _, err = NewDocumentShareLink(doc, nil)
	assert.ErrorContains(t, err, "issued documents")
}

func TestShareLink_Expiry(t *testing.T) {
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 1, testIssueContext())
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	link, _, err := NewDocumentShareLink(doc, &past)
	require.NoError(t, err)
	assert.True(t, link.IsExpired(time.Now()))

	link2, _, err := NewDocumentShareLink(doc, nil)
	require.NoError(t, err)
	assert.False(t, link2.IsExpired(time.Now()))
}

func TestShareLink_TokensAreUnique(t *testing.T) {
	deal := invoicableDeal(t)
	doc, err := IssueInvoice(deal, 1, testIssueContext())
	require.NoError(t, err)

	seen := make(map[string]bool)
	for range 20 {
		_, raw, err := NewDocumentShareLink(doc, nil)
		require.NoError(t, err)
		assert.False(t, seen[raw])
		seen[raw] = true
	}
}
