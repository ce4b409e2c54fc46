package dealing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/dealerdesk/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// shareTokenBytes is the entropy of a raw share token
const shareTokenBytes = 32

// DocumentShareLink lets a third party read an issued document without a
// login. The raw token is returned exactly once at creation; only its
// SHA-256 hash is persisted, so a leaked database cannot mint valid links.
type DocumentShareLink struct {
	shared.BaseEntity
	DealerID   uuid.UUID
	DocumentID uuid.UUID
	TokenHash  string
	ExpiresAt  *time.Time
}

// TableName returns the table name for GORM
func (DocumentShareLink) TableName() string {
	return "document_share_links"
}

// HashShareToken returns the hex SHA-256 digest of a raw token
func HashShareToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}

// NewDocumentShareLink creates a share link for an issued document and
// returns the link plus the raw token to hand to the caller.
func NewDocumentShareLink(doc *SalesDocument, expiresAt *time.Time) (*DocumentShareLink, string, error) {
	if !doc.IsIssued() {
		return nil, "", shared.NewDomainError("INVALID_STATE", "Only issued documents can be shared")
	}

	buf := make([]byte, shareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, "", fmt.Errorf("generate share token: %w", err)
	}
	rawToken := base64.RawURLEncoding.EncodeToString(buf)

	link := &DocumentShareLink{
		BaseEntity: shared.NewBaseEntity(),
		DealerID:   doc.TenantID,
		DocumentID: doc.ID,
		TokenHash:  HashShareToken(rawToken),
		ExpiresAt:  expiresAt,
	}
	return link, rawToken, nil
}

// Matches compares a presented raw token against the stored hash in constant
// time
func (l *DocumentShareLink) Matches(rawToken string) bool {
	presented := HashShareToken(rawToken)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(l.TokenHash)) == 1
}

// IsExpired reports whether the link has lapsed
func (l *DocumentShareLink) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}
