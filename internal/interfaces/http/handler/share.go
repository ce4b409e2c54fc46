package handler

import (
	dealingapp "github.com/dealerdesk/backend/internal/application/dealing"
	"github.com/gin-gonic/gin"
)

// ShareHandler serves documents through unauthenticated share links.
// There is no tenant context on these routes; the token is the credential.
type ShareHandler struct {
	BaseHandler
	documentService *dealingapp.DocumentService
}

// NewShareHandler creates a new ShareHandler
func NewShareHandler(documentService *dealingapp.DocumentService) *ShareHandler {
	return &ShareHandler{
		documentService: documentService,
	}
}

// Resolve returns the document behind a share token. Unknown, expired
// and revoked tokens are all answered with the same not-found error so
// the endpoint gives nothing away.
func (h *ShareHandler) Resolve(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		h.NotFound(c, "Document not found")
		return
	}

	doc, err := h.documentService.ResolveShareToken(c.Request.Context(), token)
	if err != nil {
		h.NotFound(c, "Document not found")
		return
	}

	h.Success(c, doc)
}
