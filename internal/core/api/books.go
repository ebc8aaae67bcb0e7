package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solatis/shelfkeeper/internal/core/shelves"
)

// setProgress replaces the caller's reading progress for a book.
func (h *shelfHandler) setProgress(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	var in shelves.ProgressInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.SetProgress(c.Request.Context(), userID(c), bookID, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// deleteBook soft-deletes a book; administrators only.
func (h *shelfHandler) deleteBook(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteBook(c.Request.Context(), userID(c), bookID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
