package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/solatis/shelfkeeper/internal/core/auth"
	"github.com/solatis/shelfkeeper/internal/core/db"
	"github.com/solatis/shelfkeeper/internal/core/shelves"
	"github.com/solatis/shelfkeeper/internal/types"
)

// ShelfService is the shelf behaviour the handlers need. Implemented by
// *shelves.Service.
type ShelfService interface {
	Create(ctx context.Context, userID int64, in shelves.ShelfInput) (*types.MagicShelf, error)
	Update(ctx context.Context, userID int64, id types.ShelfID, in shelves.ShelfInput) (*types.MagicShelf, error)
	Delete(ctx context.Context, userID int64, id types.ShelfID) error
	Get(ctx context.Context, userID int64, id types.ShelfID) (*types.MagicShelf, error)
	List(ctx context.Context, userID int64) (*shelves.ShelfList, error)
	Books(ctx context.Context, userID int64, id types.ShelfID, page types.Page) (*db.BookListing, error)
	Preview(ctx context.Context, userID int64, filter json.RawMessage, page types.Page) (*db.BookListing, error)
	ShelvesForBook(ctx context.Context, userID, bookID int64) ([]types.MagicShelf, error)
	SetProgress(ctx context.Context, userID, bookID int64, in shelves.ProgressInput) (*types.Progress, error)
	DeleteBook(ctx context.Context, userID, bookID int64) error
}

// BookPage is one page of a shelf listing.
type BookPage struct {
	Books []types.Book `json:"books"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
}

// PreviewRequest is the body of POST /api/v1/shelves/preview.
type PreviewRequest struct {
	Filter json.RawMessage `json:"filter"`
}

type shelfHandler struct {
	svc    ShelfService
	logger *slog.Logger
}

func (h *shelfHandler) list(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *shelfHandler) create(c *gin.Context) {
	var in shelves.ShelfInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	shelf, err := h.svc.Create(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, shelf)
}

func (h *shelfHandler) get(c *gin.Context) {
	id, ok := shelfIDParam(c)
	if !ok {
		return
	}
	shelf, err := h.svc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

func (h *shelfHandler) update(c *gin.Context) {
	id, ok := shelfIDParam(c)
	if !ok {
		return
	}
	var in shelves.ShelfInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	shelf, err := h.svc.Update(c.Request.Context(), userID(c), id, in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, shelf)
}

func (h *shelfHandler) delete(c *gin.Context) {
	id, ok := shelfIDParam(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), userID(c), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *shelfHandler) books(c *gin.Context) {
	id, ok := shelfIDParam(c)
	if !ok {
		return
	}
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	listing, err := h.svc.Books(c.Request.Context(), userID(c), id, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bookPage(listing, page))
}

func (h *shelfHandler) preview(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}
	listing, err := h.svc.Preview(c.Request.Context(), userID(c), req.Filter, page)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bookPage(listing, page))
}

func (h *shelfHandler) shelvesForBook(c *gin.Context) {
	bookID, ok := bookIDParam(c)
	if !ok {
		return
	}
	matched, err := h.svc.ShelvesForBook(c.Request.Context(), userID(c), bookID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shelves": matched})
}

// userID returns the user set by the auth middleware.
func userID(c *gin.Context) int64 {
	id, _ := auth.UserIDFromContext(c.Request.Context())
	return id
}

func bookIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		respondBadRequest(c, "invalid book id")
		return 0, false
	}
	return id, true
}

func shelfIDParam(c *gin.Context) (types.ShelfID, bool) {
	id, err := types.ParseShelfID(c.Param("id"))
	if err != nil {
		respondBadRequest(c, "invalid shelf id")
		return "", false
	}
	return id, true
}

// pageQuery reads ?page=&size=. Missing values are zero; the service applies
// defaults and limits.
func pageQuery(c *gin.Context) (types.Page, bool) {
	var page types.Page
	for name, dest := range map[string]*int{"page": &page.Number, "size": &page.Size} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondBadRequest(c, "invalid "+name)
			return types.Page{}, false
		}
		*dest = n
	}
	return page, true
}

func bookPage(listing *db.BookListing, page types.Page) BookPage {
	return BookPage{Books: listing.Books, Total: listing.Total, Page: page.Number}
}
