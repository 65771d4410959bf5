// internal/api/items.go
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"libraryledger/internal/catalog"
	"libraryledger/internal/library"
)

type itemRequest struct {
	Kind        catalog.Kind `json:"kind"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	Illustrator string       `json:"illustrator"`
	PublishedOn string       `json:"published_on"`
	Available   *bool        `json:"available"`
}

func (req itemRequest) item() (*catalog.Item, error) {
	if err := checkFields(map[string]string{
		"title":       req.Title,
		"author":      req.Author,
		"illustrator": req.Illustrator,
	}); err != nil {
		return nil, err
	}
	if req.Kind != catalog.KindPeriodical && req.Author == "" {
		return nil, badRequest("author is required")
	}

	switch req.Kind {
	case catalog.KindBook:
		available := true
		if req.Available != nil {
			available = *req.Available
		}
		return catalog.NewBook(req.Title, req.Author, available)
	case catalog.KindComic:
		return catalog.NewComic(req.Title, req.Author, req.Illustrator)
	case catalog.KindReference:
		return catalog.NewReference(req.Title, req.Author)
	case catalog.KindPeriodical:
		published, err := time.Parse(time.DateOnly, req.PublishedOn)
		if err != nil {
			return nil, badRequest("published_on must be YYYY-MM-DD")
		}
		return catalog.NewPeriodical(req.Title, published)
	}
	return nil, badRequest("unknown item kind " + string(req.Kind))
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(h.lib.Items()))
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	books := h.lib.LendableBooks()
	if r.URL.Query().Get("available") == "true" {
		books = h.lib.AvailableBooks()
	}
	writeJSON(w, http.StatusOK, nonNil(books))
}

func (h *Handler) handleSearchItems(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		http.Error(w, "missing title", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	it := h.lib.FindItemByTitle(title)
	if it == nil {
		writeError(w, library.ErrItemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	it, err := h.itemFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	it, err := req.item()
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Loan records refer to books by title, so titles must stay unique.
	if h.lib.FindItemByTitle(it.Title) != nil {
		writeError(w, library.ErrDuplicateTitle)
		return
	}
	h.lib.AddItem(it)
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	it, err := h.itemFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	for _, loan := range h.lib.ActiveLoans() {
		if loan.Book == it {
			writeError(w, library.ErrItemOnLoan)
			return
		}
	}
	if err := h.lib.RemoveItem(it); err != nil {
		writeError(w, err)
		return
	}
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) itemFromPath(r *http.Request) (*catalog.Item, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return nil, badRequest("invalid item ID")
	}
	it := h.lib.FindItem(id)
	if it == nil {
		return nil, library.ErrItemNotFound
	}
	return it, nil
}
