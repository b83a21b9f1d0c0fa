package main

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// searchSegment is the static path segment sharing its position with ids.
const searchSegment = "search"

func (api *APIHandler) CreateBook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var book Book
	if err := decodeAndValidate(r, &book); err != nil {
		api.sendError(r.Context(), w, "failed to create the book", err)
		return
	}

	book, err := api.bookService.Add(r.Context(), book)
	if err != nil {
		api.sendError(r.Context(), w, "failed to create the book", err, zap.String("book.isbn", book.ISBN))
		return
	}
	api.logger.Info("success to create book", zap.String("book.id", book.ID), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusCreated, "Book created successfully.", nil, book)
}

//nolint:bodyclose
func (api *APIHandler) GetAllBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	// listing may take longer than the default write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Now().Add(api.config.Server.LongRequestWriteTimeout)); err != nil {
		api.logger.Debug("http: failed to update the write deadline", zap.String("request.id", requestID), zap.Error(err))
	}

	books, err := api.bookService.GetAll(r.Context())
	if err != nil {
		api.sendError(r.Context(), w, "failed to get all books", err)
		return
	}
	api.logger.Info("success to get all books", zap.String("request.id", requestID))
	total := len(books)
	api.sendResponse(r.Context(), w, http.StatusOK, "All books fetched successfully.", &total, books)
}

// SearchBooks lists books filtered by the `title`, `author` and `isbn` query parameters.
func (api *APIHandler) SearchBooks(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	filter := BookFilter{
		Title:  q.Get("title"),
		Author: q.Get("author"),
		ISBN:   q.Get("isbn"),
	}
	books, err := api.bookService.Search(r.Context(), filter)
	if err != nil {
		api.sendError(r.Context(), w, "failed to search books", err)
		return
	}
	total := len(books)
	api.sendResponse(r.Context(), w, http.StatusOK, "Books searched successfully.", &total, books)
}

// GetOneBook serves a single book. The `search` segment is routed to SearchBooks.
func (api *APIHandler) GetOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == searchSegment {
		api.SearchBooks(w, r, ps)
		return
	}
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.sendError(r.Context(), w, "book id provided is not valid", ErrInvalidID, zap.String("book.id", id))
		return
	}
	book, err := api.bookService.GetOne(r.Context(), id)
	if err != nil {
		api.sendError(r.Context(), w, "failed to get the book", err, zap.String("book.id", id))
		return
	}
	api.logger.Info("success to get book", zap.String("book.id", id), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusOK, "Book fetched successfully.", nil, book)
}

func (api *APIHandler) DeleteOneBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.sendError(r.Context(), w, "book id provided is not valid", ErrInvalidID, zap.String("book.id", id))
		return
	}
	if _, err := api.bookService.Delete(r.Context(), id); err != nil {
		api.sendError(r.Context(), w, "failed to delete the book", err, zap.String("book.id", id))
		return
	}
	api.logger.Info("success to delete book", zap.String("book.id", id), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendNoContent(r.Context(), w)
}

// UpdateBook replaces the book identified in the path. Any id in the payload is ignored.
func (api *APIHandler) UpdateBook(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, BookIDPrefix); !ok {
		api.sendError(r.Context(), w, "book id provided is not valid", ErrInvalidID, zap.String("book.id", id))
		return
	}
	var book Book
	if err := decodeAndValidate(r, &book); err != nil {
		api.sendError(r.Context(), w, "failed to update the book", err, zap.String("book.id", id))
		return
	}

	book, err := api.bookService.Update(r.Context(), id, book)
	if err != nil {
		api.sendError(r.Context(), w, "failed to update the book", err, zap.String("book.id", id))
		return
	}
	api.logger.Info("success to update book", zap.String("book.id", book.ID), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusOK, "Book updated successfully.", nil, book)
}
