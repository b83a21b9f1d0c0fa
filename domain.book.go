package main

import (
	"context"
	"strings"
)

// Book represents a book entity.
type Book struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Author        string  `json:"author"`
	ISBN          string  `json:"isbn"`
	Price         float64 `json:"price"`
	PublishedYear int     `json:"publishedYear,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// BookFilter holds the optional criteria of a book search.
// Empty fields match every book.
type BookFilter struct {
	Title  string
	Author string
	ISBN   string
}

// IsEmpty tells if no criteria is set.
func (f BookFilter) IsEmpty() bool {
	return f.Title == "" && f.Author == "" && f.ISBN == ""
}

// Match reports whether the book satisfies all criteria. Title and
// author are matched case-insensitively on substrings, isbn exactly.
func (f BookFilter) Match(book Book) bool {
	if f.Title != "" && !strings.Contains(strings.ToLower(book.Title), strings.ToLower(f.Title)) {
		return false
	}
	if f.Author != "" && !strings.Contains(strings.ToLower(book.Author), strings.ToLower(f.Author)) {
		return false
	}
	if f.ISBN != "" && NormalizeISBN(book.ISBN) != NormalizeISBN(f.ISBN) {
		return false
	}
	return true
}

// NormalizeISBN strips separators so that `978-0-13-468599-1` and
// `9780134685991` are considered the same isbn.
func NormalizeISBN(isbn string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(isbn))
}

// BookStorage defines possible operations on book entity.
type BookStorage interface {
	Add(ctx context.Context, id string, book Book) error
	GetOne(ctx context.Context, id string) (Book, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, book Book) (Book, error)
	GetAll(ctx context.Context) ([]Book, error)
	DeleteAll(ctx context.Context) error
}
