package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/auth"
)

func requireUser(r *http.Request) (uuid.UUID, *AppError) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, ErrInvalidRequest
	}
	return id, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxPageSize)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
