package httpadapter

import (
	"net/http"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrBookNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStoreUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
