package httpadapter

import (
	"net/http"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput),
		domain.IsKind(err, domain.ErrArgument),
		domain.IsKind(err, domain.ErrInvalidConfiguration),
		domain.IsKind(err, domain.ErrUnsupportedStrategy):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrHistoryConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrModelUnresponsive):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrTemporary), domain.IsKind(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
