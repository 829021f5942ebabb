package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bijbelzoek/api/internal/export"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Hint    string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

const formatHint = "Gebruik /api/export/pdf of /api/export/docx."

var errHistoryDisabled = domainError(http.StatusServiceUnavailable, "HISTORY_DISABLED", "Exportgeschiedenis is niet geconfigureerd", nil)

// mapError turns an export failure into a response. Render failures carry
// the underlying error text as details so the client can show it.
func mapError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return domainError(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", fmt.Sprintf("Verzoek groter dan %d bytes", tooLarge.Limit), nil)
	case errors.Is(err, export.ErrUnsupportedFormat):
		e := domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Onbekend exportformaat.", nil)
		e.Hint = formatHint
		return e
	case errors.Is(err, export.ErrJobNotFound):
		return domainError(http.StatusNotFound, "NOT_FOUND", "Exporttaak niet gevonden", nil)
	case errors.Is(err, export.ErrQueueTimeout):
		return domainError(http.StatusServiceUnavailable, "QUEUE_TIMEOUT", "De PDF-wachtrij is te lang; probeer het later opnieuw", err.Error())
	case errors.Is(err, export.ErrJobCancelled):
		return domainError(http.StatusConflict, "JOB_CANCELLED", "De export is geannuleerd", nil)
	case errors.Is(err, export.ErrRendererNotConfigured):
		return domainError(http.StatusInternalServerError, "RENDERER_UNAVAILABLE", "Dit exportformaat is niet geconfigureerd", err.Error())
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return domainError(http.StatusInternalServerError, "PDF_UNAVAILABLE", "PDF-export is niet beschikbaar", err.Error())
	case errors.Is(err, context.Canceled):
		return domainError(http.StatusServiceUnavailable, "CANCELLED", "Verzoek afgebroken", nil)
	}
	return domainError(http.StatusInternalServerError, "EXPORT_FAILED", "Export mislukt", err.Error())
}
