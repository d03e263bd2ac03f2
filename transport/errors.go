package transport

import (
	"github.com/goliatone/go-community/core"
	goerrors "github.com/goliatone/go-errors"
)

func transportError(message string, category goerrors.Category, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(core.ServiceHTTPStatus(category)).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportWrapError(source error, category goerrors.Category, message string, metadata map[string]any) error {
	if source == nil {
		return transportError(message, category, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(core.ServiceHTTPStatus(category)).
		WithTextCode(transportTextCode(category))
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryExternal:
		return core.ErrorDeliveryFailed
	default:
		return core.ErrorInternal
	}
}
