package admin

import (
	"context"
	"errors"
	"net/http"

	"cloud.google.com/go/storage"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "github.com/moderniselife/GFM/internal/common/errors"
)

// translate maps SDK errors onto application error kinds. what names the failing resource.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}

	switch {
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist), auth.IsUserNotFound(err):
		return apperrors.NotFound(what + " not found")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout(what+" timed out", err)
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			return apperrors.NotFound(what + " not found")
		case codes.AlreadyExists, codes.Aborted:
			return apperrors.Conflict(what + ": " + st.Message())
		case codes.DeadlineExceeded:
			return apperrors.Timeout(what+" timed out", err)
		case codes.PermissionDenied, codes.Unauthenticated:
			return apperrors.External("Permission denied for "+what+": "+st.Message(), err)
		case codes.InvalidArgument, codes.FailedPrecondition:
			return apperrors.Precondition(what + ": " + st.Message())
		}
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return apperrors.NotFound(what + " not found")
		case http.StatusConflict, http.StatusPreconditionFailed:
			return apperrors.Conflict(what + ": " + gerr.Message)
		case http.StatusBadRequest:
			return apperrors.Precondition(what + ": " + gerr.Message)
		case http.StatusForbidden, http.StatusUnauthorized:
			return apperrors.External("Permission denied for "+what+": "+gerr.Message, err)
		}
	}
	return apperrors.External(what+" request failed", err)
}
