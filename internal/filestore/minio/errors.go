package minio

import (
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"github.com/koustreak/contentstats/internal/errs"
)

// S3 error codes are more specific than the HTTP status, so they win.
var kindByCode = map[string]errs.ErrKind{
	"NoSuchBucket":          errs.ErrKindNotFound,
	"NoSuchKey":             errs.ErrKindNotFound,
	"AccessDenied":          errs.ErrKindPermissionDenied,
	"InvalidAccessKeyId":    errs.ErrKindPermissionDenied,
	"SignatureDoesNotMatch": errs.ErrKindPermissionDenied,
	"InvalidBucketName":     errs.ErrKindInvalidInput,
	"InvalidObjectName":     errs.ErrKindInvalidInput,
	"KeyTooLongError":       errs.ErrKindInvalidInput,
	"EntityTooLarge":        errs.ErrKindInvalidInput,
	"RequestTimeout":        errs.ErrKindTimeout,
	"SlowDown":              errs.ErrKindTimeout,
}

var kindByStatus = map[int]errs.ErrKind{
	http.StatusNotFound:     errs.ErrKindNotFound,
	http.StatusForbidden:    errs.ErrKindPermissionDenied,
	http.StatusUnauthorized: errs.ErrKindPermissionDenied,
	http.StatusBadRequest:   errs.ErrKindInvalidInput,
}

// mapError classifies minio-go errors. Anything that is not an S3 error
// response is a transport failure.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	if errs.Interrupted(err) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if errors.As(err, &resp) {
		if kind, ok := kindByCode[resp.Code]; ok {
			return errs.Wrap(kind, msg, err)
		}
		if kind, ok := kindByStatus[resp.StatusCode]; ok {
			return errs.Wrap(kind, msg, err)
		}
	}
	return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
}
