package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/sakif/social-host/internal/apperror"
)

// multipartMemory is how much of a multipart body is held in memory; the
// rest spills to temporary files that net/http removes after the request.
const multipartMemory = 1 << 20

// formFields is the flat set of string fields a POST body carried.
type formFields map[string]string

// readFields accepts the three body encodings clients use:
//
//	application/json                  {"vfile": "...", "new-url": "..."}
//	application/x-www-form-urlencoded vfile=...&new-url=...
//	multipart/form-data               vfile=... plus file parts
//
// Non-string JSON values are ignored, as if the field were absent. The body
// must already be wrapped in http.MaxBytesReader; hitting that cap becomes a
// payload-too-large error.
func readFields(r *http.Request) (formFields, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		return readJSONFields(r.Body)

	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(err)
		}

	default:
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
	}

	fields := formFields{}
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields, nil
}

func readJSONFields(body io.Reader) (formFields, error) {
	var raw map[string]any
	if err := json.NewDecoder(body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return formFields{}, nil
		}
		return nil, bodyError(err)
	}

	fields := formFields{}
	for key, v := range raw {
		if s, ok := v.(string); ok {
			fields[key] = s
		}
	}
	return fields, nil
}

// bodyError turns a body read/parse failure into an AppError.
func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperror.PayloadTooLarge(fmt.Sprintf("Request body too large. Maximum size is %d bytes", tooBig.Limit))
	}
	return apperror.ValidationFailed(apperror.CodeBadRequest, "", "Invalid request body")
}
