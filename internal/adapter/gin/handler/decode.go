package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	apperrors "secure-user-api/pkg/errors"
)

const bodyField = "body"

// decodeStrict decodes a single JSON object from r into dst. Keys must match
// dst's json tags exactly and appear at most once. Unknown or repeated keys,
// wrong types, malformed JSON and trailing data become validation errors.
func decodeStrict(r io.Reader, dst any) error {
	allowed := jsonFieldNames(dst)
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return decodeError(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return apperrors.NewValidationError(bodyField, "request body must be a JSON object")
	}

	fields := make(map[string]json.RawMessage, len(allowed))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return decodeError(truncated(err))
		}
		key, _ := tok.(string)
		if _, ok := allowed[key]; !ok {
			return apperrors.NewValidationError(key, "extra fields not permitted")
		}
		if _, dup := fields[key]; dup {
			return apperrors.NewValidationError(key, "duplicate field")
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return decodeError(truncated(err))
		}
		fields[key] = value
	}
	if _, err := dec.Token(); err != nil {
		return decodeError(truncated(err))
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return apperrors.NewValidationError(bodyField, "request body must contain a single JSON object")
	}

	canonical, err := json.Marshal(fields)
	if err != nil {
		return decodeError(err)
	}
	exact := json.NewDecoder(bytes.NewReader(canonical))
	exact.DisallowUnknownFields()
	if err := exact.Decode(dst); err != nil {
		return decodeError(err)
	}
	return nil
}

// jsonFieldNames lists the exact json keys of the struct dst points to.
func jsonFieldNames(dst any) map[string]struct{} {
	t := reflect.TypeOf(dst)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		names[name] = struct{}{}
	}
	return names
}

// truncated reports an EOF inside an open object as a malformed body.
func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

func decodeError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		return err
	case errors.Is(err, io.EOF):
		return apperrors.NewValidationError(bodyField, "request body is required")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return apperrors.NewValidationError(bodyField, "request body must be valid JSON")
	case errors.As(err, &typeErr):
		if typeErr.Field == "" {
			return apperrors.NewValidationError(bodyField, "request body must be a JSON object")
		}
		return apperrors.NewValidationError(typeErr.Field, fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type.Kind().String())))
	}

	return apperrors.NewValidationError(bodyField, "request body is invalid")
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "string"
	case "struct", "map":
		return "JSON object"
	default:
		return "valid value"
	}
}
