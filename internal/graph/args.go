package graph

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/99designs/gqlgen/graphql"

	"github.com/nailerHeum/AjouNICE/internal/apperrors"
	"github.com/nailerHeum/AjouNICE/internal/storage"
)

// argumentError reports a malformed or missing argument.
type argumentError struct {
	name   string
	reason string
}

func (e *argumentError) Error() string {
	return fmt.Sprintf("argument %q %s", e.name, e.reason)
}

func (e *argumentError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func optionalInt(args map[string]any, name string) (*int64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := toInt64(v)
	if !ok {
		return nil, &argumentError{name: name, reason: "must be an integer"}
	}
	return &n, nil
}

func intArg(args map[string]any, name string) (int64, error) {
	n, err := optionalInt(args, name)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, &argumentError{name: name, reason: "is required"}
	}
	return *n, nil
}

func optionalString(args map[string]any, name string) (*string, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, &argumentError{name: name, reason: "must be a string"}
	}
	return &s, nil
}

func stringArg(args map[string]any, name string) (string, error) {
	s, err := optionalString(args, name)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", &argumentError{name: name, reason: "is required"}
	}
	return *s, nil
}

func uploadArg(args map[string]any, name string) (storage.Upload, error) {
	var up graphql.Upload
	switch v := args[name].(type) {
	case graphql.Upload:
		up = v
	case *graphql.Upload:
		if v == nil {
			return storage.Upload{}, &argumentError{name: name, reason: "is required"}
		}
		up = *v
	default:
		return storage.Upload{}, &argumentError{name: name, reason: "must be a file upload"}
	}
	if up.File == nil {
		return storage.Upload{}, &argumentError{name: name, reason: "has no content"}
	}
	return storage.Upload{
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Size:        up.Size,
		Body:        up.File,
	}, nil
}
