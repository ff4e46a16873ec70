package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Storage persists participant photos and manual payment proof attachments
// and returns a stable URL for each stored object.
type Storage interface {
	SaveBase64Image(ctx context.Context, data string) (string, error)
	SaveProof(ctx context.Context, orderID string, content []byte, contentType string) (string, error)
}

// NopStorage ignores attachments; used in tests and when no backend is
// configured.
type NopStorage struct{}

func (NopStorage) SaveBase64Image(ctx context.Context, data string) (string, error) {
	return "", nil
}

func (NopStorage) SaveProof(ctx context.Context, orderID string, content []byte, contentType string) (string, error) {
	return "", nil
}

// DecodeBase64Image splits a data URI (or bare base64 string) into content
// type and raw bytes.
func DecodeBase64Image(data string) (string, []byte, error) {
	contentType := "image/jpeg"
	payload := data
	if strings.HasPrefix(data, "data:") {
		parts := strings.SplitN(data, ",", 2)
		if len(parts) != 2 {
			return "", nil, errors.New("malformed data URI")
		}
		meta := strings.TrimPrefix(parts[0], "data:")
		contentType = strings.TrimSuffix(strings.SplitN(meta, ";", 2)[0], ";")
		payload = parts[1]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}
	return contentType, raw, nil
}
