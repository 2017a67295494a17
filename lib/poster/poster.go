// Package poster turns a poster image URL into a self-contained
// data-URI artifact that can live in the store, and back into raw
// bytes for serving. No decoding beyond sniffing the container format.
package poster

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

// maxPosterBytes bounds a single poster download; the catalog's w500
// posters are well under this.
const maxPosterBytes = 5 << 20

// Service downloads and encodes poster artifacts.
type Service struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	return &Service{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// DownloadAsDataURI fetches the image at posterURL and returns it as a
// "data:<mime>;base64,<payload>" string. Any failure returns an error
// and the caller keeps a null poster.
func (s *Service) DownloadAsDataURI(ctx context.Context, posterURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, posterURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download poster: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Error("failed to close response body", slog.Any("error", err))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read poster body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty poster body")
	}

	return Encode(data), nil
}

// Encode wraps raw image bytes in a data URI, sniffing the format.
func Encode(data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", sniffImageType(data), base64.StdEncoding.EncodeToString(data))
}

// Decode unpacks a data-URI artifact into raw bytes and its mime type.
// A bare base64 payload without the data: prefix is accepted too.
func Decode(dataURI string) ([]byte, string, error) {
	payload := dataURI
	mime := "image/jpeg"

	if strings.HasPrefix(dataURI, "data:") {
		idx := strings.Index(dataURI, ";base64,")
		if idx < 0 {
			return nil, "", fmt.Errorf("not a base64 data URI")
		}
		mime = dataURI[len("data:"):idx]
		payload = dataURI[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode poster payload: %w", err)
	}
	return data, mime, nil
}

// sniffImageType looks at magic bytes only. JPEG is the default: it is
// what the index serves almost exclusively.
func sniffImageType(data []byte) string {
	if len(data) >= 3 {
		if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
			return "image/jpeg"
		}
		if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E {
			return "image/png"
		}
	}
	return "image/jpeg"
}
