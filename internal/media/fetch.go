package media

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// fetch downloads a remote image and determines its extension, preferring
// the image/* content type and falling back to the URL path.
func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("%w: unexpected status %s", ErrFetch, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read body: %w", ErrFetch, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if ext := extFromContentType(contentType); ext != "" {
		return data, ext, nil
	}
	if ext := extFromURL(rawURL); ext != "" {
		return data, ext, nil
	}
	if contentType != "" {
		return nil, "", fmt.Errorf("%w: content type %q", ErrNotAnImage, contentType)
	}
	return nil, "", fmt.Errorf("%w: no content type and no extension", ErrImageNotFound)
}

var subtypeAliases = map[string]string{
	"pjpeg":    "jpeg",
	"x-ms-bmp": "bmp",
	"x-png":    "png",
	"x-emf":    "emf",
	"x-wmf":    "wmf",
}

func extFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	subtype, ok := strings.CutPrefix(mediaType, "image/")
	if !ok || subtype == "" {
		return ""
	}
	// image/svg+xml -> svg
	subtype, _, _ = strings.Cut(subtype, "+")
	if alias, ok := subtypeAliases[subtype]; ok {
		return alias
	}
	return subtype
}

func extFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return normalizeExt(path.Ext(u.Path))
}
