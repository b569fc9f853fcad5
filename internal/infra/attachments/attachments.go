// Package attachments resolves message attachment refs into inlined image
// payloads for the provider adapters. Refs are paths relative to a single
// attachments root; anything resolving outside the root is rejected.
package attachments

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hearthchat/hearth/internal/provider"
)

// mediaTypes maps supported image extensions to their MIME types. Refs with
// any other extension are not images and are skipped, not errors.
var mediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// Reader loads image attachments from a directory tree.
type Reader struct {
	root string
}

// NewReader returns a Reader rooted at dir.
func NewReader(dir string) *Reader {
	return &Reader{root: dir}
}

// ReadImages implements provider.ImageReader. Non-image refs are silently
// skipped; a missing or unreadable image ref fails the whole batch so the
// user learns the attachment is gone before the request is sent.
func (r *Reader) ReadImages(refs []string) ([]provider.ImageData, error) {
	var out []provider.ImageData
	for _, ref := range refs {
		mediaType, ok := mediaTypes[strings.ToLower(filepath.Ext(ref))]
		if !ok {
			continue
		}
		path, err := r.resolve(ref)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("attachments: read %s: %w", ref, err)
		}
		out = append(out, provider.ImageData{
			MediaType:  mediaType,
			Base64Data: base64.StdEncoding.EncodeToString(data),
		})
	}
	return out, nil
}

// resolve joins ref onto the root and rejects any path escaping it.
func (r *Reader) resolve(ref string) (string, error) {
	if filepath.IsAbs(ref) {
		return "", fmt.Errorf("attachments: absolute ref %q rejected", ref)
	}
	path := filepath.Join(r.root, filepath.Clean(ref))
	rel, err := filepath.Rel(r.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("attachments: ref %q escapes the attachments root", ref)
	}
	return path, nil
}
