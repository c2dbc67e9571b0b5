// Package upload decodes multipart image batches into stored files.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"product-catalog/internal/storage"
)

// FieldImages is the multipart field carrying gallery files.
const FieldImages = "images"

const maxMemory = 32 << 20

// Kind classifies decoder failures. The set is closed.
type Kind int

const (
	// KindDecoderInternal covers malformed bodies, size and count limits.
	KindDecoderInternal Kind = iota + 1
	// KindExtensionRejected means a file is not a png or jpeg image.
	KindExtensionRejected
	// KindUnknown covers any other failure, such as the file store refusing a write.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindDecoderInternal:
		return "decoder_internal"
	case KindExtensionRejected:
		return "extension_rejected"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by this package.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

var allowedMimeTypes = []string{"image/png", "image/jpeg"}

// ParseForm reads a multipart body of at most maxBytes.
func ParseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, &Error{Kind: KindDecoderInternal, Message: "File too large", Err: err}
		}
		return nil, &Error{Kind: KindDecoderInternal, Message: "Malformed multipart body", Err: err}
	}

	return r.MultipartForm, nil
}

// Files returns the gallery files of a parsed form.
func Files(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	return form.File[FieldImages]
}

// Decoder stores image uploads in a FileStore.
type Decoder struct {
	store    storage.FileStore
	maxFiles int
	logger   *zap.Logger
}

func NewDecoder(store storage.FileStore, maxFiles int, logger *zap.Logger) *Decoder {
	return &Decoder{store: store, maxFiles: maxFiles, logger: logger}
}

// Decode stores files in order and returns their stored names. Either every
// file is stored or none is: on failure the files already written for this
// batch are removed again.
func (d *Decoder) Decode(ctx context.Context, files []*multipart.FileHeader) ([]string, error) {
	if d.maxFiles > 0 && len(files) > d.maxFiles {
		return nil, &Error{Kind: KindDecoderInternal, Message: fmt.Sprintf("Too many files, at most %d allowed", d.maxFiles)}
	}

	exts := make([]string, len(files))
	for i, fh := range files {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if _, ok := allowedExtensions[ext]; !ok {
			return nil, &Error{Kind: KindExtensionRejected, Message: "Only .png, .jpg and .jpeg format allowed!"}
		}
		exts[i] = ext
	}

	stored := make([]string, 0, len(files))
	for i, fh := range files {
		name, err := d.storeOne(ctx, fh, exts[i])
		if err != nil {
			d.rollback(stored)
			return nil, err
		}
		stored = append(stored, name)
	}

	return stored, nil
}

func (d *Decoder) storeOne(ctx context.Context, fh *multipart.FileHeader, ext string) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", &Error{Kind: KindDecoderInternal, Message: "Failed to read upload", Err: err}
	}
	defer f.Close()

	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		return "", &Error{Kind: KindDecoderInternal, Message: "Failed to read upload", Err: err}
	}
	if !mimetype.EqualsAny(mtype.String(), allowedMimeTypes...) {
		return "", &Error{Kind: KindExtensionRejected, Message: "Only .png, .jpg and .jpeg format allowed!"}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", &Error{Kind: KindDecoderInternal, Message: "Failed to read upload", Err: err}
	}

	name, err := d.store.Store(ctx, ext, f)
	if err != nil {
		return "", &Error{Kind: KindUnknown, Message: "Failed to store upload", Err: err}
	}

	return name, nil
}

// rollback runs on a context detached from the request so a cancelled upload still cleans up.
func (d *Decoder) rollback(names []string) {
	for _, name := range names {
		if err := d.store.Delete(context.Background(), name); err != nil {
			d.logger.Warn("Failed to remove upload of rejected batch", zap.String("file", name), zap.Error(err))
		}
	}
}
