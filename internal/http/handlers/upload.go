package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"imagestudio/internal/domain"
)

// DefaultUploadMaxBytes caps a single uploaded file.
const DefaultUploadMaxBytes int64 = 10 << 20

// multipartMemory is how much of a form is buffered in memory before the
// standard library spills parts to temporary files.
const multipartMemory = 32 << 20

var allowedExtensions = map[string]bool{
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedMIMEs = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// FileField names a multipart file field and how many files it may carry.
type FileField struct {
	Name string
	Max  int
}

// Form is a parsed multipart request whose files are staged on disk.
type Form struct {
	Prompt  string
	Options domain.Options
	Values  url.Values
	Files   map[string][]domain.InputImage
}

// StagedPaths lists every file staged for the form.
func (f *Form) StagedPaths() []string {
	if f == nil {
		return nil
	}
	var paths []string
	for _, images := range f.Files {
		for _, img := range images {
			if img.Path != "" {
				paths = append(paths, img.Path)
			}
		}
	}
	return paths
}

// UploadIngest validates uploaded images and stages them under a single
// incoming directory. Staged files belong to the operation they were uploaded
// for; the orchestrator removes them when it finishes.
type UploadIngest struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewUploadIngest(dir string, maxBytes int64) (*UploadIngest, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("upload: incoming directory is required")
	}
	if maxBytes <= 0 {
		maxBytes = DefaultUploadMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("upload: ensure incoming directory: %w", err)
	}
	return &UploadIngest{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

// Dir returns the staging directory.
func (u *UploadIngest) Dir() string { return u.dir }

// Parse reads a multipart request, accepting files only in the named fields.
// On error nothing is left staged.
func (u *UploadIngest) Parse(w http.ResponseWriter, r *http.Request, fields ...FileField) (*Form, error) {
	maxFiles := 0
	allowed := make(map[string]int, len(fields))
	for _, f := range fields {
		allowed[f.Name] = f.Max
		maxFiles += f.Max
	}
	r.Body = http.MaxBytesReader(w, r.Body, u.maxBytes*int64(maxFiles)+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ValidationErrorf("upload is too large; each image may be at most %s", formatBytes(u.maxBytes))
		}
		return nil, domain.NewError(domain.CodeValidation, "request must be multipart/form-data", err)
	}
	defer r.MultipartForm.RemoveAll()

	form := &Form{
		Prompt: strings.TrimSpace(r.FormValue("prompt")),
		Values: url.Values(r.MultipartForm.Value),
		Files:  make(map[string][]domain.InputImage),
	}
	opts, err := parseOptions(r.FormValue("options"))
	if err != nil {
		return nil, err
	}
	form.Options = opts

	for field, headers := range r.MultipartForm.File {
		limit, ok := allowed[field]
		if !ok {
			u.Discard(form)
			return nil, domain.ValidationErrorf("unexpected file field %q", field)
		}
		if len(headers) > limit {
			u.Discard(form)
			return nil, domain.ValidationErrorf("field %q accepts at most %d file(s), got %d", field, limit, len(headers))
		}
		for _, fh := range headers {
			img, err := u.stage(field, fh)
			if err != nil {
				u.Discard(form)
				return nil, err
			}
			form.Files[field] = append(form.Files[field], img)
		}
	}
	return form, nil
}

// Discard removes every file staged for form.
func (u *UploadIngest) Discard(form *Form) {
	for _, path := range form.StagedPaths() {
		_ = os.Remove(path)
	}
}

func (u *UploadIngest) stage(field string, fh *multipart.FileHeader) (domain.InputImage, error) {
	if fh.Size > u.maxBytes {
		return domain.InputImage{}, domain.ValidationErrorf("%s is larger than %s", fh.Filename, formatBytes(u.maxBytes))
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedExtensions[ext] {
		return domain.InputImage{}, domain.ValidationErrorf("%s: only jpeg, jpg, png, gif and webp images are accepted", fh.Filename)
	}
	f, err := fh.Open()
	if err != nil {
		return domain.InputImage{}, domain.NewError(domain.CodeValidation, "could not read "+fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, u.maxBytes+1))
	if err != nil {
		return domain.InputImage{}, domain.NewError(domain.CodeValidation, "could not read "+fh.Filename, err)
	}
	if int64(len(data)) > u.maxBytes {
		return domain.InputImage{}, domain.ValidationErrorf("%s is larger than %s", fh.Filename, formatBytes(u.maxBytes))
	}
	detected := mimetype.Detect(data)
	if !isAllowedMIME(detected) {
		return domain.InputImage{}, domain.ValidationErrorf("%s is not a supported image (detected %s)", fh.Filename, detected.String())
	}

	name := fmt.Sprintf("%s-%d-%s%s", field, u.now().UnixMilli(), uuid.NewString()[:8], ext)
	path := filepath.Join(u.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return domain.InputImage{}, domain.NewError(domain.CodeInternal, "could not stage upload", err)
	}
	return domain.InputImage{
		Path:     path,
		Filename: fh.Filename,
		MIME:     detected.String(),
		Data:     data,
	}, nil
}

func isAllowedMIME(m *mimetype.MIME) bool {
	for _, allowed := range allowedMIMEs {
		if m.Is(allowed) {
			return true
		}
	}
	return false
}

// parseOptions decodes the options form value. Unknown keys are rejected so
// a misspelt option does not silently fall back to its default.
func parseOptions(raw string) (domain.Options, error) {
	var opts domain.Options
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return opts, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		return domain.Options{}, domain.NewError(domain.CodeValidation, "options must be a JSON object of known settings: "+err.Error(), err)
	}
	return opts, nil
}

func formatBytes(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}
