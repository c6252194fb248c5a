package httpx

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/videotube/internal/filex"
)

// saveFormFile copies the multipart file in field to a temp file under dir
// and returns its path. A missing field yields "" and no error.
func saveFormFile(r *http.Request, field, dir string) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	return filex.SaveTemp(dir, safeExt(header.Filename), file)
}

// safeExt keeps a short alphanumeric extension of name.
func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
