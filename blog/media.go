package blog

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const MaxImageSize = 5 << 20

var (
	ErrNotAnImage    = errors.New("upload is not an image")
	ErrImageTooLarge = fmt.Errorf("image is larger than %d MB", MaxImageSize>>20)
)

// imageMessage is the form error shown for a rejected upload.
func imageMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotAnImage):
		return "Upload a valid image. The file you uploaded was either not an image or a corrupted image."
	case errors.Is(err, ErrImageTooLarge):
		return fmt.Sprintf("The image must be at most %d MB.", MaxImageSize>>20)
	default:
		return "The image could not be read."
	}
}

// Upload is an image that passed validation but is not stored yet.
type Upload struct {
	data []byte
	mime *mimetype.MIME
}

// ReadImage reads an uploaded file and checks by content that it is an image.
func ReadImage(src io.Reader) (*Upload, error) {
	data, err := io.ReadAll(io.LimitReader(src, MaxImageSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, ErrNotAnImage
	}
	return &Upload{data: data, mime: mt}, nil
}

func (u *Upload) ContentType() string {
	return u.mime.String()
}

// Save writes the image under mediaDir/posts and returns its path relative
// to mediaDir, which is what a Post stores.
func (u *Upload) Save(mediaDir string) (string, error) {
	name := path.Join("posts", uuid.New().String()+u.mime.Extension())
	dst := filepath.Join(mediaDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(dst, u.data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return name, nil
}

// mediaFS serves files from the media dir but never lists a directory.
type mediaFS struct {
	root http.FileSystem
}

func (m mediaFS) Open(name string) (http.File, error) {
	f, err := m.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
