// Package media stores admin uploads for the gallery and package pages.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/nfnt/resize"
)

const (
	MaxWidth    = 1600
	ThumbWidth  = 400
	jpegQuality = 82

	// MaxUploadBytes caps a single upload, reels included.
	MaxUploadBytes = 50 << 20
)

var (
	ErrUnsupported = errors.New("unsupported file type")
	ErrTooLarge    = errors.New("file too large")
)

var reelExt = map[string]bool{".mp4": true, ".mov": true, ".webm": true}

// Stored describes a saved upload by its public URLs.
type Stored struct {
	Type      string `json:"type"` // photo | reel
	Src       string `json:"src"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// Store writes uploads under Dir and returns URLs under URLPrefix.
type Store struct {
	Dir       string
	URLPrefix string
}

func NewStore(dir, urlPrefix string) *Store {
	return &Store{Dir: dir, URLPrefix: strings.TrimRight(urlPrefix, "/")}
}

// Save stores the upload named filename.  JPEG and PNG images are scaled to
// at most MaxWidth and get a ThumbWidth thumbnail, both re-encoded as
// JPEG.  Video reels are copied as they are.
func (s *Store) Save(filename string, r io.Reader) (Stored, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Stored{}, err
	}
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Stored{}, err
	}
	if len(data) > MaxUploadBytes {
		return Stored{}, ErrTooLarge
	}

	var img image.Image
	switch ext {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(bytes.NewReader(data))
	case ".png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		if !reelExt[ext] {
			return Stored{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
		}
		name := uuid.NewString() + ext
		if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
			return Stored{}, err
		}
		return Stored{Type: "reel", Src: s.url(name)}, nil
	}
	if err != nil {
		return Stored{}, fmt.Errorf("%w: decode: %v", ErrUnsupported, err)
	}

	id := uuid.NewString()
	full, thumb := id+".jpg", id+"_thumb.jpg"
	if err := s.writeJPEG(full, fit(img, MaxWidth)); err != nil {
		return Stored{}, err
	}
	if err := s.writeJPEG(thumb, fit(img, ThumbWidth)); err != nil {
		return Stored{}, err
	}
	return Stored{Type: "photo", Src: s.url(full), Thumbnail: s.url(thumb)}, nil
}

// fit scales img down to width, keeping the aspect ratio.  Narrower images
// are returned unchanged.
func fit(img image.Image, width uint) image.Image {
	if uint(img.Bounds().Dx()) <= width {
		return img
	}
	return resize.Resize(width, 0, img, resize.Lanczos3)
}

func (s *Store) writeJPEG(name string, img image.Image) error {
	out, err := os.Create(filepath.Join(s.Dir, name))
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *Store) url(name string) string { return s.URLPrefix + "/" + name }
