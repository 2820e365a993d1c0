package imagehook

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/draw"

	"shotdetect/internal/fileutil"
	"shotdetect/internal/media/frame"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
)

const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"

	imagesDir = "images"
	thumbsDir = "thumbs"

	defaultJPEGQuality    = 90
	defaultThumbnailWidth = 160
)

// Options controls image encoding.
type Options struct {
	Format         string
	JPEGQuality    int
	Thumbnails     bool
	ThumbnailWidth int
}

// Saver writes shot boundary stills beneath a run directory.
type Saver struct {
	dir  string
	opts Options
}

// NewSaver validates opts and returns a Saver rooted at dir.
func NewSaver(dir string, opts Options) (*Saver, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, services.Wrap(services.ErrValidation, "imagehook", "new saver", "output directory is empty", nil)
	}
	opts.Format = strings.ToLower(strings.TrimSpace(opts.Format))
	switch opts.Format {
	case "":
		opts.Format = FormatPNG
	case "jpg":
		opts.Format = FormatJPEG
	case FormatPNG, FormatJPEG:
	default:
		return nil, services.Wrap(services.ErrValidation, "imagehook", "new saver", fmt.Sprintf("unsupported image format %q", opts.Format), nil)
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = defaultJPEGQuality
	}
	if opts.ThumbnailWidth <= 0 {
		opts.ThumbnailWidth = defaultThumbnailWidth
	}
	return &Saver{dir: dir, opts: opts}, nil
}

// Dir returns the root directory images are written beneath.
func (s *Saver) Dir() string {
	return s.dir
}

// Path returns the still path for a shot boundary without writing it.
func (s *Saver) Path(shotID int, role shot.Role) string {
	return filepath.Join(s.dir, imagesDir, s.fileName(shotID, role))
}

// ThumbnailPath returns the thumbnail path for a shot boundary.
func (s *Saver) ThumbnailPath(shotID int, role shot.Role) string {
	return filepath.Join(s.dir, thumbsDir, s.fileName(shotID, role))
}

// Save encodes f and returns the still path. The frame is copied before
// encoding so the caller may reuse its buffers once Save returns.
func (s *Saver) Save(ctx context.Context, f *frame.Frame, shotID int, role shot.Role) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := f.Validate(); err != nil {
		return "", services.Wrap(services.ErrSink, "imagehook", "save", "invalid frame", err)
	}
	img := ToImage(f)
	path := s.Path(shotID, role)
	if err := s.write(path, img); err != nil {
		return "", services.Wrap(services.ErrSink, "imagehook", "save", fmt.Sprintf("write %s", path), err)
	}
	if s.opts.Thumbnails {
		thumb := Thumbnail(img, s.opts.ThumbnailWidth)
		thumbPath := s.ThumbnailPath(shotID, role)
		if err := s.write(thumbPath, thumb); err != nil {
			return path, services.Wrap(services.ErrSink, "imagehook", "thumbnail", fmt.Sprintf("write %s", thumbPath), err)
		}
	}
	return path, nil
}

func (s *Saver) fileName(shotID int, role shot.Role) string {
	ext := "png"
	if s.opts.Format == FormatJPEG {
		ext = "jpg"
	}
	return fmt.Sprintf("shot_%d_%s.%s", shotID, role, ext)
}

func (s *Saver) write(path string, img image.Image) error {
	return fileutil.WriteAtomic(path, 0o644, func(w io.Writer) error {
		if s.opts.Format == FormatJPEG {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: s.opts.JPEGQuality})
		}
		return png.Encode(w, img)
	})
}

// ToImage converts packed RGB pixels into an opaque RGBA image.
func ToImage(f *frame.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	stride := f.Stride()
	for y := 0; y < f.Height; y++ {
		src := f.RGB[y*stride : (y+1)*stride]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		for x := 0; x < f.Width; x++ {
			dst[x*4] = src[x*3]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img
}

// Thumbnail scales img to width pixels wide, preserving aspect ratio.
// Images already narrower than width are returned unchanged.
func Thumbnail(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := b.Dy() * width / b.Dx()
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// Remove deletes all stills and thumbnails beneath the saver directory.
func (s *Saver) Remove() error {
	for _, sub := range []string{imagesDir, thumbsDir} {
		if err := os.RemoveAll(filepath.Join(s.dir, sub)); err != nil {
			return err
		}
	}
	return nil
}
