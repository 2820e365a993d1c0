package imagehook

import (
	"context"
	"errors"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"shotdetect/internal/media/frame"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
)

func solidFrame(w, h int, r, g, b byte) *frame.Frame {
	f := frame.NewFrame(w, h, false)
	for i := 0; i < len(f.RGB); i += 3 {
		f.RGB[i] = r
		f.RGB[i+1] = g
		f.RGB[i+2] = b
	}
	return f
}

func TestSaverWritesPNG(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, Options{Format: "png"})
	if err != nil {
		t.Fatalf("NewSaver: %v", err)
	}
	path, err := saver.Save(context.Background(), solidFrame(8, 4, 10, 20, 30), 3, shot.RoleBegin)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if want := filepath.Join(dir, "images", "shot_3_begin.png"); path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
	r, g, b, a := img.At(5, 2).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 || a>>8 != 0xff {
		t.Fatalf("pixel mismatch: %d %d %d %d", r>>8, g>>8, b>>8, a>>8)
	}
	if _, err := os.Stat(filepath.Join(dir, "thumbs")); !os.IsNotExist(err) {
		t.Fatalf("thumbs directory should not exist without thumbnails enabled")
	}
}

func TestSaverWritesJPEGWithThumbnail(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, Options{Format: "JPG", JPEGQuality: 80, Thumbnails: true, ThumbnailWidth: 16})
	if err != nil {
		t.Fatalf("NewSaver: %v", err)
	}
	path, err := saver.Save(context.Background(), solidFrame(64, 32, 200, 200, 200), 0, shot.RoleEnd)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(path) != "shot_0_end.jpg" {
		t.Fatalf("unexpected file name %q", filepath.Base(path))
	}
	thumb, err := os.Open(saver.ThumbnailPath(0, shot.RoleEnd))
	if err != nil {
		t.Fatalf("open thumbnail: %v", err)
	}
	defer thumb.Close()
	img, err := jpeg.Decode(thumb)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Fatalf("thumbnail bounds = %v, want 16x8", img.Bounds())
	}
}

func TestSaverRejectsInvalidFrame(t *testing.T) {
	saver, err := NewSaver(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = saver.Save(context.Background(), &frame.Frame{}, 0, shot.RoleBegin)
	if !errors.Is(err, services.ErrSink) {
		t.Fatalf("expected ErrSink, got %v", err)
	}
	if !errors.Is(err, services.ErrDimension) {
		t.Fatalf("expected dimension cause, got %v", err)
	}
}

func TestSaverHonoursCancellation(t *testing.T) {
	saver, err := NewSaver(t.TempDir(), Options{})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := saver.Save(ctx, solidFrame(2, 2, 0, 0, 0), 0, shot.RoleBegin); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewSaverValidation(t *testing.T) {
	if _, err := NewSaver("  ", Options{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for empty dir, got %v", err)
	}
	if _, err := NewSaver(t.TempDir(), Options{Format: "gif"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for gif, got %v", err)
	}
}

func TestThumbnailKeepsSmallImages(t *testing.T) {
	img := ToImage(solidFrame(10, 10, 1, 2, 3))
	if got := Thumbnail(img, 20); got != img {
		t.Fatalf("expected narrow image to be returned unchanged")
	}
}

func TestRemoveClearsOutput(t *testing.T) {
	dir := t.TempDir()
	saver, err := NewSaver(dir, Options{Thumbnails: true, ThumbnailWidth: 2})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := saver.Save(context.Background(), solidFrame(4, 4, 0, 0, 0), 1, shot.RoleBegin); err != nil {
		t.Fatal(err)
	}
	if err := saver.Remove(); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "images")); !os.IsNotExist(err) {
		t.Fatalf("images directory still present")
	}
}

func TestSaverReturnsStillPathWhenThumbnailFails(t *testing.T) {
	dir := t.TempDir()
	// A regular file where the thumbs directory belongs makes the thumbnail write fail.
	if err := os.WriteFile(filepath.Join(dir, "thumbs"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	saver, err := NewSaver(dir, Options{Thumbnails: true, ThumbnailWidth: 4})
	if err != nil {
		t.Fatalf("NewSaver: %v", err)
	}
	path, err := saver.Save(context.Background(), solidFrame(16, 8, 1, 2, 3), 2, shot.RoleBegin)
	if !errors.Is(err, services.ErrSink) {
		t.Fatalf("Save error = %v, want ErrSink", err)
	}
	if path != saver.Path(2, shot.RoleBegin) {
		t.Fatalf("path = %q, want the written still", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("still missing: %v", err)
	}
}
