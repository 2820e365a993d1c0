package export

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"shotdetect/internal/fileutil"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
)

// VideoXMLFileName is the per-frame score document name inside a run directory.
const VideoXMLFileName = "video.xml"

// VideoXML streams per-frame scores into an XML document with one
// <frame /> element per decoded frame. Channel average attributes are
// present only when the record carries them.
type VideoXML struct {
	mu     sync.Mutex
	file   *fileutil.AtomicFile
	frames int
	err    error
}

// NewVideoXML creates the document and writes its header.
func NewVideoXML(path string, threshold, fps float64) (*VideoXML, error) {
	file, err := fileutil.CreateAtomic(path, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrSink, "export", "video xml", "create", err)
	}
	header := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<iri>\n<video threshold=\"%s\" fps=\"%s\">\n",
		formatFloat(threshold), formatFloat(fps))
	if _, err := file.Write([]byte(header)); err != nil {
		_ = file.Abort()
		return nil, services.Wrap(services.ErrSink, "export", "video xml", "write header", err)
	}
	return &VideoXML{file: file}, nil
}

// Path returns the final document path.
func (v *VideoXML) Path() string {
	return v.file.Path()
}

// Frames reports how many frame rows were written.
func (v *VideoXML) Frames() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.frames
}

func (v *VideoXML) WriteScore(_ context.Context, rec shot.ScoreRecord) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		return v.err
	}
	if _, err := v.file.Write([]byte(frameElement(rec))); err != nil {
		v.err = services.Wrap(services.ErrSink, "export", "video xml", fmt.Sprintf("write frame %d", rec.Frame), err)
		return v.err
	}
	v.frames++
	return nil
}

// Close writes the closing tags and publishes the document.
func (v *VideoXML) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err != nil {
		_ = v.file.Abort()
		return v.err
	}
	if _, err := v.file.Write([]byte("</video>\n</iri>\n")); err != nil {
		_ = v.file.Abort()
		return services.Wrap(services.ErrSink, "export", "video xml", "write footer", err)
	}
	if err := v.file.Commit(); err != nil {
		return services.Wrap(services.ErrSink, "export", "video xml", "commit", err)
	}
	return nil
}

// Abort discards the partially written document.
func (v *VideoXML) Abort() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.file.Abort()
}

func frameElement(rec shot.ScoreRecord) string {
	var b strings.Builder
	b.WriteString(`<frame n="`)
	b.WriteString(strconv.Itoa(rec.Frame))
	b.WriteString(`" score="`)
	b.WriteString(formatFloat(rec.Normalized))
	b.WriteByte('"')
	if avg := rec.Averages; avg != nil {
		fmt.Fprintf(&b, ` r="%s" g="%s" b="%s"`, formatFloat(avg.C1), formatFloat(avg.C2), formatFloat(avg.C3))
	}
	if col := rec.Color; col != nil {
		fmt.Fprintf(&b, ` y="%s" u="%s" v="%s"`, formatFloat(col.C1), formatFloat(col.C2), formatFloat(col.C3))
	}
	b.WriteString(" />\n")
	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
