package export

import (
	"context"
	"fmt"
	"sync"

	"shotdetect/internal/fileutil"
	"shotdetect/internal/media/envelope"
	"shotdetect/internal/services"
)

// AudioXMLFileName is the envelope document name inside a run directory.
const AudioXMLFileName = "audio.xml"

// AudioXML streams envelope windows into an XML document:
//
//	<?xml version="1.0" encoding="UTF-8"?>
//	<iri>
//	<sound sampling="48000" nchannels="2" window="1000">
//	<v c1d="-12" c1u="15" />
//	</sound>
//	</iri>
//
// The document only appears at its path once Close succeeds.
type AudioXML struct {
	mu      sync.Mutex
	file    *fileutil.AtomicFile
	windows int
	err     error
}

// NewAudioXML creates the document and writes its header.
func NewAudioXML(path string, sampleRate, channels, windowMs int) (*AudioXML, error) {
	file, err := fileutil.CreateAtomic(path, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrSink, "export", "audio xml", "create", err)
	}
	header := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<iri>\n<sound sampling=\"%d\" nchannels=\"%d\" window=\"%d\">\n",
		sampleRate, channels, windowMs)
	if _, err := file.Write([]byte(header)); err != nil {
		_ = file.Abort()
		return nil, services.Wrap(services.ErrSink, "export", "audio xml", "write header", err)
	}
	return &AudioXML{file: file}, nil
}

// Path returns the final document path.
func (a *AudioXML) Path() string {
	return a.file.Path()
}

// Windows reports how many envelope rows were written.
func (a *AudioXML) Windows() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.windows
}

func (a *AudioXML) WriteEnvelope(_ context.Context, s envelope.Sample) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	if _, err := fmt.Fprintf(a.file, "<v c1d=\"%d\" c1u=\"%d\" />\n", s.Min, s.Max); err != nil {
		a.err = services.Wrap(services.ErrSink, "export", "audio xml", fmt.Sprintf("write window %d", s.Window), err)
		return a.err
	}
	a.windows++
	return nil
}

// Close writes the closing tags and publishes the document. A writer that
// failed earlier is discarded instead.
func (a *AudioXML) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		_ = a.file.Abort()
		return a.err
	}
	if _, err := a.file.Write([]byte("</sound>\n</iri>\n")); err != nil {
		_ = a.file.Abort()
		return services.Wrap(services.ErrSink, "export", "audio xml", "write footer", err)
	}
	if err := a.file.Commit(); err != nil {
		return services.Wrap(services.ErrSink, "export", "audio xml", "commit", err)
	}
	return nil
}

// Abort discards the partially written document.
func (a *AudioXML) Abort() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Abort()
}
