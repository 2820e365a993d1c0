package export

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"shotdetect/internal/media/envelope"
	"shotdetect/internal/services"
	"shotdetect/internal/shot"
)

const (
	// RecordLogFileName is the record log name inside a run directory.
	RecordLogFileName = "records.bin"

	recordLogMagic = "SHOTREC1"
	recordHeader   = 12
	maxRecordSize  = 1 << 20
)

// Record kinds.
const (
	KindScore    = "score"
	KindEnvelope = "envelope"
)

// Record is one entry of the binary record log.
type Record struct {
	Time     time.Time         `json:"time" cbor:"-"`
	Kind     string            `json:"kind" cbor:"1,keyasint"`
	Score    *shot.ScoreRecord `json:"score,omitempty" cbor:"2,keyasint,omitempty"`
	Envelope *envelope.Sample  `json:"envelope,omitempty" cbor:"3,keyasint,omitempty"`
}

// ErrCorruptRecordLog reports a log that is not a record log or whose
// framing is damaged.
var ErrCorruptRecordLog = errors.New("corrupt record log")

var recordEncMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// RecordLog appends score and envelope records to a framed binary file:
// the magic SHOTREC1, then per record an 8-byte little-endian unix
// timestamp in nanoseconds, a 4-byte payload length, and a CBOR payload.
// Unlike the XML documents, the log is written in place so a failed run
// still leaves every record delivered before the failure.
type RecordLog struct {
	mu    sync.Mutex
	f     *os.File
	w     *bufio.Writer
	now   func() time.Time
	count int
}

// RecordLogOption customizes a RecordLog.
type RecordLogOption func(*RecordLog)

// WithRecordClock overrides the timestamp source.
func WithRecordClock(now func() time.Time) RecordLogOption {
	return func(l *RecordLog) {
		if now != nil {
			l.now = now
		}
	}
}

// NewRecordLog creates (or truncates) the log at path.
func NewRecordLog(path string, opts ...RecordLogOption) (*RecordLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrSink, "export", "record log", "create directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, services.Wrap(services.ErrSink, "export", "record log", "create", err)
	}
	w := bufio.NewWriterSize(f, 64*1024)
	if _, err := w.WriteString(recordLogMagic); err != nil {
		_ = f.Close()
		return nil, services.Wrap(services.ErrSink, "export", "record log", "write magic", err)
	}
	l := &RecordLog{f: f, w: w, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Count reports how many records were appended.
func (l *RecordLog) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *RecordLog) WriteScore(_ context.Context, rec shot.ScoreRecord) error {
	return l.append(Record{Kind: KindScore, Score: &rec})
}

func (l *RecordLog) WriteEnvelope(_ context.Context, s envelope.Sample) error {
	return l.append(Record{Kind: KindEnvelope, Envelope: &s})
}

func (l *RecordLog) append(rec Record) error {
	payload, err := recordEncMode.Marshal(rec)
	if err != nil {
		return services.Wrap(services.ErrSink, "export", "record log", "encode", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return services.Wrap(services.ErrSink, "export", "record log", "writer is closed", nil)
	}
	var header [recordHeader]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(l.now().UnixNano()))
	binary.LittleEndian.PutUint32(header[8:], uint32(len(payload)))
	if _, err := l.w.Write(header[:]); err != nil {
		return services.Wrap(services.ErrSink, "export", "record log", "write header", err)
	}
	if _, err := l.w.Write(payload); err != nil {
		return services.Wrap(services.ErrSink, "export", "record log", "write payload", err)
	}
	l.count++
	return nil
}

// Close flushes buffered records and closes the file.
func (l *RecordLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.w == nil {
		return nil
	}
	err := l.w.Flush()
	if closeErr := l.f.Close(); err == nil {
		err = closeErr
	}
	l.w = nil
	if err != nil {
		return services.Wrap(services.ErrSink, "export", "record log", "close", err)
	}
	return nil
}

// ReadRecords decodes a record log from r, calling fn for each record in
// order. A log truncated inside a record header or payload is reported as
// ErrCorruptRecordLog after the intact records have been delivered.
func ReadRecords(r io.Reader, fn func(Record) error) error {
	br := bufio.NewReader(r)
	magic := make([]byte, len(recordLogMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("%w: read magic: %v", ErrCorruptRecordLog, err)
	}
	if string(magic) != recordLogMagic {
		return fmt.Errorf("%w: unexpected magic %q", ErrCorruptRecordLog, string(magic))
	}
	for index := 0; ; index++ {
		var header [recordHeader]byte
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: record %d header: %v", ErrCorruptRecordLog, index, err)
		}
		ts := int64(binary.LittleEndian.Uint64(header[:8]))
		size := binary.LittleEndian.Uint32(header[8:])
		if size == 0 || size > maxRecordSize {
			return fmt.Errorf("%w: record %d has invalid size %d", ErrCorruptRecordLog, index, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			return fmt.Errorf("%w: record %d payload: %v", ErrCorruptRecordLog, index, err)
		}
		var rec Record
		if err := cbor.Unmarshal(payload, &rec); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrCorruptRecordLog, index, err)
		}
		rec.Time = time.Unix(0, ts).UTC()
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// ReadRecordFile opens path and decodes it with ReadRecords.
func ReadRecordFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadRecords(f, fn)
}
