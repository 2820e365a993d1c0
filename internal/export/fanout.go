package export

import (
	"context"
	"errors"

	"shotdetect/internal/media/envelope"
	"shotdetect/internal/shot"
)

// EnvelopeSink receives audio envelope records in window order.
type EnvelopeSink interface {
	WriteEnvelope(ctx context.Context, s envelope.Sample) error
}

// Fanout forwards each record to every registered sink. Failures from one
// sink never stop delivery to the others; they are joined and returned.
type Fanout struct {
	scores    []shot.Sink
	envelopes []EnvelopeSink
}

// Add registers sink for every record kind it implements. Values that are
// neither a shot.Sink nor an EnvelopeSink are ignored.
func (f *Fanout) Add(sink any) {
	if s, ok := sink.(shot.Sink); ok && s != nil {
		f.scores = append(f.scores, s)
	}
	if s, ok := sink.(EnvelopeSink); ok && s != nil {
		f.envelopes = append(f.envelopes, s)
	}
}

// Len reports how many score and envelope sinks are registered.
func (f *Fanout) Len() (scores, envelopes int) {
	return len(f.scores), len(f.envelopes)
}

func (f *Fanout) WriteScore(ctx context.Context, rec shot.ScoreRecord) error {
	var errs []error
	for _, s := range f.scores {
		if err := s.WriteScore(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WriteEnvelope(ctx context.Context, s envelope.Sample) error {
	var errs []error
	for _, sink := range f.envelopes {
		if err := sink.WriteEnvelope(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
