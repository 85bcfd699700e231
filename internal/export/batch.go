package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/youruser/creativeworkshop/internal/workshop"
)

// Renderer renders one image of a composition to PNG bytes.
type Renderer interface {
	RenderPNG(ctx context.Context, img workshop.Image, v workshop.Viewer) ([]byte, error)
}

// Exporter turns a single image into a named artifact.
type Exporter struct {
	renderer Renderer
	now      func() time.Time
}

func NewExporter(r Renderer) *Exporter {
	return &Exporter{renderer: r, now: time.Now}
}

// Export renders image index of comp at its original resolution.
func (e *Exporter) Export(ctx context.Context, comp *workshop.Composition, index int, v workshop.Viewer) (Artifact, error) {
	img, err := comp.Image(index)
	if err != nil {
		return Artifact{}, err
	}
	data, err := e.renderer.RenderPNG(ctx, img, v)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: image %d: %w", ErrExport, index+1, err)
	}
	at := e.now()
	return Artifact{
		Name:          FileName(comp.ID, index, at),
		CompositionID: comp.ID,
		Index:         index,
		ContentType:   "image/png",
		Size:          len(data),
		CreatedAt:     at,
		Data:          data,
	}, nil
}

// Options tunes the batch loop.
type Options struct {
	// Pause is inserted between consecutive exports.
	Pause time.Duration
	// WaitCeiling bounds the wait for every image to report loaded.
	WaitCeiling time.Duration
	// PollInterval is how often the loaded state is checked.
	PollInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		Pause:        500 * time.Millisecond,
		WaitCeiling:  10 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Result is the outcome for one image of a batch.
type Result struct {
	Index    int
	Artifact *Artifact
	Location string
	Err      error
}

func (r Result) MarshalJSON() ([]byte, error) {
	view := struct {
		Index    int       `json:"index"`
		Artifact *Artifact `json:"artifact,omitempty"`
		Location string    `json:"location,omitempty"`
		Error    string    `json:"error,omitempty"`
	}{Index: r.Index, Artifact: r.Artifact, Location: r.Location}
	if r.Err != nil {
		view.Error = r.Err.Error()
	}
	return json.Marshal(view)
}

// Report summarises a batch. Completed is true once every image was
// attempted, whether or not it succeeded.
type Report struct {
	ID            string    `json:"id"`
	CompositionID string    `json:"compositionId"`
	AllLoaded     bool      `json:"allLoaded"`
	Completed     bool      `json:"completed"`
	Succeeded     int       `json:"succeeded"`
	Failed        int       `json:"failed"`
	Results       []Result  `json:"results"`
	StartedAt     time.Time `json:"startedAt"`
	FinishedAt    time.Time `json:"finishedAt"`
}

// Batch exports every image of a composition, one at a time.
type Batch struct {
	exporter *Exporter
	sink     Sink
	opts     Options
	log      logrus.FieldLogger
}

func NewBatch(exporter *Exporter, sink Sink, opts Options, logger logrus.FieldLogger) *Batch {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Batch{exporter: exporter, sink: sink, opts: opts, log: logger}
}

// ExportAll waits (bounded) for all images to load, then exports them in
// order with a pause between each. A failed image is recorded and the loop
// moves on. Cancelling ctx stops the loop between images.
func (b *Batch) ExportAll(ctx context.Context, s *workshop.Session, v workshop.Viewer) Report {
	comp := s.Composition
	n := comp.ImageCount()
	report := Report{
		ID:            uuid.NewString(),
		CompositionID: comp.ID,
		Results:       make([]Result, 0, n),
		StartedAt:     time.Now(),
	}
	log := b.log.WithFields(logrus.Fields{"composition": comp.ID, "batch": report.ID})

	report.AllLoaded = WaitForLoaded(ctx, s.Tracker, n, b.opts.WaitCeiling, b.opts.PollInterval)
	if !report.AllLoaded {
		log.WithField("loaded", s.Tracker.LoadedCount()).Warn("not every image loaded before export, proceeding")
	}

	for i := 0; i < n; i++ {
		if i > 0 {
			sleep(ctx, b.opts.Pause)
		}
		if err := ctx.Err(); err != nil {
			for j := i; j < n; j++ {
				report.Results = append(report.Results, Result{Index: j, Err: err})
				report.Failed++
			}
			report.FinishedAt = time.Now()
			log.WithError(err).Warn("batch export cancelled")
			return report
		}

		res := b.exportOne(ctx, comp, i, v)
		if res.Err != nil {
			report.Failed++
			log.WithError(res.Err).WithField("image", i+1).Warn("image export failed, continuing")
		} else {
			report.Succeeded++
		}
		report.Results = append(report.Results, res)
	}

	report.Completed = true
	report.FinishedAt = time.Now()
	log.WithFields(logrus.Fields{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Info("batch export completed")
	return report
}

func (b *Batch) exportOne(ctx context.Context, comp *workshop.Composition, index int, v workshop.Viewer) Result {
	art, err := b.exporter.Export(ctx, comp, index, v)
	if err != nil {
		return Result{Index: index, Err: err}
	}
	loc, err := b.sink.Save(ctx, art)
	if err != nil {
		return Result{Index: index, Err: fmt.Errorf("%w: save %s: %w", ErrExport, art.Name, err)}
	}
	art.Data = nil
	return Result{Index: index, Artifact: &art, Location: loc}
}

// WaitForLoaded polls until images 0..n-1 are loaded, the ceiling passes or
// ctx is done. It reports whether everything loaded.
func WaitForLoaded(ctx context.Context, t *workshop.Tracker, n int, ceiling, poll time.Duration) bool {
	if t.AllLoaded(n) {
		return true
	}
	if ceiling <= 0 {
		return false
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	deadline := time.NewTimer(ceiling)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return t.AllLoaded(n)
		case <-ticker.C:
			if t.AllLoaded(n) {
				return true
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
