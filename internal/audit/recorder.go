package audit

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"

	bq "github.com/dvloznov/finsight/internal/bigquery"
)

// Record is one audit unit: the query log row, optionally the report
// that references it, and the full report payload for archiving.
type Record struct {
	Log     *bq.QueryLogRow
	Report  *bq.ReportRow
	Content []byte
}

// Archiver stores a report payload out of band and returns its URI.
type Archiver interface {
	Archive(ctx context.Context, objectName string, data []byte) (string, error)
}

// inlinePreviewLimit caps the report content kept inline once the full
// payload has been archived.
const inlinePreviewLimit = 1024

// persistTimeout bounds each audit write independently of the request
// that produced it.
const persistTimeout = 15 * time.Second

// Recorder persists audit records off the request path. Submit never
// blocks and persistence failures are logged and swallowed: the
// user-visible answer must not fail because an audit write did.
type Recorder struct {
	ch       chan Record
	logs     bq.QueryLogRepository
	reports  bq.ReportRepository
	archiver Archiver
	log      zerolog.Logger

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    chan struct{}
}

// NewRecorder creates a recorder with the given buffer size. A nil
// archiver disables content archiving.
func NewRecorder(bufferSize int, logs bq.QueryLogRepository, reports bq.ReportRepository, archiver Archiver, log zerolog.Logger) *Recorder {
	return &Recorder{
		ch:       make(chan Record, bufferSize),
		logs:     logs,
		reports:  reports,
		archiver: archiver,
		log:      log,
		closed:   make(chan struct{}),
	}
}

// Start launches the worker goroutine draining the buffer.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.closed:
				// Drain what is already buffered before exiting.
				for {
					select {
					case rec := <-r.ch:
						r.persist(rec)
					default:
						return
					}
				}
			case rec := <-r.ch:
				r.persist(rec)
			}
		}
	}()
}

// Submit enqueues a record without blocking. A full buffer drops the
// record; the drop is logged and reported to the caller, nothing more.
func (r *Recorder) Submit(rec Record) bool {
	select {
	case <-r.closed:
		r.log.Warn().Msg("Audit recorder closed, record dropped")
		return false
	default:
	}

	select {
	case r.ch <- rec:
		return true
	default:
		r.log.Error().Msg("Audit buffer full, record dropped")
		return false
	}
}

// Close stops accepting records and waits for the worker to drain.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() { close(r.closed) })
	r.wg.Wait()
}

func (r *Recorder) persist(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if rec.Log != nil {
		if err := r.logs.InsertQueryLog(ctx, rec.Log); err != nil {
			r.log.Error().Err(err).Str("query_id", rec.Log.QueryID).Msg("Failed to persist query log")
		}
	}

	if rec.Report == nil {
		return
	}

	if r.archiver != nil && len(rec.Content) > 0 {
		uri, err := r.archiver.Archive(ctx, "reports/"+rec.Report.ReportID+".json", rec.Content)
		if err != nil {
			r.log.Error().Err(err).Str("report_id", rec.Report.ReportID).Msg("Failed to archive report content")
		} else {
			rec.Report.ContentURI = bigquery.NullString{StringVal: uri, Valid: true}
			if len(rec.Report.Content) > inlinePreviewLimit {
				rec.Report.Content = rec.Report.Content[:inlinePreviewLimit]
			}
		}
	}

	if err := r.reports.InsertReport(ctx, rec.Report); err != nil {
		r.log.Error().Err(err).Str("report_id", rec.Report.ReportID).Msg("Failed to persist report")
	}
}
