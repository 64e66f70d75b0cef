package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/phuslu/log"
	"golang.org/x/time/rate"

	"github.com/rendis/placetap/internal/engine/browser"
	"github.com/rendis/placetap/internal/engine/geo"
	"github.com/rendis/placetap/internal/model"
)

// Sink persists records. It must be idempotent per identity key.
type Sink interface {
	SavePlace(ctx context.Context, rec model.PlaceRecord) (model.SaveResult, error)
}

// Phase is the stage a run is in.
type Phase int32

const (
	PhaseSearch Phase = iota
	PhasePaginate
	PhaseExtract
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseSearch:
		return "searching"
	case PhasePaginate:
		return "loading results"
	case PhaseExtract:
		return "extracting"
	default:
		return "done"
	}
}

type Stats struct {
	RunID  string
	Target int

	Rendered   atomic.Int64
	Candidates atomic.Int64
	Rounds     atomic.Int64
	Processed  atomic.Int64
	Detail     atomic.Int64
	Summary    atomic.Int64
	Stored     atomic.Int64
	Existing   atomic.Int64
	Skipped    atomic.Int64
	Filtered   atomic.Int64
	Errors     atomic.Int64

	phase atomic.Int32
}

func (s *Stats) Phase() Phase { return Phase(s.phase.Load()) }

func (s *Stats) setPhase(p Phase) { s.phase.Store(int32(p)) }

// RunOptions provides optional callbacks and filters for an extraction run.
type RunOptions struct {
	// OnPlace is called for every record handed to the sink, with the sink's verdict.
	OnPlace func(model.PlaceRecord, model.SaveResult)
	// SuppressStderr disables the built-in stderr progress reporter.
	SuppressStderr bool
	// Stats allows passing an external Stats object for live progress tracking.
	// If nil, Run() creates its own.
	Stats *Stats
	// GeoFilter, if set, discards records whose coordinates fall outside it.
	// Records without coordinates are kept.
	GeoFilter orb.MultiPolygon
	// MinRating discards records rated below it, or unrated, when > 0.
	MinRating float64
	// Center and Zoom position the search viewport when known.
	Center *orb.Point
	Zoom   int
	Lang   string
	// SkipSearch runs against whatever the session already shows.
	SkipSearch bool
}

// Run executes the extraction pipeline for target: search, paginate, then one candidate at a
// time detail-first with the card summary as fallback, normalize, filter and persist.
// Only a fatal session error or cancellation ends it early; the stats gathered so far are
// returned either way.
func Run(ctx context.Context, sess browser.Session, target model.ExtractionTarget, opts model.Options, sink Sink, logger *log.Logger, ro *RunOptions) (*Stats, error) {
	if ro == nil {
		ro = &RunOptions{}
	}
	if logger == nil {
		logger = NopLogger()
	}
	if target.MaxResults <= 0 {
		target.MaxResults = opts.MaxResults
		if target.MaxResults <= 0 {
			target.MaxResults = model.DefaultMaxResults
		}
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	stats := ro.Stats
	if stats == nil {
		stats = &Stats{}
	}
	stats.RunID = uuid.NewString()
	stats.Target = target.MaxResults

	runLog := *logger
	runLog.Context = log.NewContext(nil).Str("run", stats.RunID).Str("query", target.Query()).Value()
	logger = &runLog

	done := make(chan struct{})
	defer close(done)
	go reportProgress(stats, logger, ro.SuppressStderr, done)

	logger.Info().Int("max_results", target.MaxResults).Bool("detail", opts.UseDetailView).
		Bool("reviews", opts.FetchReviews).Bool("media", opts.FetchMedia).Msg("run started")

	stats.setPhase(PhaseSearch)
	if !ro.SkipSearch {
		u := SearchURL(target, ro.Center, ro.Zoom, ro.Lang)
		if err := OpenSearch(ctx, sess, u, opts, logger); err != nil {
			return stats, err
		}
	}

	stats.setPhase(PhasePaginate)
	page, err := Paginate(ctx, sess, target.MaxResults, opts.MaxScrollRounds, opts.SettleMin, opts.SettleMax, logger)
	stats.Rendered.Store(int64(page.Rendered))
	stats.Rounds.Store(int64(page.Rounds))
	if err != nil {
		return stats, err
	}
	logger.Info().Int("count", page.Count).Int("rendered", page.Rendered).Int("rounds", page.Rounds).
		Bool("reached", page.Reached).Msg("pagination finished")

	stats.setPhase(PhaseExtract)
	cards, err := FindCards(ctx, sess)
	if err != nil {
		return stats, err
	}
	stats.Candidates.Store(int64(len(cards)))
	if len(cards) == 0 {
		logger.Warn().Msg("no business cards found")
		stats.setPhase(PhaseDone)
		return stats, nil
	}

	w := &worker{
		sess:    sess,
		target:  target,
		opts:    opts,
		sink:    sink,
		logger:  logger,
		ro:      ro,
		stats:   stats,
		keys:    make(map[string]struct{}),
		limiter: rate.NewLimiter(rate.Every(max(opts.ClickDelay, time.Millisecond)), 1),
	}

	limit := min(len(cards), target.MaxResults)
	for i := range limit {
		if err := w.limiter.Wait(ctx); err != nil {
			return stats, err
		}
		if err := w.process(ctx, i); err != nil {
			logger.Error().Err(err).Int("index", i).Msg("run aborted")
			return stats, err
		}
		stats.Processed.Add(1)
	}

	stats.setPhase(PhaseDone)
	logger.Info().Int64("stored", stats.Stored.Load()).Int64("existing", stats.Existing.Load()).
		Int64("errors", stats.Errors.Load()).Msg("run finished")
	return stats, nil
}

type worker struct {
	sess    browser.Session
	target  model.ExtractionTarget
	opts    model.Options
	sink    Sink
	logger  *log.Logger
	ro      *RunOptions
	stats   *Stats
	keys    map[string]struct{}
	limiter *rate.Limiter
}

// card re-locates the i-th card on the current render.
func (w *worker) card(ctx context.Context, i int) (browser.Node, error) {
	cards, err := FindCards(ctx, w.sess)
	if err != nil {
		return nil, err
	}
	if i >= len(cards) {
		return nil, nil
	}
	return cards[i], nil
}

// process handles one candidate. Only fatal errors are returned.
func (w *worker) process(ctx context.Context, i int) error {
	card, err := w.card(ctx, i)
	if err != nil {
		return err
	}
	if card == nil {
		w.logger.Warn().Int("index", i).Msg("candidate no longer rendered")
		w.stats.Skipped.Add(1)
		return nil
	}

	var rec *model.PlaceRecord
	if w.opts.UseDetailView {
		if rec, err = ExtractDetail(ctx, w.sess, card, w.target.Category, w.opts, w.logger); err != nil {
			return err
		}
	}
	if rec == nil || rec.Name == "" {
		if w.opts.UseDetailView {
			w.logger.Debug().Int("index", i).Msg("detail failed, trying card summary")
			if card, err = w.card(ctx, i); err != nil {
				return err
			}
		}
		if card != nil {
			if rec, err = ExtractSummary(ctx, w.sess, card, w.target.Category); err != nil {
				return err
			}
		}
		if rec == nil || rec.Name == "" {
			w.logger.Warn().Int("index", i).Msg("no data found for candidate")
			w.stats.Skipped.Add(1)
			return nil
		}
		w.stats.Summary.Add(1)
	} else {
		w.stats.Detail.Add(1)
	}

	rec.Query = w.target.Query()
	out := Normalize(*rec, w.opts.FallbackCategory)
	if out.Name == "" {
		w.stats.Skipped.Add(1)
		return nil
	}

	// Branches of a chain share a name; only the identity key marks a repeat.
	key := model.IdentityKey(out)
	if _, seen := w.keys[key]; seen {
		w.logger.Debug().Str("name", out.Name).Msg("already processed in this run")
		w.stats.Skipped.Add(1)
		return nil
	}
	w.keys[key] = struct{}{}

	if !w.keep(out) {
		w.stats.Filtered.Add(1)
		return nil
	}

	res, err := w.sink.SavePlace(ctx, out)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		w.stats.Errors.Add(1)
		w.logger.Error().Err(err).Str("name", out.Name).Msg("persisting place failed")
		return nil
	}
	if res.Outcome == model.Exists {
		w.stats.Existing.Add(1)
	} else {
		w.stats.Stored.Add(1)
	}
	w.logger.Info().Str("name", out.Name).Str("source", string(out.Source)).Str("outcome", res.Outcome.String()).
		Int64("id", res.ID).Int("reviews", len(out.Reviews)).Int("images", len(out.Images)).Msg("place extracted")
	if w.ro.OnPlace != nil {
		w.ro.OnPlace(out, res)
	}
	return nil
}

func (w *worker) keep(rec model.PlaceRecord) bool {
	if w.ro.MinRating > 0 && (rec.Rating == nil || *rec.Rating < w.ro.MinRating) {
		return false
	}
	return geo.WithinArea(w.ro.GeoFilter, rec.Coords)
}

func reportProgress(stats *Stats, logger *log.Logger, quiet bool, done <-chan struct{}) {
	start := time.Now()
	ticker := time.NewTicker(2 * time.Second)
	logTicker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	defer logTicker.Stop()
	for {
		select {
		case <-ticker.C:
			if quiet {
				continue
			}
			fmt.Fprintf(os.Stderr, "\r[%s] %d/%d candidates | %d stored | %d existing | %d errors | %s",
				stats.Phase(), stats.Processed.Load(), stats.Target,
				stats.Stored.Load(), stats.Existing.Load(), stats.Errors.Load(),
				time.Since(start).Truncate(time.Second))
		case <-logTicker.C:
			logger.Info().Str("phase", stats.Phase().String()).Int64("processed", stats.Processed.Load()).
				Int64("stored", stats.Stored.Load()).Int64("errors", stats.Errors.Load()).
				Dur("elapsed", time.Since(start)).Msg("progress")
		case <-done:
			if !quiet {
				fmt.Fprintln(os.Stderr)
			}
			return
		}
	}
}

// NopLogger discards everything.
func NopLogger() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}
