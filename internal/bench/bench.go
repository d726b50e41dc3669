// Package bench drives a delay queue with concurrent producers and consumers
// and checks that every produced job is consumed exactly once and never
// before its ready time.
package bench

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	delayqueue "github.com/timzifer/delay_queue"
)

// Job is the unit of work moved through the queue.
type Job struct {
	ID       uuid.UUID
	Producer int
	readyAt  time.Time
}

var _ delayqueue.Delayed = Job{}

// NewJob creates a job with a fresh random ID that becomes ready after delay.
func NewJob(producer int, delay time.Duration) Job {
	return Job{
		ID:       uuid.New(),
		Producer: producer,
		readyAt:  time.Now().Add(delay),
	}
}

func (j Job) ReadyTime() time.Time {
	return j.readyAt
}

// Options controls the shape of a run.
type Options struct {
	Producers        int
	Consumers        int
	ItemsPerProducer int
	// MaxDelay bounds the random delay of each job. Zero makes every job
	// ready on insertion.
	MaxDelay     time.Duration
	OfferTimeout time.Duration
	PollTimeout  time.Duration
}

func (o Options) validate() error {
	if o.Producers < 1 || o.Consumers < 1 {
		return fmt.Errorf("bench: need at least one producer and one consumer, got %d and %d",
			o.Producers, o.Consumers)
	}
	if o.ItemsPerProducer < 0 || o.MaxDelay < 0 {
		return fmt.Errorf("bench: items per producer and max delay must not be negative")
	}
	return nil
}

// Report summarizes a run.
type Report struct {
	Produced     int64
	Consumed     int64
	Duplicates   int64
	Missing      int64
	Early        int64
	OfferRetries int64
	PollMisses   int64
	MaxLateness  time.Duration
	MeanLateness time.Duration
	Elapsed      time.Duration
}

// Fields renders the report for structured logging.
func (r Report) Fields() log.Fields {
	return log.Fields{
		"produced":      r.Produced,
		"consumed":      r.Consumed,
		"duplicates":    r.Duplicates,
		"missing":       r.Missing,
		"early":         r.Early,
		"offer_retries": r.OfferRetries,
		"poll_misses":   r.PollMisses,
		"max_lateness":  r.MaxLateness,
		"mean_lateness": r.MeanLateness,
		"elapsed":       r.Elapsed,
	}
}

// Err reports whether the run observed lost, duplicated or early jobs.
func (r Report) Err() error {
	if r.Duplicates > 0 || r.Missing > 0 || r.Early > 0 {
		return fmt.Errorf("bench: %d duplicate, %d missing and %d early jobs",
			r.Duplicates, r.Missing, r.Early)
	}
	return nil
}

type ledger struct {
	sync.Mutex
	issued      map[uuid.UUID]struct{}
	seen        map[uuid.UUID]int
	early       int64
	maxLateness time.Duration
	sumLateness time.Duration
	lateCount   int64
}

func (l *ledger) issue(id uuid.UUID) {
	l.Lock()
	l.issued[id] = struct{}{}
	l.Unlock()
}

func (l *ledger) record(j Job, at time.Time) {
	lateness := at.Sub(j.readyAt)

	l.Lock()
	defer l.Unlock()
	l.seen[j.ID]++
	if lateness < 0 {
		l.early++
		return
	}
	l.lateCount++
	l.sumLateness += lateness
	if lateness > l.maxLateness {
		l.maxLateness = lateness
	}
}

// Run pushes Producers*ItemsPerProducer jobs through q and returns once all
// of them were consumed, ctx is done or the queue fails.
func Run(ctx context.Context, q *delayqueue.Queue[Job], opts Options, logger log.FieldLogger) (Report, error) {
	if err := opts.validate(); err != nil {
		return Report{}, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	total := int64(opts.Producers * opts.ItemsPerProducer)
	book := &ledger{
		issued: make(map[uuid.UUID]struct{}, total),
		seen:   make(map[uuid.UUID]int, total),
	}

	var (
		produced     atomic.Int64
		consumed     atomic.Int64
		offerRetries atomic.Int64
		pollMisses   atomic.Int64
	)

	logger.WithFields(log.Fields{
		"producers": opts.Producers,
		"consumers": opts.Consumers,
		"jobs":      total,
	}).Info("starting bench run")

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	for p := 0; p < opts.Producers; p++ {
		g.Go(func() error {
			for i := 0; i < opts.ItemsPerProducer; i++ {
				var delay time.Duration
				if opts.MaxDelay > 0 {
					delay = rand.N(opts.MaxDelay)
				}
				job := NewJob(p, delay)
				book.issue(job.ID)

				for {
					if err := gctx.Err(); err != nil {
						return err
					}
					ok, err := q.Offer(job, opts.OfferTimeout)
					if err != nil {
						return errors.Wrapf(err, "producer %d", p)
					}
					if ok {
						break
					}
					offerRetries.Inc()
				}
				produced.Inc()
			}
			return nil
		})
	}

	for c := 0; c < opts.Consumers; c++ {
		g.Go(func() error {
			for consumed.Load() < total {
				if err := gctx.Err(); err != nil {
					return err
				}
				job, ok, err := q.Poll(opts.PollTimeout)
				if err != nil {
					return errors.Wrapf(err, "consumer %d", c)
				}
				if !ok {
					pollMisses.Inc()
					continue
				}
				book.record(job, time.Now())
				consumed.Inc()
			}
			return nil
		})
	}

	err := g.Wait()

	book.Lock()
	defer book.Unlock()

	report := Report{
		Produced:     produced.Load(),
		Consumed:     consumed.Load(),
		Early:        book.early,
		OfferRetries: offerRetries.Load(),
		PollMisses:   pollMisses.Load(),
		MaxLateness:  book.maxLateness,
		Elapsed:      time.Since(start),
	}
	if book.lateCount > 0 {
		report.MeanLateness = book.sumLateness / time.Duration(book.lateCount)
	}
	for _, n := range book.seen {
		if n > 1 {
			report.Duplicates += int64(n - 1)
		}
	}
	if err != nil {
		return report, errors.Wrap(err, "bench run aborted")
	}
	for id := range book.issued {
		if _, ok := book.seen[id]; !ok {
			report.Missing++
		}
	}
	return report, nil
}
