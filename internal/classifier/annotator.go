package classifier

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/moolen/sentinel/internal/logging"
)

// AnnotatorOptions configures batch classification
type AnnotatorOptions struct {
	// RequestsPerSecond throttles provider calls; 0 disables throttling
	RequestsPerSecond float64
	Concurrency       int
	CacheSize         int
	Timeout           time.Duration
	Metrics           *Metrics

	// Redact masks credentials and identifiers before a text leaves the
	// process
	Redact bool
}

// Annotator classifies batches of texts concurrently. Identical texts are
// served from an LRU cache; failures become Unknown().
type Annotator struct {
	classifier  Classifier
	limiter     *rate.Limiter
	cache       *lru.Cache[string, Classification]
	concurrency int
	timeout     time.Duration
	redact      bool
	metrics     *Metrics
	logger      *logging.Logger
}

// NewAnnotator creates an annotator around a classifier
func NewAnnotator(c Classifier, opts AnnotatorOptions) (*Annotator, error) {
	a := &Annotator{
		classifier:  c,
		concurrency: max(1, opts.Concurrency),
		timeout:     opts.Timeout,
		redact:      opts.Redact,
		metrics:     opts.Metrics,
		logger:      logging.GetLogger("classifier").WithField("provider", c.Name()),
	}

	if opts.RequestsPerSecond > 0 {
		burst := max(1, int(opts.RequestsPerSecond))
		a.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	if opts.CacheSize > 0 {
		cache, err := lru.New[string, Classification](opts.CacheSize)
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}

	return a, nil
}

// ClassifyAll classifies every text and returns results in input order.
// Only cancellation of ctx is returned as an error.
func (a *Annotator) ClassifyAll(ctx context.Context, texts []string) ([]Classification, error) {
	results := make([]Classification, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, text := range texts {
		g.Go(func() error {
			c, err := a.classifyOne(gctx, text)
			if err != nil {
				return err
			}
			results[i] = c
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Annotator) classifyOne(ctx context.Context, text string) (Classification, error) {
	if a.redact {
		text = Redact(text)
	}
	if a.cache != nil {
		if c, ok := a.cache.Get(text); ok {
			if a.metrics != nil {
				a.metrics.CacheHits.Inc()
			}
			return c, nil
		}
	}

	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return Classification{}, err
		}
	}
	if err := ctx.Err(); err != nil {
		return Classification{}, err
	}

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	started := time.Now()
	c, err := a.classifier.Classify(callCtx, text)
	if a.metrics != nil {
		a.metrics.Latency.Observe(time.Since(started).Seconds())
	}

	if err != nil {
		if ctx.Err() != nil {
			return Classification{}, ctx.Err()
		}
		a.logger.Warn("Error analyzing event %q: %v", truncate(text, 40), err)
		a.record("error")
		return Unknown(), nil
	}

	a.record("ok")
	if a.cache != nil {
		a.cache.Add(text, c)
	}
	return c, nil
}

func (a *Annotator) record(outcome string) {
	if a.metrics != nil {
		a.metrics.RequestsTotal.WithLabelValues(a.classifier.Name(), outcome).Inc()
	}
}
