package detection

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pipeline ties the stages together: parse, extract concurrently under one
// deadline, assemble with imputation, classify. One instance serves any
// number of concurrent URLs; the only shared state is the read-only bundle.
type Pipeline struct {
	store   *ModelStore
	domain  DomainInspector
	content ContentInspector
	cfg     *Config
}

func NewPipeline(cfg *Config, store *ModelStore) *Pipeline {
	return &Pipeline{
		store:   store,
		domain:  NewNetDomainInspector(cfg),
		content: NewHTTPContentInspector(cfg),
		cfg:     cfg,
	}
}

// NewPipelineWithInspectors injects inspector implementations; used by
// tests and by callers that cache lookups.
func NewPipelineWithInspectors(cfg *Config, store *ModelStore, d DomainInspector, c ContentInspector) *Pipeline {
	return &Pipeline{store: store, domain: d, content: c, cfg: cfg}
}

// CheckURL classifies one URL. A malformed URL returns ErrInvalidInput
// before any extractor runs. Network trouble never fails the call: those
// features come back imputed and counted. Only schema drift escapes as an
// error after parsing succeeds.
func (pl *Pipeline) CheckURL(ctx context.Context, rawURL string) (ClassificationResult, error) {
	start := time.Now()

	bundle, err := pl.store.Bundle()
	if err != nil {
		return ClassificationResult{}, err
	}

	parsed, err := ParseURL(rawURL)
	if err != nil {
		return ClassificationResult{}, err
	}

	vector, imputed, err := pl.extract(ctx, bundle, parsed)
	if err != nil {
		return ClassificationResult{}, err
	}

	result := Classify(bundle, vector, imputed)
	if pl.cfg.ThresholdOverride > 0 {
		// Re-apply the label under the operator's threshold; score itself
		// is unchanged.
		result.Threshold = pl.cfg.ThresholdOverride
		if result.Score >= result.Threshold {
			result.Label = LabelMalicious
		} else {
			result.Label = LabelBenign
		}
		result.Confidence = confidenceBand(result.Score, result.Threshold)
	}
	result.URL = parsed.Raw
	result.Vector = vector
	result.ProcessingTime = time.Since(start).Seconds()

	log.Printf("[PIPELINE] %s -> %s score=%.4f imputed=%d/%d in %.2fs",
		parsed.Host, result.Label, result.Score, imputed, bundle.Schema.Len(), result.ProcessingTime)
	return result, nil
}

// extract runs the three extractors. Lexical is synchronous and cannot
// block; domain and content run concurrently under the extraction deadline.
// When the deadline lapses the in-flight inspectors are cancelled and every
// feature they did not deliver goes down the imputation path.
func (pl *Pipeline) extract(ctx context.Context, bundle *ModelArtifactBundle, parsed *ParsedURL) (FeatureVector, int, error) {
	lexical := ExtractLexical(parsed)

	extractCtx, cancel := context.WithTimeout(ctx, pl.cfg.ExtractDeadline)
	defer cancel()

	domCh := make(chan FeatureSet, 1)
	conCh := make(chan FeatureSet, 1)
	go func() { domCh <- pl.domain.Inspect(extractCtx, parsed) }()
	go func() { conCh <- pl.content.Inspect(extractCtx, parsed) }()

	var domainSet, contentSet FeatureSet
collect:
	for domainSet == nil || contentSet == nil {
		select {
		case domainSet = <-domCh:
		case contentSet = <-conCh:
		case <-extractCtx.Done():
			// Inspectors are cooperative but a hung dial can outlive the
			// context briefly; don't wait for it. Whatever is missing gets
			// imputed below.
			log.Printf("[PIPELINE] extraction deadline reached for %s", parsed.Host)
			break collect
		}
	}

	if domainSet == nil {
		domainSet = NewFeatureSet()
		domainSet.FailAll(bundle.Schema.NamesByCategory(CategoryDomain), ReasonTimeout)
	}
	if contentSet == nil {
		contentSet = NewFeatureSet()
		contentSet.FailAll(bundle.Schema.NamesByCategory(CategoryContent), ReasonTimeout)
	}

	return AssembleVector(bundle.Schema, bundle.Stats, lexical, domainSet, contentSet)
}

// CheckBatch classifies a list of URLs with bounded fan-out. Every URL gets
// an independent result; one bad URL does not affect its neighbors.
func (pl *Pipeline) CheckBatch(ctx context.Context, urls []string) []BatchItem {
	results := make([]BatchItem, len(urls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pl.cfg.BatchLimit)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			res, err := pl.CheckURL(gctx, u)
			if err != nil {
				results[i] = BatchItem{URL: u, Error: err.Error(), ErrorType: errorType(err)}
				return nil
			}
			res.Vector = nil // keep batch payloads small
			results[i] = BatchItem{URL: u, Result: &res}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// BatchItem is one entry of a batch response: either a result or an error.
type BatchItem struct {
	URL       string                `json:"url"`
	Result    *ClassificationResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
	ErrorType string                `json:"error_type,omitempty"`
}
