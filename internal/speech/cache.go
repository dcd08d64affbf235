package speech

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yegors/co-gci/pkg/logger"
)

// CachingSynthesizer memoizes synthesized audio by script text. Phraseology
// is fixed-template, so calls like "scope is clean" repeat constantly and
// skipping the collaborator round trip keeps replies snappy.
type CachingSynthesizer struct {
	inner  Synthesizer
	cache  *lru.Cache[string, []byte]
	logger *logger.Logger
}

// NewCachingSynthesizer wraps a synthesizer with an LRU cache of the given
// size.
func NewCachingSynthesizer(inner Synthesizer, size int, log *logger.Logger) (*CachingSynthesizer, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachingSynthesizer{
		inner:  inner,
		cache:  cache,
		logger: log.Named("speech-cache"),
	}, nil
}

// Synthesize returns cached audio when the exact script was rendered before.
func (c *CachingSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if pcm, ok := c.cache.Get(text); ok {
		c.logger.Debug("Synthesis cache hit", logger.Int("pcm_bytes", len(pcm)))
		return pcm, nil
	}

	pcm, err := c.inner.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, pcm)
	return pcm, nil
}

var _ Synthesizer = (*CachingSynthesizer)(nil)
