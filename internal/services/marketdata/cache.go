package marketdata

import (
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/somtrade/internal/domain"
)

// chartCache keeps recent chart series per coin id for a fixed TTL.
type chartCache struct {
	r   *ristretto.Cache
	ttl time.Duration
}

func newChartCache(ttl time.Duration) (*chartCache, error) {
	r, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create chart cache")
	}
	return &chartCache{r: r, ttl: ttl}, nil
}

func (c *chartCache) get(id string) ([]domain.ChartPoint, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.r.Get(id)
	if !ok {
		return nil, false
	}
	series, ok := v.([]domain.ChartPoint)
	if !ok {
		return nil, false
	}
	return append([]domain.ChartPoint(nil), series...), true
}

func (c *chartCache) set(id string, series []domain.ChartPoint) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.r.SetWithTTL(id, append([]domain.ChartPoint(nil), series...), int64(len(series)), c.ttl)
	c.r.Wait()
}

func (c *chartCache) close() {
	if c != nil {
		c.r.Close()
	}
}
