package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/metafield-export/pkg/client"
	"github.com/Sternrassler/metafield-export/pkg/record"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metafield_export_records_total",
		Help: "Total metafield records collected by object class",
	}, []string{"class"})

	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metafield_export_pages_total",
		Help: "Total listing pages processed by object class",
	}, []string{"class"})
)

// Lister is the part of the API session the collector needs.
// *client.Session implements it.
type Lister interface {
	FirstPage(ctx context.Context, res client.Resource) (*client.Page, error)
	NextPage(ctx context.Context, p *client.Page) (*client.Page, error)
	Metafields(ctx context.Context, obj client.Object) (*client.MetafieldPage, error)
	NextMetafields(ctx context.Context, p *client.MetafieldPage) (*client.MetafieldPage, error)
}

// Collector gathers the metafields of every object of a class.
type Collector struct {
	lister Lister
	exec   *client.Executor
	logger zerolog.Logger
}

// NewCollector creates a collector issuing calls through exec.
func NewCollector(lister Lister, exec *client.Executor, logger zerolog.Logger) *Collector {
	return &Collector{
		lister: lister,
		exec:   exec,
		logger: logger,
	}
}

// Collect returns every metafield of every object of res, in page order,
// then object order, then metafield order.
func (c *Collector) Collect(ctx context.Context, res client.Resource) ([]record.Record, error) {
	start := time.Now()
	var records []record.Record

	page, err := client.Execute(ctx, c.exec, "list "+res.Class, func(ctx context.Context) (*client.Page, error) {
		return c.lister.FirstPage(ctx, res)
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", res.Class, err)
	}

	pages := 0
	for {
		for _, obj := range page.Objects {
			mfs, err := c.metafields(ctx, obj)
			if err != nil {
				return nil, err
			}
			records = append(records, mfs...)
			recordsTotal.WithLabelValues(res.Class).Add(float64(len(mfs)))
		}

		pages++
		pagesTotal.WithLabelValues(res.Class).Inc()
		c.logger.Info().
			Str("class", res.Class).
			Int("page", pages).
			Int("records", len(records)).
			Msgf("%s: %d metafields collected", res.Class, len(records))

		if !page.HasNext() {
			break
		}

		current := page
		page, err = client.Execute(ctx, c.exec, "list "+res.Class, func(ctx context.Context) (*client.Page, error) {
			return c.lister.NextPage(ctx, current)
		})
		if err != nil {
			return nil, fmt.Errorf("list %s page %d: %w", res.Class, pages+1, err)
		}
	}

	c.logger.Debug().
		Str("class", res.Class).
		Int("pages", pages).
		Int("records", len(records)).
		Dur("duration", time.Since(start)).
		Msg("Collect complete")

	return records, nil
}

// metafields fetches all metafield pages of obj.
func (c *Collector) metafields(ctx context.Context, obj client.Object) ([]record.Record, error) {
	name := fmt.Sprintf("metafields %s %d", obj.Resource.Class, obj.ID)

	page, err := client.Execute(ctx, c.exec, name, func(ctx context.Context) (*client.MetafieldPage, error) {
		return c.lister.Metafields(ctx, obj)
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	records := page.Records
	for page.HasNext() {
		current := page
		page, err = client.Execute(ctx, c.exec, name, func(ctx context.Context) (*client.MetafieldPage, error) {
			return c.lister.NextMetafields(ctx, current)
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		records = append(records, page.Records...)
	}
	return records, nil
}

// CollectAll collects every class in order and concatenates the records.
func (c *Collector) CollectAll(ctx context.Context, resources []client.Resource) ([]record.Record, error) {
	var all []record.Record
	for _, res := range resources {
		records, err := c.Collect(ctx, res)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	return all, nil
}
