package aws

import "context"

// fetchPage fetches one page of a Marker-paginated listing. marker is nil for
// the first page. next is nil when the returned page is the last one.
type fetchPage[T any] func(ctx context.Context, marker *string) (items []T, next *string, err error)

// pager walks a paginated IAM listing one page per pull, holding the current
// cursor as internal state. Pulling drives the network calls, so a pager is
// single-use; re-listing means building a new one.
type pager[T any] struct {
	fetch  fetchPage[T]
	marker *string
	done   bool
}

func newPager[T any](fetch fetchPage[T]) *pager[T] {
	return &pager[T]{fetch: fetch}
}

// nextPage returns the next page of items, or ok=false once the listing is
// exhausted. A fetch error terminates the pager.
func (p *pager[T]) nextPage(ctx context.Context) (items []T, ok bool, err error) {
	if p.done {
		return nil, false, nil
	}
	items, next, err := p.fetch(ctx, p.marker)
	if err != nil {
		p.done = true
		return nil, false, err
	}
	if next == nil {
		p.done = true
	}
	p.marker = next
	return items, true, nil
}

// collect drains p and flattens every page's items, in page order.
func collect[T any](ctx context.Context, p *pager[T]) ([]T, error) {
	var all []T
	for {
		items, ok, err := p.nextPage(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return all, nil
		}
		all = append(all, items...)
	}
}
