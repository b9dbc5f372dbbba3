package pagination

import "context"

type Page struct {
	Offset int
	Limit  int
}

func FirstPage() Page {
	return Page{
		Offset: 0,
		Limit:  20,
	}
}

// Clamp normalizes a client-supplied page: a non-positive limit falls back
// to the default page size, anything above max is cut to max, and negative
// offsets are treated as zero.
func (p Page) Clamp(max int) Page {
	if p.Limit <= 0 {
		p.Limit = FirstPage().Limit
	}
	if max > 0 && p.Limit > max {
		p.Limit = max
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func (p Page) Previous() Page {
	newOffset := p.Offset - p.Limit
	if newOffset < 0 {
		newOffset = 0
	}
	return Page{
		Offset: newOffset,
		Limit:  p.Limit,
	}
}

func (p Page) Next() Page {
	return Page{
		Offset: p.Offset + p.Limit,
		Limit:  p.Limit,
	}
}

func IntoContext(ctx context.Context, page Page) context.Context {
	return context.WithValue(ctx, pageKey, page)
}

func FromContext(ctx context.Context) (Page, bool) {
	page, ok := ctx.Value(pageKey).(Page)
	return page, ok
}

type paginateKey struct{}

var pageKey = paginateKey{}
