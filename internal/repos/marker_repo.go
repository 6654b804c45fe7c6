package repos

import "context"

// MarkerRepo records that something happened under an id: consumed admin
// invitations, sent notifications. Check-then-mark is not atomic.
type MarkerRepo struct {
	gw         Gateway
	collection string
}

func NewMarkerRepo(gw Gateway, collection string) *MarkerRepo {
	return &MarkerRepo{gw: gw, collection: collection}
}

func (r *MarkerRepo) Exists(ctx context.Context, id string) (bool, error) {
	var v map[string]any
	return r.gw.Get(ctx, Path(r.collection, id), &v)
}

func (r *MarkerRepo) Mark(ctx context.Context, id string, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	return r.gw.Set(ctx, Path(r.collection, id), fields)
}

func (r *MarkerRepo) Clear(ctx context.Context, id string) error {
	return r.gw.Remove(ctx, Path(r.collection, id))
}
