package cache

import "context"

// Fetch is the cache-aside read path shared by every repository: return the
// decoded cached value on a hit, otherwise run the loader and cache its
// result under the tier's TTL. The boolean reports whether the value came
// from cache, which callers surface as their fromCache flag.
//
// A payload that fails to decode counts as a miss: the poisoned key is
// removed best-effort and the loader runs. Loader errors propagate unchanged;
// cache write failures are absorbed by the service.
func Fetch[T any](ctx context.Context, svc Service, key string, tier TTLTier, load func(context.Context) (T, error)) (T, bool, error) {
	if payload, ok := svc.Read(ctx, key); ok {
		if v, err := Unmarshal[T](payload); err == nil {
			return v, true, nil
		}
		svc.Remove(ctx, key)
	}

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}

	if payload, err := Marshal(v); err == nil {
		svc.Write(ctx, key, payload, tier)
	}
	return v, false, nil
}
