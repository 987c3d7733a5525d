package persist

import (
	"context"
	"encoding/json"
	"errors"

	rerrors "github.com/vango-dev/ripple/internal/errors"
	"github.com/vango-dev/ripple/pkg/reactive"
	"github.com/vango-dev/ripple/pkg/scope"
)

// Bind restores sig from the JSON value stored under key, if any, and then
// saves every later value of sig back to the store. Saving stops when sc
// closes or a save fails; the returned reaction reports the failure.
func Bind[T any](sc *scope.Scope, sig *reactive.Signal[T], store Store, key string) (*reactive.Reaction, error) {
	if sc == nil {
		return nil, reactive.ErrNoScope
	}
	if err := Restore(sc.Context(), sig, store, key); err != nil {
		return nil, err
	}

	restored := true
	return reactive.React(sc, sig, func(ctx context.Context, v T) error {
		if restored {
			restored = false
			return nil
		}
		return saveValue(ctx, store, key, v)
	}, reactive.WithName("persist:"+key))
}

// Restore sets sig to the value stored under key. A missing key leaves sig
// unchanged.
func Restore[T any](ctx context.Context, sig *reactive.Signal[T], store Store, key string) error {
	data, err := store.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return rerrors.New(rerrors.CodePersistStore).WithDetail("load %q", key).Wrap(err)
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return rerrors.New(rerrors.CodePersistDecode).WithDetail("key %q", key).Wrap(err)
	}
	sig.Set(v)
	return nil
}

func saveValue[T any](ctx context.Context, store Store, key string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return rerrors.New(rerrors.CodePersistEncode).WithDetail("key %q", key).Wrap(err)
	}
	if err := store.Save(ctx, key, data); err != nil {
		return rerrors.New(rerrors.CodePersistStore).WithDetail("save %q", key).Wrap(err)
	}
	return nil
}
