// ScopedStore conformance: every backend must expose identical semantics to
// the engine, which never knows which one it runs on.
package integration

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/epiclink/internal/memstore"
	"github.com/mesh-intelligence/epiclink/internal/redistore"
	"github.com/mesh-intelligence/epiclink/internal/sqlitestore"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

func conformanceStores(t *testing.T) map[string]types.ScopedStore {
	t.Helper()

	sqlite, err := sqlitestore.Open(t.TempDir())
	require.NoError(t, err)

	redis, err := redistore.New("redis://" + miniredis.RunT(t).Addr())
	require.NoError(t, err)

	return map[string]types.ScopedStore{
		"memstore":    memstore.New(),
		"sqlitestore": sqlite,
		"redistore":   redis,
	}
}

func TestScopedStoreConformance(t *testing.T) {
	for name, store := range conformanceStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Cleanup(func() { store.Close() })
			ctx := context.Background()
			card := types.CardScope("card-1")
			org := types.OrgScope("org-1")

			t.Run("absent key", func(t *testing.T) {
				_, err := store.Get(ctx, card, types.VisibilityShared, "", types.KeyParent)
				assert.ErrorIs(t, err, types.ErrKeyNotFound)
			})

			t.Run("set get remove", func(t *testing.T) {
				value := json.RawMessage(`{"shortLink":"abc12345"}`)
				require.NoError(t, store.Set(ctx, card, types.VisibilityShared, "", types.KeyParent, value))

				got, err := store.Get(ctx, card, types.VisibilityShared, "", types.KeyParent)
				require.NoError(t, err)
				assert.JSONEq(t, string(value), string(got))

				require.NoError(t, store.Remove(ctx, card, types.VisibilityShared, "", types.KeyParent))
				_, err = store.Get(ctx, card, types.VisibilityShared, "", types.KeyParent)
				assert.ErrorIs(t, err, types.ErrKeyNotFound)
			})

			t.Run("scopes are disjoint", func(t *testing.T) {
				other := types.CardScope("card-2")
				require.NoError(t, store.Set(ctx, card, types.VisibilityShared, "", types.KeyChildren, json.RawMessage(`1`)))

				_, err := store.Get(ctx, other, types.VisibilityShared, "", types.KeyChildren)
				assert.ErrorIs(t, err, types.ErrKeyNotFound)
				_, err = store.Get(ctx, org, types.VisibilityShared, "", types.KeyChildren)
				assert.ErrorIs(t, err, types.ErrKeyNotFound)
			})

			t.Run("private keys are per member", func(t *testing.T) {
				require.NoError(t, store.Set(ctx, org, types.VisibilityPrivate, "member-a", types.KeyToken, json.RawMessage(`"tok-a"`)))

				_, err := store.Get(ctx, org, types.VisibilityPrivate, "member-b", types.KeyToken)
				assert.ErrorIs(t, err, types.ErrKeyNotFound)
				_, err = store.Get(ctx, org, types.VisibilityShared, "", types.KeyToken)
				assert.ErrorIs(t, err, types.ErrKeyNotFound)

				got, err := store.Get(ctx, org, types.VisibilityPrivate, "member-a", types.KeyToken)
				require.NoError(t, err)
				assert.Equal(t, `"tok-a"`, string(got))
			})

			t.Run("multi-key remove", func(t *testing.T) {
				for _, key := range []string{types.KeyParent, types.KeyUpdating, types.KeyLastActivity} {
					require.NoError(t, store.Set(ctx, card, types.VisibilityShared, "", key, json.RawMessage(`true`)))
				}
				require.NoError(t, store.Remove(ctx, card, types.VisibilityShared, "", types.KeyParent, types.KeyUpdating, types.KeyLastActivity))
				for _, key := range []string{types.KeyParent, types.KeyUpdating, types.KeyLastActivity} {
					_, err := store.Get(ctx, card, types.VisibilityShared, "", key)
					assert.ErrorIs(t, err, types.ErrKeyNotFound)
				}
			})

			t.Run("keys lists the scope", func(t *testing.T) {
				scope := types.CardScope("card-keys")
				require.NoError(t, store.Set(ctx, scope, types.VisibilityShared, "", types.KeyParent, json.RawMessage(`1`)))
				require.NoError(t, store.Set(ctx, scope, types.VisibilityShared, "", types.KeyChildren, json.RawMessage(`2`)))

				keys, err := store.Keys(ctx, scope, types.VisibilityShared, "")
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{types.KeyParent, types.KeyChildren}, keys)
			})

			t.Run("overwrite replaces value", func(t *testing.T) {
				scope := types.CardScope("card-ow")
				require.NoError(t, store.Set(ctx, scope, types.VisibilityShared, "", types.KeyUpdating, json.RawMessage(`"old"`)))
				require.NoError(t, store.Set(ctx, scope, types.VisibilityShared, "", types.KeyUpdating, json.RawMessage(`"new"`)))

				got, err := store.Get(ctx, scope, types.VisibilityShared, "", types.KeyUpdating)
				require.NoError(t, err)
				assert.Equal(t, `"new"`, string(got))
			})
		})
	}
}
