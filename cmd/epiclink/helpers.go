// Shared helpers for epiclink CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mesh-intelligence/epiclink/internal/memstore"
	"github.com/mesh-intelligence/epiclink/internal/redistore"
	"github.com/mesh-intelligence/epiclink/internal/relation"
	"github.com/mesh-intelligence/epiclink/internal/sqlitestore"
	"github.com/mesh-intelligence/epiclink/internal/trello"
	"github.com/mesh-intelligence/epiclink/pkg/types"
)

// openStore creates the scoped store selected by the store config key. The
// caller must Close it.
func openStore() (types.ScopedStore, error) {
	switch cfg.Store {
	case storeMemory:
		// Useful for dry runs; state does not survive the process.
		return memstore.New(), nil
	case storeRedis:
		return redistore.New(cfg.RedisURL)
	case storeSQLite:
		dataDir, err := resolveDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data dir: %w", err)
		}
		return sqlitestore.Open(dataDir)
	default:
		return nil, fmt.Errorf("unknown store %q (expected %s, %s, or %s)", cfg.Store, storeSQLite, storeRedis, storeMemory)
	}
}

// newEngine wires the remote client, the scoped store, and a stderr notifier
// into an engine. The caller must Close the returned store.
func newEngine() (*relation.Engine, types.ScopedStore, error) {
	store, err := openStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	remote := trello.NewClient(cfg.APIBase, cfg.APIKey, nil)
	engine := relation.New(remote, store, relation.Options{
		Notifier: stderrNotifier{},
		Host:     cfg.Host,
		Grace:    cfg.GracePeriod,
	})
	return engine, store, nil
}

// cardContext builds the acting card context from the persistent flags.
func cardContext() (relation.CardContext, error) {
	if flagCard == "" || flagBoard == "" {
		return relation.CardContext{}, fmt.Errorf("--card and --board are required")
	}
	if flagMember == "" || flagOrg == "" {
		return relation.CardContext{}, fmt.Errorf("--member and --org are required")
	}
	return relation.CardContext{
		CardID:   flagCard,
		BoardID:  flagBoard,
		MemberID: flagMember,
		OrgID:    flagOrg,
	}, nil
}

// memberContext is cardContext without the card; enough for authorization.
func memberContext() (relation.CardContext, error) {
	if flagMember == "" || flagOrg == "" {
		return relation.CardContext{}, fmt.Errorf("--member and --org are required")
	}
	return relation.CardContext{MemberID: flagMember, OrgID: flagOrg}, nil
}

// printJSON renders a value as indented JSON on stdout.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// stderrNotifier surfaces engine alerts and warnings on stderr, standing in
// for the board UI toast.
type stderrNotifier struct{}

func (stderrNotifier) Alert(message string) { fmt.Fprintln(os.Stderr, "alert:", message) }
func (stderrNotifier) Warn(message string)  { fmt.Fprintln(os.Stderr, "warning:", message) }
