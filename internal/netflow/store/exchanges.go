package store

import (
	"context"
	"strings"

	"github.com/chenzhangda16/polygon-netflow/internal/netflow/registry"
)

// SeedExchangeAddresses upserts the configured set. Addresses are lowercased
// on the way in; rows from earlier runs are kept (the set only grows).
func (s *Store) SeedExchangeAddresses(ctx context.Context, entries []registry.Entry) error {
	for _, e := range entries {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO exchange_addresses (address, exchange)
			VALUES ($1, $2)
			ON CONFLICT (address) DO NOTHING`,
			strings.ToLower(strings.TrimSpace(e.Address)), e.Exchange,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// LoadExchangeAddresses reads the full persisted set, for building the
// in-process registry once at startup.
func (s *Store) LoadExchangeAddresses(ctx context.Context) ([]registry.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, exchange FROM exchange_addresses`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.Entry
	for rows.Next() {
		var e registry.Entry
		if err := rows.Scan(&e.Address, &e.Exchange); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
