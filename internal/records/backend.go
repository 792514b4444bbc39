// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package records

import (
	"fmt"

	"github.com/pdiddy/docflow/pkg/types"
)

// NewPersister returns the persister selected by cfg and a function that
// releases it.
func NewPersister(cfg types.RecordsConfig) (Persister, func() error, error) {
	if cfg.Path == "" {
		return nil, nil, fmt.Errorf("records: no path configured")
	}
	switch cfg.Backend {
	case types.BackendXLSX, "":
		return NewXLSX(cfg.Path), func() error { return nil }, nil
	case types.BackendSQLite:
		db, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported record backend %q: use xlsx or sqlite", cfg.Backend)
	}
}
