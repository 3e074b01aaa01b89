package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"microstatus/internal/config"
	"microstatus/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewDataset inserts an rscm dataset at owner/project/name and returns it.
func NewDataset(t testing.TB, st *store.Store, owner, project, name string) *store.Dataset {
	t.Helper()

	d := &store.Dataset{
		Name:     name,
		Owner:    owner,
		Project:  project,
		RelPath:  filepath.Join(owner, project, name),
		Modality: store.ModalityRSCM,
	}
	if err := st.Create(context.Background(), d); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return d
}
