package offline

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "local.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func rawRecords(vals ...string) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		out = append(out, json.RawMessage(v))
	}
	return out
}

func TestStoreWriteReadRoundtrip(t *testing.T) {
	store := openTestStore(t)

	want := rawRecords(`{"name":"widget","price":9.5}`, `{"name":"gadget","price":3}`)
	store.WriteCollection(CollectionProducts, want)

	got := store.ReadCollection(CollectionProducts)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if string(got[0]) != string(want[0]) {
		t.Errorf("record mismatch: %s", got[0])
	}
}

func TestStoreReadAbsentReturnsNil(t *testing.T) {
	store := openTestStore(t)
	if got := store.ReadCollection("nope"); got != nil {
		t.Errorf("expected nil for absent collection, got %v", got)
	}
}

func TestStoreWriteReplacesWholeSnapshot(t *testing.T) {
	store := openTestStore(t)

	store.WriteCollection(CollectionCustomers, rawRecords(`{"id":1}`, `{"id":2}`))
	store.WriteCollection(CollectionCustomers, rawRecords(`{"id":3}`))

	got := store.ReadCollection(CollectionCustomers)
	if len(got) != 1 || string(got[0]) != `{"id":3}` {
		t.Fatalf("snapshot not fully replaced: %v", got)
	}
}

func TestStoreSnapshotsListsAllCollections(t *testing.T) {
	store := openTestStore(t)

	store.WriteCollection(CollectionProducts, rawRecords(`{"p":1}`))
	store.WriteCollection(CollectionSettings, rawRecords(`{"currency":"EUR"}`))

	snaps, err := store.Snapshots()
	if err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 collections, got %d", len(snaps))
	}
	if len(snaps[CollectionSettings]) != 1 {
		t.Errorf("settings snapshot missing")
	}
}

func TestStoreDraftIsSessionScoped(t *testing.T) {
	store := openTestStore(t)

	if store.Draft() != nil {
		t.Fatal("fresh store should have no draft")
	}
	store.SetDraft(json.RawMessage(`{"step":2,"customer":"acme"}`))
	if string(store.Draft()) != `{"step":2,"customer":"acme"}` {
		t.Errorf("draft mismatch")
	}
	store.ClearDraft()
	if store.Draft() != nil {
		t.Errorf("draft should be cleared")
	}
}
