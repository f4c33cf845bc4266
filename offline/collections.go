package offline

// Canonical collection names. Exact strings matter for compatibility with
// previously persisted data and remote partitions.
const (
	CollectionProducts     = "products"
	CollectionCustomers    = "customers"
	CollectionSettings     = "settings"
	CollectionBankAccounts = "bank-accounts"
)

// QueueStorageKey is the logical key under which the offline backlog persists.
const QueueStorageKey = "offline-queue"

// DraftStorageKey is the session-scoped key for the in-progress order form.
const DraftStorageKey = "new-order-form"

var knownCollections = map[string]struct{}{
	CollectionProducts:     {},
	CollectionCustomers:    {},
	CollectionSettings:     {},
	CollectionBankAccounts: {},
}

// KnownCollections returns the canonical collection names in a stable order.
func KnownCollections() []string {
	return []string{
		CollectionProducts,
		CollectionCustomers,
		CollectionSettings,
		CollectionBankAccounts,
	}
}

// IsKnownCollection reports whether a remote partition name maps to a local
// storage key. Restore ignores partitions with no mapping.
func IsKnownCollection(name string) bool {
	_, ok := knownCollections[name]
	return ok
}
