package domain

// Store identifies which app marketplace a record originated from.
type Store string

const (
	StoreAppStore   Store = "appstore"
	StoreGooglePlay Store = "googleplay"
)

// ArtifactName returns the base name used for persisted output files,
// e.g. "AppStoreOutput" -> AppStoreOutput.csv / AppStoreOutput.json.
func (s Store) ArtifactName() string {
	switch s {
	case StoreAppStore:
		return "AppStoreOutput"
	case StoreGooglePlay:
		return "GooglePlayOutput"
	default:
		return string(s) + "Output"
	}
}

// CatalogEntry is the minimal record returned by a search or list query.
// Detail is non-nil when the source already returned the full record
// (e.g. Play similar listings), in which case the per-entry detail fetch
// is skipped during enrichment.
type CatalogEntry struct {
	ID     string
	Store  Store
	Detail *Record
}

// StorePair holds the enriched results for both stores. The two slices are
// independent; there is no ordering relationship between them.
type StorePair struct {
	AppStore   []*Record `json:"appstore"`
	GooglePlay []*Record `json:"googleplay"`
}

// ReviewsField is the field name under which joined review text is attached
// to an enriched record.
const ReviewsField = "reviews"

// ReviewsUnavailable is the sentinel attached when the review fetch for an
// entry fails. The entry itself is still included in the batch.
const ReviewsUnavailable = "Failed to fetch reviews"
