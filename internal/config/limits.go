package config

const (
	// DefaultFindLimit is the page size of find when the request gives none.
	DefaultFindLimit = 10

	// DefaultPaginationLimit is the page size assumed by the pagination
	// descriptor.
	DefaultPaginationLimit = 15

	// DefaultPagesInView is the width of the page link window.
	DefaultPagesInView = 5

	// DefaultChangesLimit is the page size of the paged changes feed.
	DefaultChangesLimit = 100

	// DefaultFanout bounds concurrent per-document work in remove and
	// versions.
	DefaultFanout = 8

	// MaxRequestBodyBytes caps dispatcher request bodies (10MB).
	MaxRequestBodyBytes = 10 << 20
)
