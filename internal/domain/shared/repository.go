package shared

// Filter carries pagination, ordering and equality predicates down to
// the repository layer. Keys in Filters are column names the repository
// is expected to match exactly.
type Filter struct {
	Page     int
	PageSize int
	OrderBy  string
	OrderDir string
	Filters  map[string]interface{}
}
