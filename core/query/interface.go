package query

// QueryGenerator translates the parts of a QueryFilter that a SQL backend can
// evaluate natively into statements over a document table. Generators are
// allowed to return a superset of the matching documents: the caller always
// re-applies the full filter with a DataProcessor.
type QueryGenerator interface {
	// GenerateSelectSQL creates a SELECT statement for the table and the
	// parameters bound to it.
	GenerateSelectSQL(table string, filter *QueryFilter) (string, []any, error)

	// GenerateInsertSQL creates a batch INSERT statement for documents given
	// as parallel slices of identity keys and encoded bodies.
	GenerateInsertSQL(table string, ids []string, bodies []string) (string, []any, error)

	// GenerateReplaceSQL creates an UPDATE statement replacing the body of
	// the document with the given identity key.
	GenerateReplaceSQL(table string, id string, body string) (string, []any, error)

	// GenerateDeleteSQL creates a DELETE statement for the given identity
	// keys. An empty key list is rejected.
	GenerateDeleteSQL(table string, ids []string) (string, []any, error)
}
