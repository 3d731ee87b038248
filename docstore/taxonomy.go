package docstore

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verdictlabs/verdict"
)

// Protocol-tier kinds for the document backend. The set is closed:
// unmapped signals settle as verdict.KindUnknown.
const (
	KindCollectionNotFound verdict.Kind = "collection-not-found"
	KindDocumentNotFound   verdict.Kind = "document-not-found"
	KindMalformedDocument  verdict.Kind = "malformed-document"
	KindConflict           verdict.Kind = "conflict"
)

// ErrDocumentNotFound is the native signal for a lookup or removal of
// a document id the store does not hold.
var ErrDocumentNotFound = errors.New("docstore: document not found")

// Taxonomy classifies native document-store failure signals.
// Documents live in a JSONB column guarded by a foreign key into the
// collections registry, so the server reports unknown collections as
// FK violations and unparsable payloads as invalid text. Transport
// signals win first; timeout/abort values pass through untouched.
func Taxonomy(err error) *verdict.Error {
	if verr := verdict.TransportError(err); verr != nil {
		return verr
	}

	if errors.Is(err, ErrDocumentNotFound) || errors.Is(err, pgx.ErrNoRows) {
		return verdict.NewProtocol(KindDocumentNotFound, err.Error(), err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return verdict.NewUnknown(err)
	}

	switch pgErr.Code {
	case "23503": // foreign_key_violation: collection not registered
		return verdict.NewProtocol(KindCollectionNotFound, pgErr.Message, pgErr)
	case "23505": // unique_violation
		return verdict.NewProtocol(KindConflict, pgErr.Message, pgErr)
	case "22P02", "22032": // invalid text representation / invalid json
		return verdict.NewProtocol(KindMalformedDocument, pgErr.Message, pgErr)
	}
	return verdict.NewUnknown(err)
}
