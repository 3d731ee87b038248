package sqlclient

import (
	"database/sql/driver"
	"errors"

	"github.com/lib/pq"

	"github.com/verdictlabs/verdict"
)

// Protocol-tier kinds for the relational backend. The set is closed:
// unmapped SQLSTATEs settle as verdict.KindUnknown.
const (
	KindConstraintViolation verdict.Kind = "constraint-violation"
	KindDeadlock            verdict.Kind = "deadlock"
	KindSyntaxError         verdict.Kind = "syntax-error"
	KindAccessDenied        verdict.Kind = "access-denied"
	KindConnectionRefused   verdict.Kind = "connection-refused"
)

// Taxonomy classifies native PostgreSQL failure signals by SQLSTATE.
// Net-level failures and bad pooled connections classify as
// transport-tier connection failures before any SQLSTATE mapping;
// timeout/abort values pass through untouched.
func Taxonomy(err error) *verdict.Error {
	if verr := verdict.TransportError(err); verr != nil {
		return verr
	}

	if errors.Is(err, driver.ErrBadConn) {
		return verdict.NewConnection(err.Error(), err)
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return verdict.NewUnknown(err)
	}

	kind := kindForSQLState(pqErr.Code)
	if kind == verdict.KindUnknown {
		return verdict.NewUnknown(err)
	}
	return verdict.NewProtocol(kind, pqErr.Message, pqErr)
}

func kindForSQLState(code pq.ErrorCode) verdict.Kind {
	switch code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return KindDeadlock
	case "42601": // syntax_error
		return KindSyntaxError
	case "42501": // insufficient_privilege
		return KindAccessDenied
	}

	switch code.Class() {
	case "23": // integrity constraint violations
		return KindConstraintViolation
	case "28": // invalid authorization specification
		return KindAccessDenied
	case "08": // connection exceptions reported by the server
		return KindConnectionRefused
	}

	return verdict.KindUnknown
}
