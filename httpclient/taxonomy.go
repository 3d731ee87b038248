package httpclient

import (
	"errors"

	"github.com/verdictlabs/verdict"
)

// Protocol-tier kinds for the HTTP backend. The set is closed:
// anything else settles as verdict.KindUnknown.
const (
	// KindStatusClientError covers 4xx responses.
	KindStatusClientError verdict.Kind = "status-client-error"

	// KindStatusServerError covers 5xx responses.
	KindStatusServerError verdict.Kind = "status-server-error"

	// KindDecodeError covers bodies that failed structured decoding.
	KindDecodeError verdict.Kind = "decode-error"
)

// Taxonomy classifies native HTTP failure signals. Transport-level
// signals (dial failures, DNS, timeouts, aborts) are recognized first
// and never map to a protocol kind.
func Taxonomy(err error) *verdict.Error {
	if verr := verdict.TransportError(err); verr != nil {
		return verr
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		kind := KindStatusClientError
		if statusErr.Code >= 500 {
			kind = KindStatusServerError
		}
		return verdict.NewProtocol(kind, statusErr.Error(), statusErr)
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return verdict.NewProtocol(KindDecodeError, decodeErr.Error(), decodeErr)
	}

	return verdict.NewUnknown(err)
}
