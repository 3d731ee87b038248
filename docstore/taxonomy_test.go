package docstore

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/verdictlabs/verdict"
)

func TestTaxonomy_PgErrorCodes(t *testing.T) {
	tests := []struct {
		code string
		want verdict.Kind
	}{
		{"23503", KindCollectionNotFound},
		{"23505", KindConflict},
		{"22P02", KindMalformedDocument},
		{"22032", KindMalformedDocument},
		{"42601", verdict.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			verr := Taxonomy(&pgconn.PgError{Code: tt.code, Message: "boom"})
			if verr.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", verr.Kind, tt.want)
			}
			if verr.Tier != verdict.TierProtocol {
				t.Errorf("Tier = %s, want protocol", verr.Tier)
			}
		})
	}
}

func TestTaxonomy_NotFoundSignals(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: users/ada", ErrDocumentNotFound),
		pgx.ErrNoRows,
	} {
		verr := Taxonomy(err)
		if verr.Kind != KindDocumentNotFound {
			t.Errorf("Taxonomy(%v).Kind = %s, want %s", err, verr.Kind, KindDocumentNotFound)
		}
	}
}

func TestTaxonomy_TransportWinsFirst(t *testing.T) {
	verr := Taxonomy(context.DeadlineExceeded)
	if verr.Kind != verdict.KindTimeout || !verr.Transport() {
		t.Errorf("got %+v, want transport timeout", verr)
	}
}

func TestTaxonomy_PassesThroughSettled(t *testing.T) {
	abort := verdict.NewAbort()
	if got := Taxonomy(abort); got != abort {
		t.Errorf("settled error was reclassified: %+v", got)
	}
}

func TestTaxonomy_UnknownKeepsCause(t *testing.T) {
	cause := fmt.Errorf("weird wire state")
	verr := Taxonomy(cause)
	if verr.Kind != verdict.KindUnknown {
		t.Fatalf("Kind = %s, want unknown", verr.Kind)
	}
	if verr.Cause != cause {
		t.Error("unknown classification must keep the original cause")
	}
}
