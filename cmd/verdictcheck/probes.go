package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/config"
	"github.com/verdictlabs/verdict/docstore"
	"github.com/verdictlabs/verdict/httpclient"
	"github.com/verdictlabs/verdict/kvcache"
	"github.com/verdictlabs/verdict/queueclient"
	"github.com/verdictlabs/verdict/sqlclient"
)

// ProbeResult is the outcome of one backend probe.
type ProbeResult struct {
	Backend  string        `json:"backend"`
	OK       bool          `json:"ok"`
	Kind     string        `json:"kind,omitempty"`
	Tier     string        `json:"tier,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report aggregates the probes of one run.
type Report struct {
	CheckedAt time.Time     `json:"checked_at"`
	Probes    []ProbeResult `json:"probes"`
}

// Healthy reports whether every probe succeeded.
func (r *Report) Healthy() bool {
	for _, p := range r.Probes {
		if !p.OK {
			return false
		}
	}
	return true
}

type runner struct {
	cfg     *config.AppConfig
	timeout time.Duration
}

func newRunner(cfg *config.AppConfig, timeout time.Duration) *runner {
	return &runner{cfg: cfg, timeout: timeout}
}

// Run probes every configured backend. Backends without configuration
// are skipped.
func (r *runner) Run(ctx context.Context) *Report {
	report := &Report{CheckedAt: time.Now()}

	probes := []struct {
		backend    string
		configured bool
		probe      func(context.Context) error
	}{
		{"http", r.cfg.HTTP.BaseURL != "", r.probeHTTP},
		{"database", r.cfg.Database.URL != "", r.probeDatabase},
		{"docstore", r.cfg.DocStore.URL != "", r.probeDocStore},
		{"queue", r.cfg.Queue.URL != "", r.probeQueue},
		{"cache", r.cfg.Cache.URL != "", r.probeCache},
	}

	for _, p := range probes {
		if !p.configured {
			slog.Debug("Skipping unconfigured backend", "backend", p.backend)
			continue
		}
		start := time.Now()
		err := p.probe(ctx)
		report.Probes = append(report.Probes, outcome(p.backend, err, time.Since(start)))
	}
	return report
}

func outcome(backend string, err error, elapsed time.Duration) ProbeResult {
	res := ProbeResult{Backend: backend, OK: err == nil, Duration: elapsed}
	if err == nil {
		return res
	}
	res.Message = err.Error()

	var verr *verdict.Error
	if errors.As(err, &verr) {
		res.Kind = string(verr.Kind)
		res.Tier = verr.Tier.String()
		res.Message = verr.Message
	}
	return res
}

func (r *runner) opts() verdict.Options {
	return verdict.Options{Timeout: r.timeout, ThrowOnError: true}
}

// probeHTTP issues a GET against the configured base URL. Transient
// transport failures are retried with fibonacci backoff; interruptions
// and protocol failures surface immediately.
func (r *runner) probeHTTP(ctx context.Context) error {
	client := httpclient.New(r.cfg.HTTP)
	defer client.Close()

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := client.Get(ctx, "/", r.opts())
		if err == nil {
			return nil
		}
		var verr *verdict.Error
		if errors.As(err, &verr) && verr.Transport() && !verr.Interrupted() {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (r *runner) probeDatabase(ctx context.Context) error {
	client, err := sqlclient.Open(ctx, r.cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	res, err := client.Query(ctx, r.opts(), "SELECT 1 AS ok")
	if err != nil {
		return err
	}
	if _, rerr := res.Payload.FirstOrErr(); rerr != nil {
		return rerr
	}
	return nil
}

func (r *runner) probeDocStore(ctx context.Context) error {
	client, err := docstore.Open(ctx, r.cfg.DocStore)
	if err != nil {
		return err
	}
	defer client.Close()

	const collection = "verdictcheck"
	if _, err := client.CreateCollection(ctx, r.opts(), collection); err != nil {
		return err
	}
	id := fmt.Sprintf("probe-%d", time.Now().UnixNano())
	if _, err := client.Put(ctx, r.opts(), collection, id, []byte(`{"probe":true}`)); err != nil {
		return err
	}
	if _, err := client.Get(ctx, r.opts(), collection, id); err != nil {
		return err
	}
	_, err = client.Remove(ctx, r.opts(), collection, id)
	return err
}

func (r *runner) probeQueue(ctx context.Context) error {
	client, err := queueclient.New(ctx, r.cfg.Queue)
	if err != nil {
		return err
	}
	defer client.Close()

	const queue = "verdictcheck"
	if _, err := client.Declare(ctx, r.opts(), queue); err != nil {
		return err
	}
	sent, err := client.Send(ctx, r.opts(), queue, []byte("probe"))
	if err != nil {
		return err
	}
	received, err := client.Receive(ctx, r.opts(), queue, time.Second)
	if err != nil {
		return err
	}
	if received.Payload == nil {
		return fmt.Errorf("queue probe: sent message %s never arrived", sent.Payload.ID)
	}
	_, err = client.Delete(ctx, r.opts(), queue, received.Payload.Receipt)
	return err
}

func (r *runner) probeCache(ctx context.Context) error {
	client, err := kvcache.New(ctx, r.cfg.Cache)
	if err != nil {
		return err
	}
	defer client.Close()

	const key = "verdictcheck:probe"
	if _, err := client.Set(ctx, r.opts(), key, []byte("ok"), time.Minute); err != nil {
		return err
	}
	got, err := client.Get(ctx, r.opts(), key)
	if err != nil {
		return err
	}
	if !got.Payload.Found {
		return fmt.Errorf("cache probe: key %s missing after write", key)
	}
	_, err = client.Delete(ctx, r.opts(), key)
	return err
}
