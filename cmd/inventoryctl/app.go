package main

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"inventorycore/internal/blob"
	"inventorycore/internal/config"
	"inventorycore/internal/core"
	"inventorycore/pkg/domain"
)

// annotationBlobs marks commands that need the attachment store.
const annotationBlobs = "inventoryctl/blobs"

// app holds the dependencies shared by every command of one invocation.
type app struct {
	stdout, stderr io.Writer

	envFiles    []string
	dumpMetrics bool

	cfg      *config.Configuration
	log      *logrus.Logger
	store    domain.PersistentStore
	registry *prometheus.Registry
	svc      *core.Service
}

// open loads configuration and wires the service. The blob store is only
// opened when withBlobs is set so read-only commands never touch it.
func (a *app) open(ctx context.Context, withBlobs bool) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return withCode(exitUsage, err)
	}
	a.cfg = cfg
	a.log = cfg.Logger(a.stderr)

	units := core.NewDefaultUnitStore()
	if cfg.UnitsFile != "" {
		units = core.NewUnitStore()
		if err := units.LoadFile(cfg.UnitsFile); err != nil {
			return withCode(exitUsage, err)
		}
	}

	users := core.NewUserDirectory()
	if name := strings.TrimSpace(cfg.User.Username); name != "" {
		if err := users.Add(domain.Person{Username: name, WorkbenchID: cfg.User.WorkbenchID}); err != nil {
			return withCode(exitUsage, err)
		}
		if err := users.SetCurrent(name); err != nil {
			return withCode(exitUsage, err)
		}
	}

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return errors.Wrap(err, "open record store")
	}
	a.store = store

	a.registry = prometheus.NewRegistry()
	opts := []core.ServiceOption{
		core.WithLogger(core.NewLogrusLogger(a.log)),
		core.WithMetricsRecorder(core.NewPrometheusRecorder(a.registry, cfg.MetricsNamespace)),
		core.WithNotifier(domain.NewNotifier(a.log)),
		core.WithUnits(units),
		core.WithUsers(users),
	}
	if withBlobs {
		blobs, err := blob.Open(ctx, cfg.BlobConfig())
		if err != nil {
			return errors.Wrap(err, "open attachment store")
		}
		opts = append(opts, core.WithBlobStore(blobs))
	}
	a.svc = core.NewService(store, opts...)
	a.log.WithFields(logrus.Fields{
		"storage": cfg.Storage.Driver,
		"blobs":   withBlobs,
	}).Debug("inventoryctl ready")
	return nil
}

// writeMetrics prints the gathered service metrics in the text exposition format.
func (a *app) writeMetrics(w io.Writer) error {
	if a.registry == nil {
		return nil
	}
	families, err := a.registry.Gather()
	if err != nil {
		return errors.Wrap(err, "gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.Wrap(err, "write metrics")
		}
	}
	return nil
}

func (a *app) close() {
	if closer, ok := a.store.(io.Closer); ok {
		if err := closer.Close(); err != nil && a.log != nil {
			a.log.WithError(err).Warn("close record store")
		}
	}
	a.store = nil
}
