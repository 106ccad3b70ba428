// Package installer sequences catalog resolution, download, extraction,
// state update and environment configuration for a set of components.
// Components run concurrently in a bounded pool; each is isolated so one
// failure never aborts the rest of the request. Only the shared
// state-persist and environment-apply steps are serialized.
package installer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/forgeup/forgeup/internal/archive"
	"github.com/forgeup/forgeup/internal/catalog"
	"github.com/forgeup/forgeup/internal/env"
	"github.com/forgeup/forgeup/internal/fetch"
	"github.com/forgeup/forgeup/internal/platform"
	"github.com/forgeup/forgeup/internal/state"
)

// staleStagingAge is how old an abandoned staging file must be before a
// later run sweeps it.
const staleStagingAge = 24 * time.Hour

// Config parameterizes an Installer. RootDir, Host and Catalog are
// required; the rest default sensibly.
type Config struct {
	RootDir string
	Host    platform.Host
	Catalog *catalog.Catalog

	Retry   fetch.RetryPolicy
	Timeout time.Duration
	Workers int

	// Progress receives download progress bars; nil disables them.
	Progress io.Writer

	// Keyring holds armored or binary PGP public keys. When set,
	// artifacts that publish a detached signature are verified against
	// it; when empty, signature verification is skipped.
	Keyring []byte
}

// Installer orchestrates component installs under one root directory.
type Installer struct {
	cfg        Config
	downloader *fetch.Downloader
	store      *state.Store
	target     env.Target

	// mu serializes the record/env/persist section; everything before it
	// operates on per-component directories and runs concurrently.
	mu sync.Mutex
}

// New loads install state under cfg.RootDir and selects the environment
// target for the host.
func New(cfg Config) (*Installer, error) {
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("installer: root directory is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("installer: catalog is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Retry == (fetch.RetryPolicy{}) {
		cfg.Retry = fetch.DefaultRetryPolicy()
	}

	store, err := state.Load(cfg.RootDir)
	if err != nil {
		return nil, fmt.Errorf("load install state: %w", err)
	}

	target, err := env.SelectTarget(cfg.Host, cfg.RootDir)
	if err != nil {
		return nil, err
	}

	d := fetch.NewDownloader(cfg.Retry)
	if cfg.Timeout > 0 {
		d.SetTimeout(cfg.Timeout)
	}
	if cfg.Progress != nil {
		d.SetProgress(cfg.Progress)
	}

	return &Installer{
		cfg:        cfg,
		downloader: d,
		store:      store,
		target:     target,
	}, nil
}

// SourceHint returns the activation instruction for the environment
// target, or "" when activation is automatic.
func (in *Installer) SourceHint() string {
	return in.target.SourceHint()
}

// Installed returns the current install records ordered by identity.
func (in *Installer) Installed() []state.Record {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.store.List()
}

// Install installs the requested components. Results are returned in
// request order, one per component, successes and failures mixed.
func (in *Installer) Install(ctx context.Context, comps []catalog.Component) []Result {
	in.sweepStaging()
	return in.forEach(ctx, comps, in.installOne)
}

// Uninstall removes the requested components in reverse dependency-free
// order: environment first, then the install record, then the directory.
func (in *Installer) Uninstall(ctx context.Context, comps []catalog.Component) []Result {
	return in.forEach(ctx, comps, in.uninstallOne)
}

// Update re-resolves each component against the newest published version
// and installs it, removing the superseded install directory only after
// the new version is recorded and configured.
func (in *Installer) Update(ctx context.Context, comps []catalog.Component) []Result {
	in.sweepStaging()
	return in.forEach(ctx, comps, in.updateOne)
}

// forEach runs op for every component through a bounded worker pool.
func (in *Installer) forEach(ctx context.Context, comps []catalog.Component, op func(context.Context, string, catalog.Component) Result) []Result {
	runID := uuid.NewString()

	sem := make(chan struct{}, in.cfg.Workers)
	results := make([]Result, len(comps))

	var wg sync.WaitGroup
	for i, comp := range comps {
		wg.Add(1)
		go func(i int, comp catalog.Component) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = op(ctx, runID, comp)
		}(i, comp)
	}
	wg.Wait()

	return results
}

func (in *Installer) installOne(ctx context.Context, runID string, comp catalog.Component) Result {
	res := Result{Component: comp, Phase: PhasePending}

	lock, err := state.AcquireLock(in.locksDir(), comp.Identity())
	if err != nil {
		res.Err = err
		return res
	}
	defer lock.Release()

	art, err := in.cfg.Catalog.Resolve(comp, &in.cfg.Host)
	if err != nil {
		res.Err = err
		return res
	}
	res.Phase = PhaseResolved
	res.Component = art.Component
	installPath := filepath.Join(in.installDir(), art.InstallDir)
	res.InstallPath = installPath

	// Idempotent short-circuit: the exact version is recorded and its
	// directory is populated, so the run touches nothing.
	in.mu.Lock()
	rec, recorded := in.store.Get(art.Component.Identity())
	in.mu.Unlock()
	if recorded && rec.Version == art.Component.Version && dirPopulated(rec.InstallPath) {
		res.Phase = PhaseConfigured
		res.InstallPath = rec.InstallPath
		res.Skipped = true
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	res.Phase = PhaseDownloading
	staged, err := in.downloader.Fetch(ctx, art, in.stagingDir())
	if err != nil {
		res.Err = err
		return res
	}
	defer staged.Cleanup()

	res.Phase = PhaseVerifying
	if art.SignatureURL != "" && len(in.cfg.Keyring) > 0 {
		sig, err := in.downloader.FetchSignature(ctx, art, in.stagingDir())
		if err != nil {
			res.Err = err
			return res
		}
		if sig != nil {
			err := fetch.VerifySignature(staged, sig, bytes.NewReader(in.cfg.Keyring))
			sig.Cleanup()
			if err != nil {
				res.Err = err
				return res
			}
		}
	}

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	res.Phase = PhaseExtracting
	// A leftover directory from an interrupted run is stale; the record
	// check above already passed healthy installs through.
	if _, err := os.Stat(installPath); err == nil {
		if err := os.RemoveAll(installPath); err != nil {
			res.Err = &archive.ExtractionError{Archive: staged.Path, Cause: err}
			return res
		}
	}
	if _, err := archive.Extract(ctx, staged.Path, art.Format, installPath); err != nil {
		res.Err = err
		return res
	}

	record := state.Record{
		Name:         string(art.Component.Name),
		TargetTriple: art.Component.Target,
		Version:      art.Component.Version,
		InstallPath:  installPath,
		InstalledAt:  time.Now().UTC(),
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	prev, hadPrev := in.store.Get(record.Identity())
	in.store.Put(record)
	res.Phase = PhaseRecorded

	if err := in.target.Apply(env.Compute(in.store.List(), in.cfg.Host)); err != nil {
		// Extracted files stay; a re-run retries the environment write.
		if hadPrev {
			in.store.Put(prev)
		} else {
			in.store.Remove(record.Identity())
		}
		res.Err = err
		return res
	}

	in.store.SetRunID(runID)
	if err := in.store.Persist(); err != nil {
		res.Err = err
		return res
	}

	res.Phase = PhaseConfigured
	return res
}

func (in *Installer) uninstallOne(ctx context.Context, runID string, comp catalog.Component) Result {
	res := Result{Component: comp, Phase: PhaseConfigured}

	lock, err := state.AcquireLock(in.locksDir(), comp.Identity())
	if err != nil {
		res.Err = err
		return res
	}
	defer lock.Release()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	in.mu.Lock()
	rec, ok := in.store.Get(comp.Identity())
	if !ok {
		in.mu.Unlock()
		res.Phase = PhaseRemoved
		res.Skipped = true
		return res
	}

	res.Phase = PhaseRemoving
	res.InstallPath = rec.InstallPath

	// Deregister first and make the removal durable before touching the
	// directory, so a crash never leaves a record pointing at nothing.
	in.store.Remove(comp.Identity())
	if err := in.target.Apply(env.Compute(in.store.List(), in.cfg.Host)); err != nil {
		in.store.Put(rec)
		in.mu.Unlock()
		res.Err = err
		return res
	}
	in.store.SetRunID(runID)
	if err := in.store.Persist(); err != nil {
		in.store.Put(rec)
		in.mu.Unlock()
		res.Err = err
		return res
	}
	in.mu.Unlock()

	if err := os.RemoveAll(rec.InstallPath); err != nil {
		res.Err = fmt.Errorf("remove install directory: %w", err)
		return res
	}

	res.Phase = PhaseRemoved
	return res
}

func (in *Installer) updateOne(ctx context.Context, runID string, comp catalog.Component) Result {
	in.mu.Lock()
	prev, hadPrev := in.store.Get(comp.Identity())
	in.mu.Unlock()

	// Empty version resolves to the newest published release.
	comp.Version = ""
	res := in.installOne(ctx, runID, comp)
	if res.Failed() || res.Skipped {
		return res
	}

	// The new version is recorded and configured; only now is the old
	// directory expendable.
	if hadPrev && prev.InstallPath != res.InstallPath {
		if err := os.RemoveAll(prev.InstallPath); err != nil {
			res.Err = fmt.Errorf("remove superseded install directory: %w", err)
		}
	}
	return res
}

// sweepStaging deletes staging files abandoned by interrupted runs.
// Fresh files are left alone in case a concurrent run owns them.
func (in *Installer) sweepStaging() {
	entries, err := os.ReadDir(in.stagingDir())
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-staleStagingAge)
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || info.IsDir() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			os.Remove(filepath.Join(in.stagingDir(), e.Name()))
		}
	}
}

func (in *Installer) installDir() string {
	return filepath.Join(in.cfg.RootDir, "install")
}

func (in *Installer) stagingDir() string {
	return filepath.Join(in.cfg.RootDir, "staging")
}

func (in *Installer) locksDir() string {
	return filepath.Join(in.cfg.RootDir, "locks")
}

// dirPopulated reports whether path is a directory with at least one
// entry. An empty directory counts as an unhealthy install.
func dirPopulated(path string) bool {
	entries, err := os.ReadDir(path)
	return err == nil && len(entries) > 0
}
