// Package session holds one catalog session: the kernel pool, the object
// registry and the reference frame, guarded by a single mutex. Servers and
// the CLI reach the core packages only through a Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/internal/logging"
	"github.com/signalsfoundry/celestial-catalog/internal/observability"
	"github.com/signalsfoundry/celestial-catalog/kernel"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/registry"
)

// ErrInvalidArgument marks malformed caller input such as an empty object
// reference or an unknown filter.
var ErrInvalidArgument = errors.New("invalid argument")

// Options configure a Session.
type Options struct {
	// Frame is the initial reference frame; J2000 when empty.
	Frame string
	// WithoutBuiltinNames drops the built-in solar system name table.
	WithoutBuiltinNames bool
	Logger              logging.Logger
	Metrics             *observability.Collector
}

// Session is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	id      string
	pool    *kernel.Pool
	eng     *observability.InstrumentedEngine
	reg     *registry.Registry
	frame   ephem.FrameInfo
	log     logging.Logger
	metrics *observability.Collector

	unsubscribe func()
}

// New creates an empty session with its own kernel pool.
func New(opts Options) (*Session, error) {
	var poolOpts []kernel.Option
	if opts.WithoutBuiltinNames {
		poolOpts = append(poolOpts, kernel.WithoutBuiltinNames())
	}
	pool, err := kernel.NewPool(poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("new kernel pool: %w", err)
	}

	id := uuid.NewString()
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}
	s := &Session{
		id:      id,
		pool:    pool,
		eng:     observability.Instrument(pool, opts.Metrics),
		log:     log.With(logging.String("session_id", id)),
		metrics: opts.Metrics,
	}
	s.reg = registry.New(s.eng)
	s.unsubscribe = s.reg.Subscribe(s.onRegistryEvent)

	frame := opts.Frame
	if frame == "" {
		frame = ephem.FrameJ2000
	}
	if err := s.SetReferenceFrame(context.Background(), frame); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Validator confirms identifiers against the session's loaded kernels.
func (s *Session) Validator() naif.Validator { return s.pool }

// Close detaches the session from its registry events.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// engine binds the instrumented engine to ctx so spans nest under the
// caller's span. Callers hold s.mu.
func (s *Session) engine(ctx context.Context) ephem.Engine {
	eng := s.eng.WithContext(ctx)
	s.reg.SetEngine(eng)
	return eng
}

// LoadKernel furnishes a kernel file (or metakernel) into the session pool.
func (s *Session) LoadKernel(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Furnish(path); err != nil {
		s.log.Error(ctx, "kernel load failed", logging.String("path", path), logging.Err(err))
		return fmt.Errorf("load kernel %q: %w", path, err)
	}
	files := s.pool.Sources(ephem.SourceAny)
	s.metrics.SetKernelFiles(len(files))
	s.log.Info(ctx, "kernel loaded", logging.String("path", path), logging.Int("files", len(files)))
	return nil
}

// UnloadKernel removes a furnished file. Tracked objects stay in the
// registry; queries needing the removed data fail until it is reloaded.
func (s *Session) UnloadKernel(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.pool.Unload(path); err != nil {
		return fmt.Errorf("unload kernel %q: %w", path, err)
	}
	s.metrics.SetKernelFiles(len(s.pool.Sources(ephem.SourceAny)))
	s.log.Info(ctx, "kernel unloaded", logging.String("path", path))
	return nil
}

// Kernels lists the directly furnished kernels in load order.
func (s *Session) Kernels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Files()
}

// KernelFiles lists every loaded file, metakernel members included.
func (s *Session) KernelFiles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool.Sources(ephem.SourceAny)
}

// Reload re-reads every furnished kernel. On failure the previous data
// stays loaded. The reference frame is re-validated against the new data
// and falls back to J2000 when it disappeared.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.pool.Reload()
	files := s.pool.Sources(ephem.SourceAny)
	s.metrics.RecordReload(len(files), err)
	if err != nil {
		s.log.Error(ctx, "kernel reload failed", logging.Err(err))
		return fmt.Errorf("reload kernels: %w", err)
	}

	info, ok, ferr := s.engine(ctx).FrameByName(s.frame.Name)
	switch {
	case ferr != nil || !ok:
		s.log.Warn(ctx, "reference frame vanished on reload; using J2000", logging.String("frame", s.frame.Name))
		s.frame, _, _ = s.pool.FrameByName(ephem.FrameJ2000)
	default:
		s.frame = info
	}
	s.log.Info(ctx, "kernels reloaded", logging.Int("files", len(files)))
	return nil
}

// ReferenceFrame returns the frame states and orientations are reported in.
func (s *Session) ReferenceFrame() ephem.FrameInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// SetReferenceFrame selects the reporting frame by name.
func (s *Session) SetReferenceFrame(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty frame name", ErrInvalidArgument)
	}
	info, ok, err := s.engine(ctx).FrameByName(name)
	if err != nil {
		return fmt.Errorf("set reference frame %q: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("%w: frame %q", ephem.ErrNoFrameAvailable, name)
	}
	s.frame = info
	s.log.Debug(ctx, "reference frame set", logging.String("frame", info.Name))
	return nil
}

func (s *Session) onRegistryEvent(ev registry.Event) {
	switch ev.Type {
	case registry.EventObjectAdded:
		s.log.Debug(context.Background(), "object added",
			logging.Int("id", int(ev.Object.ID())),
			logging.String("name", ev.Object.Name()),
			logging.String("kind", ev.Object.Kind().String()),
		)
	case registry.EventCleared:
		s.log.Info(context.Background(), "registry cleared")
	}
	if s.metrics == nil {
		return
	}
	counts := map[string]int{
		celestial.KindPlain.String(): 0,
		celestial.KindBody.String():  0,
	}
	for _, obj := range s.reg.All() {
		counts[obj.Kind().String()]++
	}
	s.metrics.SetRegistryCounts(counts)
}
