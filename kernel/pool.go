// Package kernel implements ephem.Engine over a pool of TOML kernel files:
// body names, body constants, reference frames and tabulated or TLE state
// segments. Files are furnished into the pool in order; where loaded data
// overlaps, the most recently furnished file wins.
package kernel

import (
	_ "embed"
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"sync"

	"github.com/signalsfoundry/celestial-catalog/coverage"
	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

//go:embed builtin.toml
var builtinData []byte

// maxMetaDepth bounds metakernel nesting, which also breaks include cycles.
const maxMetaDepth = 8

// maxChain bounds the number of segments walked from a target to its root.
const maxChain = 32

var _ ephem.Engine = (*Pool)(nil)

// Pool is a kernel pool. It is safe for concurrent use.
type Pool struct {
	mu      sync.RWMutex
	builtin *kernelFile
	loaded  []loadedFile

	nameToID     map[string]naif.ID
	idToName     map[naif.ID]string
	known        map[naif.ID]bool
	constants    map[naif.ID]map[string][]float64
	framesByName map[string]frameDef
	framesByID   map[int]frameDef
	bodyFrames   map[naif.ID]frameDef
	segments     []segment
}

type loadedFile struct {
	path   string
	parent string // metakernel that pulled the file in, empty when furnished directly
	file   *kernelFile
}

// Option configures a Pool.
type Option func(*Pool)

// WithoutBuiltinNames omits the built-in name table. The J2000 and
// ECLIPJ2000 frames are always available.
func WithoutBuiltinNames() Option {
	return func(p *Pool) {
		p.builtin.names = nil
	}
}

// NewPool returns an empty pool holding only built-in names and frames.
func NewPool(opts ...Option) (*Pool, error) {
	builtin, err := parseKernel("builtin.toml", builtinData)
	if err != nil {
		return nil, fmt.Errorf("built-in table: %w", err)
	}
	for i, f := range builtin.frames {
		if f.info.Name == ephem.FrameEclipJ2000 {
			m := eclipticRotation()
			builtin.frames[i].fixed = &m
		}
	}
	p := &Pool{builtin: builtin}
	for _, opt := range opts {
		opt(p)
	}
	p.reindexLocked()
	return p, nil
}

// Furnish loads the kernel at path, following metakernel references. A
// file that is already loaded is moved to the end of the load order. The
// pool is unchanged when any file in the tree fails to load.
func (p *Pool) Furnish(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ephem.Diagnose("furnish", ephem.CodeNoSuchFile, "resolve %q: %v", path, err)
	}
	files, err := readTree(abs, "", 0)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, f := range files {
		p.removeLocked(f.path)
	}
	p.loaded = append(p.loaded, files...)
	p.reindexLocked()
	return nil
}

func readTree(path, parent string, depth int) ([]loadedFile, error) {
	if depth > maxMetaDepth {
		return nil, ephem.Diagnose("furnish", ephem.CodeBadKernel, "metakernel nesting exceeds %d levels at %s", maxMetaDepth, path)
	}
	kf, err := readKernel(path)
	if err != nil {
		return nil, err
	}
	out := []loadedFile{{path: path, parent: parent, file: kf}}
	for _, child := range kf.meta {
		sub, err := readTree(child, path, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

// Unload removes a furnished file and anything its metakernel pulled in.
func (p *Pool) Unload(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return ephem.Diagnose("unload", ephem.CodeNoSuchFile, "resolve %q: %v", path, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.removeLocked(abs) {
		return ephem.Diagnose("unload", ephem.CodeFileNotLoaded, "the file %q is not loaded", path)
	}
	p.reindexLocked()
	return nil
}

// removeLocked drops path and, recursively, the files it included.
func (p *Pool) removeLocked(path string) bool {
	var children []string
	found := false
	p.loaded = slices.DeleteFunc(p.loaded, func(f loadedFile) bool {
		switch {
		case f.path == path:
			found = true
			return true
		case f.parent == path:
			children = append(children, f.path)
			return true
		}
		return false
	})
	for _, c := range children {
		p.removeLocked(c)
	}
	return found
}

// Clear unloads every file.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = nil
	p.reindexLocked()
}

// Files returns the directly furnished files in load order.
func (p *Pool) Files() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, f := range p.loaded {
		if f.parent == "" {
			out = append(out, f.path)
		}
	}
	return out
}

// Reload re-reads every directly furnished file in its original order.
// On failure the previous contents stay in place.
func (p *Pool) Reload() error {
	top := p.Files()
	var next []loadedFile
	for _, path := range top {
		files, err := readTree(path, "", 0)
		if err != nil {
			return err
		}
		next = append(next, files...)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = next
	p.reindexLocked()
	return nil
}

// reindexLocked rebuilds the lookup tables from the built-in table and the
// loaded files, later files taking precedence.
func (p *Pool) reindexLocked() {
	p.nameToID = make(map[string]naif.ID)
	p.idToName = make(map[naif.ID]string)
	p.known = make(map[naif.ID]bool)
	p.constants = make(map[naif.ID]map[string][]float64)
	p.framesByName = make(map[string]frameDef)
	p.framesByID = make(map[int]frameDef)
	p.bodyFrames = make(map[naif.ID]frameDef)
	p.segments = nil

	files := make([]*kernelFile, 0, len(p.loaded)+1)
	files = append(files, p.builtin)
	for _, f := range p.loaded {
		files = append(files, f.file)
	}
	for _, kf := range files {
		canonical := make(map[naif.ID]bool)
		for _, n := range kf.names {
			p.nameToID[n.name] = n.id
			if !canonical[n.id] {
				canonical[n.id] = true
				p.idToName[n.id] = n.name
			}
		}
		for id, consts := range kf.bodies {
			dst := p.constants[id]
			if dst == nil {
				dst = make(map[string][]float64, len(consts))
				p.constants[id] = dst
			}
			for k, v := range consts {
				dst[k] = v
			}
			p.known[id] = true
		}
		for _, f := range kf.frames {
			p.framesByName[f.info.Name] = f
			p.framesByID[f.info.ID] = f
			if f.info.Class == ephem.FrameBodyFixed {
				p.bodyFrames[f.info.Center] = f
			}
		}
		for _, s := range kf.segments {
			p.known[s.target()] = true
			p.known[s.center()] = true
			p.segments = append(p.segments, s)
		}
	}
}

// ValidID reports whether id is named or has loaded data.
func (p *Pool) ValidID(id naif.ID) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, named := p.idToName[id]
	return named || p.known[id], nil
}

// NameToID translates a body name, or a decimal identifier string.
func (p *Pool) NameToID(name string) (naif.ID, bool, error) {
	norm := normalizeName(name)
	if norm == "" {
		return 0, false, ephem.Diagnose("name-to-id", ephem.CodeInvalidValue, "empty body name")
	}
	if n, err := strconv.Atoi(norm); err == nil {
		return naif.ID(n), true, nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.nameToID[norm]
	return id, ok, nil
}

// IDToName returns the canonical name of id.
func (p *Pool) IDToName(id naif.ID) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.idToName[id]
	return name, ok, nil
}

// BodyParameter returns a copy of the constant key for id.
func (p *Pool) BodyParameter(id naif.ID, key string) ([]float64, bool, error) {
	norm := normalizeName(key)
	if norm == "" {
		return nil, false, ephem.Diagnose("body-parameter", ephem.CodeInvalidValue, "empty constant name")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	vals, ok := p.constants[id][norm]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(vals), true, nil
}

func (p *Pool) FrameByName(name string) (ephem.FrameInfo, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, ok := p.framesByName[normalizeName(name)]
	return def.info, ok, nil
}

func (p *Pool) FrameByID(id int) (ephem.FrameInfo, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, ok := p.framesByID[id]
	return def.info, ok, nil
}

func (p *Pool) BodyFrame(id naif.ID) (ephem.FrameInfo, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, ok := p.bodyFrameOf(id)
	return def.info, ok, nil
}

// Rotation returns the matrix taking vectors expressed in from into to.
func (p *Pool) Rotation(from, to string, et timectrl.Epoch) (ephem.Matrix3, error) {
	const op = "rotation"
	p.mu.RLock()
	defer p.mu.RUnlock()
	src, err := p.lookupFrame(op, from)
	if err != nil {
		return ephem.Matrix3{}, err
	}
	dst, err := p.lookupFrame(op, to)
	if err != nil {
		return ephem.Matrix3{}, err
	}
	rSrc, err := p.toFrame(op, src, et)
	if err != nil {
		return ephem.Matrix3{}, err
	}
	rDst, err := p.toFrame(op, dst, et)
	if err != nil {
		return ephem.Matrix3{}, err
	}
	return rDst.Mul(rSrc.Transpose()), nil
}

// Sources lists loaded files of the given kind in load order.
func (p *Pool) Sources(kind ephem.SourceKind) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []string
	for _, f := range p.loaded {
		switch {
		case kind == ephem.SourceState && !f.file.hasState():
			continue
		case kind == ephem.SourceConstants && !f.file.hasConstants():
			continue
		}
		out = append(out, f.path)
	}
	return out
}

// Coverage returns the union of the spans of the segments for id in source.
func (p *Pool) Coverage(source string, id naif.ID) (coverage.Window, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		abs = filepath.Clean(source)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	idx := slices.IndexFunc(p.loaded, func(f loadedFile) bool { return f.path == abs })
	if idx < 0 {
		return coverage.Window{}, ephem.Diagnose("coverage", ephem.CodeFileNotLoaded, "the file %q is not loaded", source)
	}
	var w coverage.Window
	for _, s := range p.loaded[idx].file.segments {
		if s.target() != id {
			continue
		}
		if w, err = w.Add(s.span()); err != nil {
			return coverage.Window{}, err
		}
	}
	return w, nil
}

// State returns the state of target relative to observer in frame. Both
// bodies are walked up their segment chains until a common body is found.
func (p *Pool) State(target naif.ID, et timectrl.Epoch, frame string, observer naif.ID) (ephem.State, error) {
	const op = "state"
	p.mu.RLock()
	defer p.mu.RUnlock()
	def, err := p.lookupFrame(op, frame)
	if err != nil {
		return ephem.State{}, err
	}
	tChain, err := p.chain(target, et)
	if err != nil {
		return ephem.State{}, err
	}
	oChain, err := p.chain(observer, et)
	if err != nil {
		return ephem.State{}, err
	}

	var st ephem.State
	found := false
outer:
	for _, t := range tChain {
		for _, o := range oChain {
			if t.id == o.id {
				st = ephem.State{
					Position: t.rel.Position.Sub(o.rel.Position),
					Velocity: t.rel.Velocity.Sub(o.rel.Velocity),
				}
				found = true
				break outer
			}
		}
	}
	if !found {
		return ephem.State{}, ephem.Diagnose(op, ephem.CodeInsufficientData,
			"insufficient ephemeris data has been loaded to compute the state of %d relative to %d at the ephemeris epoch %s",
			target, observer, et)
	}
	st.LightTime = st.Position.Norm() / ephem.SpeedOfLight
	return p.rotateState(op, st, def, et)
}

// link is one step of a segment chain: the state of the chain's origin
// relative to id, in J2000.
type link struct {
	id  naif.ID
	rel ephem.State
}

func (p *Pool) chain(id naif.ID, et timectrl.Epoch) ([]link, error) {
	out := []link{{id: id}}
	cur := id
	var acc ephem.State
	for range maxChain {
		seg := p.covering(cur, et)
		if seg == nil {
			return out, nil
		}
		st, err := seg.state(et)
		if err != nil {
			return nil, ephem.Diagnose("state", ephem.CodeInsufficientData, "%v", err)
		}
		acc.Position = acc.Position.Add(st.Position)
		acc.Velocity = acc.Velocity.Add(st.Velocity)
		cur = seg.center()
		out = append(out, link{id: cur, rel: acc})
	}
	return nil, ephem.Diagnose("state", ephem.CodeBadKernel, "segment chain from %d exceeds %d links", id, maxChain)
}

// covering returns the most recently loaded segment for id containing et.
func (p *Pool) covering(id naif.ID, et timectrl.Epoch) segment {
	for i := len(p.segments) - 1; i >= 0; i-- {
		s := p.segments[i]
		if s.target() == id && s.span().Contains(et) {
			return s
		}
	}
	return nil
}
