package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/signalsfoundry/celestial-catalog/ephem"
	"github.com/signalsfoundry/celestial-catalog/naif"
	"github.com/signalsfoundry/celestial-catalog/timectrl"
)

// fileSpec is the on-disk layout of a kernel file.
//
//	[meta]
//	kernels = ["de-lite.toml", "pck.toml"]   # relative to this file
//
//	[[name]]
//	name = "IO"
//	id = 501
//
//	[[body]]
//	id = 399
//	constants = { GM = [398600.435436], RADII = [6378.1366, 6378.1366, 6356.7519] }
//
//	[[frame]]
//	name = "IAU_EARTH"
//	id = 10013
//	class = "body-fixed"
//	center = 399
//
//	[[segment]]
//	target = 399
//	center = 3
//	frame = "J2000"
//	records = [[et, x, y, z, vx, vy, vz], ...]   # km, km/s
//
//	[[tle]]
//	target = -25544
//	name = "ISS"
//	line1 = "1 25544U ..."
//	line2 = "2 25544 ..."
//	begin = "2024-01-01T00:00:00Z"
//	end = "2024-01-02T00:00:00Z"
type fileSpec struct {
	Meta     *metaSpec     `toml:"meta"`
	Names    []nameSpec    `toml:"name"`
	Bodies   []bodySpec    `toml:"body"`
	Frames   []frameSpec   `toml:"frame"`
	Segments []segmentSpec `toml:"segment"`
	TLEs     []tleSpec     `toml:"tle"`
}

type metaSpec struct {
	Kernels []string `toml:"kernels"`
}

type nameSpec struct {
	Name string `toml:"name"`
	ID   int    `toml:"id"`
}

type bodySpec struct {
	ID        int                  `toml:"id"`
	Name      string               `toml:"name"`
	Constants map[string][]float64 `toml:"constants"`
}

type frameSpec struct {
	Name   string      `toml:"name"`
	ID     int         `toml:"id"`
	Class  string      `toml:"class"`
	Center int         `toml:"center"`
	Matrix [][]float64 `toml:"matrix"`
}

type segmentSpec struct {
	Target  int         `toml:"target"`
	Center  int         `toml:"center"`
	Frame   string      `toml:"frame"`
	Records [][]float64 `toml:"records"`
}

type tleSpec struct {
	Target int    `toml:"target"`
	Center *int   `toml:"center"`
	Name   string `toml:"name"`
	Line1  string `toml:"line1"`
	Line2  string `toml:"line2"`
	Begin  string `toml:"begin"`
	End    string `toml:"end"`
}

// kernelFile is a decoded and validated kernel, ready to merge into a pool.
type kernelFile struct {
	path     string
	meta     []string
	names    []nameEntry
	bodies   map[naif.ID]map[string][]float64
	frames   []frameDef
	segments []segment
}

type nameEntry struct {
	name string
	id   naif.ID
}

type frameDef struct {
	info ephem.FrameInfo
	// fixed is the J2000-to-frame rotation of an inertial frame.
	fixed *ephem.Matrix3
}

func (k *kernelFile) hasState() bool     { return len(k.segments) > 0 }
func (k *kernelFile) hasConstants() bool { return len(k.bodies) > 0 }

// readKernel loads and validates path. Missing files yield NOSUCHFILE and
// undecodable files BADKERNEL; structurally valid files with inconsistent
// data also wrap ephem.ErrDataIntegrity.
func readKernel(path string) (*kernelFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ephem.Diagnose("furnish", ephem.CodeNoSuchFile, "the file %q could not be located", path)
		}
		return nil, ephem.Diagnose("furnish", ephem.CodeNoSuchFile, "the file %q could not be read: %v", path, err)
	}
	return parseKernel(path, data)
}

func parseKernel(path string, data []byte) (*kernelFile, error) {
	var spec fileSpec
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, ephem.Diagnose("furnish", ephem.CodeBadKernel, "%s: %v", path, err)
	}
	kf, err := compile(path, spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ephem.ErrDataIntegrity, ephem.Diagnose("furnish", ephem.CodeBadKernel, "%s: %v", path, err))
	}
	return kf, nil
}

func compile(path string, spec fileSpec) (*kernelFile, error) {
	kf := &kernelFile{path: path, bodies: make(map[naif.ID]map[string][]float64)}
	if spec.Meta != nil {
		dir := filepath.Dir(path)
		for _, k := range spec.Meta.Kernels {
			if strings.TrimSpace(k) == "" {
				return nil, errors.New("meta: empty kernel path")
			}
			if !filepath.IsAbs(k) {
				k = filepath.Join(dir, k)
			}
			kf.meta = append(kf.meta, filepath.Clean(k))
		}
	}

	for i, n := range spec.Names {
		name := normalizeName(n.Name)
		if name == "" {
			return nil, fmt.Errorf("name %d: empty name", i)
		}
		kf.names = append(kf.names, nameEntry{name: name, id: naif.ID(n.ID)})
	}

	for i, b := range spec.Bodies {
		id := naif.ID(b.ID)
		if b.Name != "" {
			kf.names = append(kf.names, nameEntry{name: normalizeName(b.Name), id: id})
		}
		consts := kf.bodies[id]
		if consts == nil {
			consts = make(map[string][]float64, len(b.Constants))
			kf.bodies[id] = consts
		}
		for key, vals := range b.Constants {
			if len(vals) == 0 {
				return nil, fmt.Errorf("body %d (%d): constant %s has no values", i, id, key)
			}
			for _, v := range vals {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return nil, fmt.Errorf("body %d (%d): constant %s is not finite", i, id, key)
				}
			}
			if strings.EqualFold(key, ephem.KeyRadii) && len(vals) != 3 {
				return nil, fmt.Errorf("body %d (%d): RADII needs 3 values, got %d", i, id, len(vals))
			}
			consts[strings.ToUpper(key)] = vals
		}
	}

	for i, f := range spec.Frames {
		def, err := compileFrame(f)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		kf.frames = append(kf.frames, def)
	}

	for i, s := range spec.Segments {
		seg, err := newHermiteSegment(s)
		if err != nil {
			return nil, fmt.Errorf("segment %d (target %d): %w", i, s.Target, err)
		}
		kf.segments = append(kf.segments, seg)
	}

	for i, t := range spec.TLEs {
		seg, err := newTLESegment(t)
		if err != nil {
			return nil, fmt.Errorf("tle %d (target %d): %w", i, t.Target, err)
		}
		if t.Name != "" {
			kf.names = append(kf.names, nameEntry{name: normalizeName(t.Name), id: naif.ID(t.Target)})
		}
		kf.segments = append(kf.segments, seg)
	}
	return kf, nil
}

func compileFrame(f frameSpec) (frameDef, error) {
	name := normalizeName(f.Name)
	if name == "" {
		return frameDef{}, errors.New("empty frame name")
	}
	def := frameDef{info: ephem.FrameInfo{Name: name, ID: f.ID, Center: naif.ID(f.Center)}}
	switch strings.ToLower(f.Class) {
	case "", string(ephem.FrameInertial):
		def.info.Class = ephem.FrameInertial
		m := ephem.Identity3
		if len(f.Matrix) > 0 {
			if len(f.Matrix) != 3 {
				return frameDef{}, fmt.Errorf("%s: matrix needs 3 rows", name)
			}
			for r, row := range f.Matrix {
				if len(row) != 3 {
					return frameDef{}, fmt.Errorf("%s: matrix row %d needs 3 values", name, r)
				}
				copy(m[r][:], row)
			}
		}
		def.fixed = &m
	case string(ephem.FrameBodyFixed), "pck":
		def.info.Class = ephem.FrameBodyFixed
	default:
		return frameDef{}, fmt.Errorf("%s: unknown class %q", name, f.Class)
	}
	return def, nil
}

// parseEpochField accepts the epoch forms of timectrl.ParseEpoch.
func parseEpochField(field, value string) (timectrl.Epoch, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("missing %s", field)
	}
	et, err := timectrl.ParseEpoch(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return et, nil
}

// normalizeName upper-cases name and collapses interior whitespace.
func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToUpper(name)), " ")
}
