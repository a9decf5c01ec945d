package registry

import (
	"github.com/signalsfoundry/celestial-catalog/celestial"
	"github.com/signalsfoundry/celestial-catalog/naif"
)

func (r *Registry) filter(keep func(naif.ID) bool) []celestial.Object {
	var out []celestial.Object
	for _, obj := range r.objects {
		if keep(obj.ID()) {
			out = append(out, obj)
		}
	}
	return out
}

// Barycenters returns the SSB and planetary barycenters in insertion order.
func (r *Registry) Barycenters() []celestial.Object {
	return r.filter(func(id naif.ID) bool { return naif.IsBarycenter(r.eng, id) })
}

// Planets returns the planets in insertion order.
func (r *Registry) Planets() []celestial.Object {
	return r.filter(func(id naif.ID) bool { return naif.IsPlanet(r.eng, id) })
}

// Moons returns every moon in insertion order.
func (r *Registry) Moons() []celestial.Object {
	return r.filter(func(id naif.ID) bool { return naif.IsMoon(r.eng, id) })
}

// MoonsOf returns the moons sharing a system with obj, which may be the
// planet or its barycenter.
func (r *Registry) MoonsOf(obj celestial.Object) []celestial.Object {
	system := obj.ID()
	if naif.IsBody(r.eng, system) {
		system = naif.Parent(r.eng, system)
	}
	if !naif.IsPlanetaryBarycenter(r.eng, system) {
		return nil
	}
	return r.filter(func(id naif.ID) bool {
		return naif.IsMoon(r.eng, id) && naif.Parent(r.eng, id) == system
	})
}
