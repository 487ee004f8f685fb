// Package catalog holds the closed set of rural service types a job or offer
// may advertise.
//
// Ids follow the "<category>_<detail>" convention. The category is the prefix
// before the first underscore; an id without an underscore is its own category:
//
//	harvest_cocoa ─┐
//	harvest_acai  ─┼─► harvest
//	harvest_coffee┘
//	masonry ─────────► masonry
//
// The catalog is compiled into the binary and resolved once; adding a service
// type is a code change.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownServiceType is returned for ids that are not in the catalog.
var ErrUnknownServiceType = errors.New("unknown service type")

// ServiceType is a validated catalog entry.
type ServiceType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category returns the category prefix of the service type.
func (s ServiceType) Category() string { return Category(s.ID) }

var serviceTypes = map[string]string{
	"harvest_cocoa":      "Colheita de cacau",
	"harvest_acai":       "Colheita de açaí",
	"harvest_coffee":     "Colheita de café",
	"harvest_pepper":     "Colheita de pimenta-do-reino",
	"pruning_cocoa":      "Poda de cacau",
	"pruning_fruit":      "Poda de frutíferas",
	"planting_cocoa":     "Plantio de cacau",
	"planting_seedling":  "Plantio de mudas",
	"grafting_cocoa":     "Enxertia de cacau",
	"fermentation_cocoa": "Fermentação e secagem de cacau",
	"cleaning_pasture":   "Roçagem de pasto",
	"cleaning_land":      "Limpeza de terreno",
	"spraying_pest":      "Pulverização",
	"fencing":            "Cerca",
	"masonry":            "Alvenaria",
	"carpentry":          "Carpintaria",
	"driving_tractor":    "Operação de trator",
	"driving_truck":      "Frete e transporte",
	"livestock_cattle":   "Manejo de gado",
	"general_labor":      "Serviços gerais",
}

// ParseServiceType resolves id against the catalog. Ids are case-sensitive.
func ParseServiceType(id string) (ServiceType, error) {
	name, ok := serviceTypes[id]
	if !ok {
		return ServiceType{}, fmt.Errorf("%w %q", ErrUnknownServiceType, id)
	}
	return ServiceType{ID: id, Name: name}, nil
}

// ParseAll resolves every id, failing on the first unknown one.
func ParseAll(ids []string) ([]ServiceType, error) {
	out := make([]ServiceType, 0, len(ids))
	for _, id := range ids {
		st, err := ParseServiceType(id)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// All returns every catalog entry sorted by id.
func All() []ServiceType {
	out := make([]ServiceType, 0, len(serviceTypes))
	for id, name := range serviceTypes {
		out = append(out, ServiceType{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Category returns the substring of id before the first underscore, or id
// itself when there is none. It does not consult the catalog.
func Category(id string) string {
	prefix, _, _ := strings.Cut(id, "_")
	return prefix
}
