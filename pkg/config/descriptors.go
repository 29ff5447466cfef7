package config

import (
	"fmt"
	"reflect"
	"sort"
)

// Descriptor describes one recognized option for help and validation
// surfaces.
type Descriptor struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Default string `json:"default"`
	Help    string `json:"help"`
}

var help = map[string]string{
	"timeout":           "wall clock budget for each check, 0 for none",
	"poll_interval":     "longest delay between polls of a running check for its result",
	"progress_interval": "minimum period between progress callbacks, 0 for every poll",
	"logic":             "initial logic (ALL or QF_BOOL), empty to choose during setup",
	"model":             "produce models for satisfiable checks",
	"unsat_core":        "produce unsat cores for unsatisfiable checks",
	"proof":             "produce proof certificates for unsatisfiable checks",
	"relevancy":         "restrict relevant literals to the cone of live assertions",
	"max_vars":          "variable budget, 0 for unlimited",
}

// Descriptors returns a Descriptor for every recognized option,
// ordered by name.
func Descriptors() []Descriptor {
	d := Default()
	v := reflect.ValueOf(d)
	t := v.Type()
	var result []Descriptor
	for name, i := range fieldsByName() {
		result = append(result, Descriptor{
			Name:    name,
			Type:    typeName(t.Field(i).Type),
			Default: fmt.Sprint(v.Field(i).Interface()),
			Help:    help[name],
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func typeName(t reflect.Type) string {
	if t.PkgPath() == "time" && t.Name() == "Duration" {
		return "duration"
	}
	return t.Kind().String()
}
