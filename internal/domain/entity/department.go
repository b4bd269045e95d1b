package entity

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Department identificador de departamento. Los valores válidos vienen de configuración.
type Department string

// NormalizeDepartment pliega mayúsculas y quita acentos: "Logística " -> "logistica".
func NormalizeDepartment(s string) Department {
	s = strings.TrimSpace(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return Department(cases.Fold().String(out))
}

// DepartmentSet lista de departamentos permitidos (allow-list de configuración).
type DepartmentSet struct {
	allowed map[Department]struct{}
}

// NewDepartmentSet construye el conjunto normalizando cada entrada; ignora vacíos.
func NewDepartmentSet(values ...string) DepartmentSet {
	set := DepartmentSet{allowed: make(map[Department]struct{}, len(values))}
	for _, v := range values {
		d := NormalizeDepartment(v)
		if d == "" {
			continue
		}
		set.allowed[d] = struct{}{}
	}
	return set
}

// Parse normaliza s y confirma que pertenece al conjunto.
func (s DepartmentSet) Parse(v string) (Department, bool) {
	d := NormalizeDepartment(v)
	if d == "" {
		return "", false
	}
	_, ok := s.allowed[d]
	return d, ok
}

// Contains indica si d (ya normalizado) es válido.
func (s DepartmentSet) Contains(d Department) bool {
	_, ok := s.allowed[d]
	return ok
}

// Values devuelve los departamentos ordenados.
func (s DepartmentSet) Values() []Department {
	out := make([]Department, 0, len(s.allowed))
	for d := range s.allowed {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
