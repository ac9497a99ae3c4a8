package budget

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Domain vocabularies for Brazilian construction budgets: federation units,
// construction standards, building types and month names. Matching is
// accent-insensitive and case-insensitive.

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize strips accents and uppercases, so "São Paulo" and "SAO PAULO"
// compare equal.
func Normalize(s string) string {
	out, _, err := transform.String(stripAccents, s)
	if err != nil {
		out = s
	}
	return strings.ToUpper(strings.TrimSpace(out))
}

// stateByName maps both two-letter codes and full state names (normalized)
// to the canonical federation unit code.
var stateByName = map[string]string{
	"AC": "AC", "AL": "AL", "AP": "AP", "AM": "AM", "BA": "BA", "CE": "CE",
	"DF": "DF", "ES": "ES", "GO": "GO", "MA": "MA", "MT": "MT", "MS": "MS",
	"MG": "MG", "PA": "PA", "PB": "PB", "PR": "PR", "PE": "PE", "PI": "PI",
	"RJ": "RJ", "RN": "RN", "RS": "RS", "RO": "RO", "RR": "RR", "SC": "SC",
	"SP": "SP", "SE": "SE", "TO": "TO",

	"ACRE": "AC", "ALAGOAS": "AL", "AMAPA": "AP", "AMAZONAS": "AM",
	"BAHIA": "BA", "CEARA": "CE", "DISTRITO FEDERAL": "DF",
	"ESPIRITO SANTO": "ES", "GOIAS": "GO", "MARANHAO": "MA",
	"MATO GROSSO": "MT", "MATO GROSSO DO SUL": "MS", "MINAS GERAIS": "MG",
	"PARA": "PA", "PARAIBA": "PB", "PARANA": "PR", "PERNAMBUCO": "PE",
	"PIAUI": "PI", "RIO DE JANEIRO": "RJ", "RIO GRANDE DO NORTE": "RN",
	"RIO GRANDE DO SUL": "RS", "RONDONIA": "RO", "RORAIMA": "RR",
	"SANTA CATARINA": "SC", "SAO PAULO": "SP", "SERGIPE": "SE",
	"TOCANTINS": "TO",
}

// standardSynonyms maps canonical construction standards to the informal
// terms users write.
var standardSynonyms = map[string][]string{
	"MINIMO": {"minimo", "simples", "economico", "popular", "baixo"},
	"BASICO": {"basico", "intermediario", "padrao", "medio"},
}

// buildingTypeSynonyms maps canonical building types to informal terms.
var buildingTypeSynonyms = map[string][]string{
	"RESIDENCIAL": {
		"residencial", "residencias", "casas", "unidades habitacionais",
		"moradias", "habitacoes", "unidades", "casas populares", "casa",
	},
}

// residentialSubtypes maps direct type names to their internal codes.
var residentialSubtypes = map[string]string{
	"CASA":        "RESIDENCIAL_CASA",
	"APARTAMENTO": "RESIDENCIAL_APARTAMENTO",
	"SOBRADO":     "RESIDENCIAL_SOBRADO",
	"KITNET":      "RESIDENCIAL_KITNET",
	"KITINETE":    "RESIDENCIAL_KITNET",
	"STUDIO":      "RESIDENCIAL_KITNET",
}

var monthByName = map[string]int{
	"JANEIRO": 1, "JAN": 1,
	"FEVEREIRO": 2, "FEV": 2,
	"MARCO": 3, "MAR": 3,
	"ABRIL": 4, "ABR": 4,
	"MAIO": 5, "MAI": 5,
	"JUNHO": 6, "JUN": 6,
	"JULHO": 7, "JUL": 7,
	"AGOSTO": 8, "AGO": 8,
	"SETEMBRO": 9, "SET": 9,
	"OUTUBRO": 10, "OUT": 10,
	"NOVEMBRO": 11, "NOV": 11,
	"DEZEMBRO": 12, "DEZ": 12,
}

// ResolveState normalizes a state reference to its federation unit code.
// Falls back to substring matching against full names, with reduced
// confidence.
func ResolveState(input string) (uf string, confidence float64) {
	if input == "" {
		return "", 0
	}
	in := Normalize(input)
	if uf, ok := stateByName[in]; ok {
		return uf, 1.0
	}
	for name, uf := range stateByName {
		if len(name) > 2 && (strings.Contains(name, in) || strings.Contains(in, name)) {
			return uf, 0.8
		}
	}
	return "", 0
}

// ResolveStandard normalizes a construction standard reference.
func ResolveStandard(input string) (standard string, confidence float64) {
	if input == "" {
		return "", 0
	}
	in := Normalize(input)
	for canonical, synonyms := range standardSynonyms {
		for _, syn := range synonyms {
			s := Normalize(syn)
			if s == in {
				return canonical, 1.0
			}
			if strings.Contains(s, in) || strings.Contains(in, s) {
				return canonical, 0.8
			}
		}
	}
	return "", 0
}

// ResolveBuildingType normalizes a building type reference. Direct subtype
// names (casa, sobrado) take precedence over the generic residential bucket.
func ResolveBuildingType(input string) (buildingType string, confidence float64) {
	if input == "" {
		return "", 0
	}
	in := Normalize(input)
	if sub, ok := residentialSubtypes[in]; ok {
		return sub, 1.0
	}
	for canonical, synonyms := range buildingTypeSynonyms {
		for _, syn := range synonyms {
			s := Normalize(syn)
			if in == s || strings.Contains(s, in) || strings.Contains(in, s) {
				return canonical, 1.0
			}
		}
	}
	return "", 0
}

// ResolveMonth converts a month name or number string to 1..12.
func ResolveMonth(input string) (int, bool) {
	in := strings.TrimSpace(input)
	if in == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(in); err == nil {
		if n >= 1 && n <= 12 {
			return n, true
		}
		return 0, false
	}
	if m, ok := monthByName[Normalize(in)]; ok {
		return m, true
	}
	return 0, false
}

// unitSynonyms maps informal measurement unit spellings to the canonical
// SINAPI unit codes.
var unitSynonyms = map[string]string{
	"M2": "M2", "M²": "M2", "METRO QUADRADO": "M2", "METROS QUADRADOS": "M2",
	"M3": "M3", "M³": "M3", "METRO CUBICO": "M3", "METROS CUBICOS": "M3",
	"M": "M", "ML": "M", "METRO": "M", "METRO LINEAR": "M", "METROS": "M",
	"UN": "UN", "UND": "UN", "UNID": "UN", "UNIDADE": "UN", "UNIDADES": "UN",
	"KG": "KG", "QUILO": "KG", "QUILOGRAMA": "KG",
	"L": "L", "LITRO": "L", "LITROS": "L",
	"H": "H", "HORA": "H", "HORAS": "H",
	"VB": "VB", "VERBA": "VB",
	"CJ": "CJ", "CONJUNTO": "CJ",
	"PC": "PC", "PECA": "PC", "PECAS": "PC",
	"SC": "SC", "SACO": "SC",
}

// NormalizeUnit maps a measurement unit to its canonical SINAPI code.
// Unknown units pass through normalized, so novel catalog units still
// compare consistently.
func NormalizeUnit(input string) string {
	in := Normalize(input)
	if canonical, ok := unitSynonyms[in]; ok {
		return canonical
	}
	return in
}

// UnitsCompatible reports whether two measurement units refer to the same
// canonical unit. A missing unit on either side is treated as compatible,
// since catalog entries do not always carry one.
func UnitsCompatible(a, b string) bool {
	na, nb := NormalizeUnit(a), NormalizeUnit(b)
	if na == "" || nb == "" {
		return true
	}
	return na == nb
}
