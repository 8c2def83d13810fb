package csvfile

import "strings"

type column int

const (
	colCCTE column = iota
	colProvince
	colLocality
	colResult
	colDate
	colTime
	colSourceFile
	colCaseNumber
	colProbe
	colLat
	colLon
	colLoadedAt
	numColumns
)

// canonicalHeaders is the header row written for the master table, in
// column order.
var canonicalHeaders = [numColumns]string{
	colCCTE:       "CCTE",
	colProvince:   "Provincia",
	colLocality:   "Localidad",
	colResult:     "Resultado",
	colDate:       "Fecha",
	colTime:       "Hora",
	colSourceFile: "Nombre Archivo",
	colCaseNumber: "Expediente",
	colProbe:      "Sonda",
	colLat:        "Lat",
	colLon:        "Lon",
	colLoadedAt:   "FechaCarga",
}

// headerAliases maps normalized header spellings found in older snapshots
// to their canonical column.
var headerAliases = map[string]column{
	"ccte":                        colCCTE,
	"provincia":                   colProvince,
	"localidad":                   colLocality,
	"resultado":                   colResult,
	"resultado_con_incertidumbre": colResult,
	"fecha":                       colDate,
	"hora":                        colTime,
	"time":                        colTime,
	"nombrearchivo":               colSourceFile,
	"nombre_archivo":              colSourceFile,
	"archivo":                     colSourceFile,
	"expediente":                  colCaseNumber,
	"sonda":                       colProbe,
	"sonda_utilizada":             colProbe,
	"lat":                         colLat,
	"latitud":                     colLat,
	"lon":                         colLon,
	"longitud":                    colLon,
	"fechacarga":                  colLoadedAt,
	"fecha_carga":                 colLoadedAt,
}

var accentFolder = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// normalizeHeader lowercases h, folds accents and joins words with
// underscores: "Nombre Archivo" -> "nombre_archivo".
func normalizeHeader(h string) string {
	h = accentFolder.Replace(strings.ToLower(strings.TrimSpace(h)))
	return strings.Join(strings.Fields(h), "_")
}

// resolveHeaders maps each header position to a canonical column, or -1 for
// columns kept as extras. Only the first header resolving to a column is
// used.
func resolveHeaders(headers []string) []column {
	out := make([]column, len(headers))
	taken := make(map[column]bool, numColumns)
	for i, h := range headers {
		c, ok := headerAliases[normalizeHeader(h)]
		if !ok || taken[c] {
			out[i] = -1
			continue
		}
		taken[c] = true
		out[i] = c
	}
	return out
}
