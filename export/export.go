// Package export flattens exported interaction records into downloadable
// CSV or JSON documents.
package export

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"componentlab/api/models"
)

// ErrNoData is returned when there is nothing to export; no output is written.
var ErrNoData = errors.New("no hay datos para exportar")

const DateLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"Componente", "Acción", "Fecha", "Tipo Usuario", "Nombre Usuario", "Email Usuario"}

// Envelope is the JSON body served by the export endpoint.
type Envelope struct {
	Success bool                  `json:"success"`
	Data    []models.ExportRecord `json:"data"`
}

// Filename names a download produced at t, e.g. estadisticas-componentes-2025-03-01.csv.
func Filename(t time.Time, ext string) string {
	return fmt.Sprintf("estadisticas-componentes-%s.%s", t.UTC().Format("2006-01-02"), ext)
}

// CSV writes the header plus one row per record. Every field is quoted.
func CSV(w io.Writer, records []models.ExportRecord) error {
	if len(records) == 0 {
		return ErrNoData
	}

	bw := bufio.NewWriter(w)
	writeRow(bw, csvHeader, false)
	for _, r := range records {
		name, email := "", ""
		if r.User != nil {
			name, email = r.User.Name, r.User.Email
		}
		bw.WriteByte('\n')
		writeRow(bw, []string{
			r.ComponentName,
			r.Action,
			r.Timestamp.UTC().Format(DateLayout),
			r.UserType.Label(),
			name,
			email,
		}, true)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string, quote bool) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		if !quote {
			w.WriteString(f)
			continue
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
}

// JSON writes the response envelope pretty-printed with two-space indentation.
func JSON(w io.Writer, env Envelope) error {
	if len(env.Data) == 0 {
		return ErrNoData
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
