package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentifyColumns(t *testing.T) {
	t.Run("typical export headers", func(t *testing.T) {
		headers := []string{"Nº", "Fecha", "Hora", "Resultado con incertidumbre (V/m)", "Sonda utilizada", "Latitud", "Longitud"}
		m, err := IdentifyColumns(headers)

		require.NoError(t, err)
		assert.Equal(t, ColumnMapping{
			FieldDate:   "Fecha",
			FieldTime:   "Hora",
			FieldResult: "Resultado con incertidumbre (V/m)",
			FieldProbe:  "Sonda utilizada",
			FieldLat:    "Latitud",
			FieldLon:    "Longitud",
		}, m)
	})

	t.Run("case insensitive substring", func(t *testing.T) {
		m, err := IdentifyColumns([]string{"FECHA DE MEDICION", "time (local)", "RESULTADO", "SONDA"})
		require.NoError(t, err)
		assert.Equal(t, "FECHA DE MEDICION", m[FieldDate])
		assert.Equal(t, "time (local)", m[FieldTime])
		assert.Equal(t, "RESULTADO", m[FieldResult])
	})

	t.Run("first header in sheet order wins", func(t *testing.T) {
		m, err := IdentifyColumns([]string{"Fecha", "Hora", "Resultado", "Resultado con incertidumbre", "Sonda"})
		require.NoError(t, err)
		assert.Equal(t, "Resultado", m[FieldResult])
	})

	t.Run("coordinates optional", func(t *testing.T) {
		m, err := IdentifyColumns([]string{"Fecha", "Hora", "Resultado", "Sonda"})
		require.NoError(t, err)
		_, hasLat := m[FieldLat]
		_, hasLon := m[FieldLon]
		assert.False(t, hasLat)
		assert.False(t, hasLon)
	})

	t.Run("one header may serve two fields", func(t *testing.T) {
		m, err := IdentifyColumns([]string{"Fecha y hora", "Resultado", "Sonda"})
		require.NoError(t, err)
		assert.Equal(t, "Fecha y hora", m[FieldDate])
		assert.Equal(t, "Fecha y hora", m[FieldTime])
	})

	t.Run("missing date reported", func(t *testing.T) {
		_, err := IdentifyColumns([]string{"Hora", "Resultado", "Sonda"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrMissingColumn))

		var mc *MissingColumnError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, FieldDate, mc.Field)
	})

	t.Run("first missing mandatory field reported", func(t *testing.T) {
		_, err := IdentifyColumns([]string{"Fecha", "Hora"})
		var mc *MissingColumnError
		require.ErrorAs(t, err, &mc)
		assert.Equal(t, FieldResult, mc.Field)
	})
}

func TestFindIndexColumn(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected string
		found    bool
	}{
		{"accented", []string{"Índice", "Fecha"}, "Índice", true},
		{"ordinal sign", []string{"Fecha", "N°"}, "N°", true},
		{"hash", []string{"#", "Fecha"}, "#", true},
		{"nro", []string{"Nro. medición"}, "Nro. medición", true},
		{"first match wins", []string{"Index", "Numero"}, "Index", true},
		{"none", []string{"Fecha", "Hora", "Sonda"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindIndexColumn(tt.headers)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}
