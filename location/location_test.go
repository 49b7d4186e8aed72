// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package location_test

import (
	"testing"

	"github.com/monitorizapt/sensorfleet/location"
	"github.com/stretchr/testify/require"
)

func TestTopics(t *testing.T) {
	l := location.LisboaCampusIPLuso
	require.Equal(t, "envira/pt/sensores/dados/Lisboa_Campus_IPLuso", l.DataTopic())
	require.Equal(t, "envira/pt/sensores/comandos/Lisboa_Campus_IPLuso", l.CommandTopic())
}

func TestSensorIDs(t *testing.T) {
	require.Equal(t, "PT-SENSOR-LISBOA_CAMPUS_IPLUSO", location.LisboaCampusIPLuso.SensorID())
	require.Equal(t, "PT-SENSOR-EVORA_UNIVERSIDADE", location.EvoraUniversidade.SensorID())

	seen := map[string]bool{}
	for _, l := range location.All() {
		id := l.SensorID()
		require.False(t, seen[id], "duplicate sensor id %s", id)
		seen[id] = true
	}
	require.Len(t, seen, 7)
}

func TestSanitize(t *testing.T) {
	require.Equal(t, "Evora___Universidade", location.Sanitize("Évora - Universidade"))
	require.Equal(t, "a_b_c", location.Sanitize("a-b c"))
	require.Equal(t, "Sao_Joao", location.Sanitize("São João"))
}

func TestLookup(t *testing.T) {
	l, err := location.ByKey("faro_marina")
	require.NoError(t, err)
	require.Equal(t, location.FaroMarina, l)

	l, err = location.BySegment("Braga_Sameiro")
	require.NoError(t, err)
	require.Equal(t, "Braga - Sameiro", l.Description())

	_, err = location.ByKey("MADEIRA")
	var nf *location.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "MADEIRA", nf.Name)
}

func TestAllIsACopy(t *testing.T) {
	all := location.All()
	all[0] = location.Location{}
	require.Equal(t, location.LisboaCampusIPLuso, location.All()[0])
}
