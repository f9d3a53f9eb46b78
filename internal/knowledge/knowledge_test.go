package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_Matches(t *testing.T) {
	precios := map[string]interface{}{"categoria": "precios"}
	turnos := map[string]interface{}{"categoria": "servicios", "tags": []interface{}{"turnos", "sabado"}}
	typed := map[string]interface{}{"tags": []string{"agenda"}}

	assert.True(t, Filter{}.Matches(precios))
	assert.True(t, Filter{Categories: []string{"precios"}}.Matches(precios))
	assert.False(t, Filter{Categories: []string{"politica"}}.Matches(precios))

	agenda := Filter{Tags: []string{"turnos", "agenda"}}
	assert.True(t, agenda.Matches(turnos))
	assert.True(t, agenda.Matches(typed))
	assert.False(t, agenda.Matches(precios))

	either := Filter{Categories: []string{"precios"}, Tags: []string{"agenda"}}
	assert.True(t, either.Matches(precios))
	assert.True(t, either.Matches(typed))
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampScore(-0.2))
	assert.Equal(t, 1.0, ClampScore(1.0000001))
	assert.Equal(t, 0.5, ClampScore(0.5))
}
