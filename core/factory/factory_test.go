package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type optimizer struct{ Rounds int }

type optimizerConf struct {
	Rounds int           `json:"rounds"`
	Budget time.Duration `json:"budget"`
}

func TestRegistryCreate(t *testing.T) {
	reg := NewRegistry[*optimizer]()
	require.NoError(t, reg.Register("swap", func(conf map[string]any) (*optimizer, error) {
		var c optimizerConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		return &optimizer{Rounds: c.Rounds}, nil
	}))
	inst, err := reg.Create(ModuleConfig{Type: "swap", Conf: map[string]any{"rounds": 3}})
	require.NoError(t, err)
	assert.Equal(t, 3, inst.Rounds)
}

func TestRegistryErrors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))
	_, err := reg.Create(ModuleConfig{Type: "y"})
	assert.ErrorContains(t, err, "unknown module type")
	assert.Panics(t, func() { reg.MustRegister("x", func(map[string]any) (int, error) { return 0, nil }) })
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry[int]()
	reg.MustRegister("noop", func(map[string]any) (int, error) { return 0, nil })
	reg.MustRegister("influx", func(map[string]any) (int, error) { return 0, nil })
	assert.Equal(t, []string{"influx", "noop"}, reg.Names())
}

func TestDecodeWeakTypes(t *testing.T) {
	var c optimizerConf
	require.NoError(t, Decode(map[string]any{"rounds": "7", "budget": "1m30s"}, &c))
	assert.Equal(t, 7, c.Rounds)
	assert.Equal(t, 90*time.Second, c.Budget)
}
