package reflection

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeName(t *testing.T) {
	tests := []struct {
		name string
		typ  reflect.Type
		want string
	}{
		{"builtin", reflect.TypeOf(0), "int"},
		{"byte alias", reflect.TypeOf(byte(0)), "uint8"},
		{"named", reflect.TypeOf(time.Time{}), "time.Time"},
		{"local", reflect.TypeOf(node{}), "github.com/hengadev/savex/internal/reflection.node"},
		{"pointer", reflect.TypeOf(&node{}), "*github.com/hengadev/savex/internal/reflection.node"},
		{"slice", reflect.TypeOf([]string{}), "[]string"},
		{"array", reflect.TypeOf([4]uint16{}), "[4]uint16"},
		{"map", reflect.TypeOf(map[string][]int{}), "map[string][]int"},
		{"empty interface", reflect.TypeOf((*any)(nil)).Elem(), "any"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeName(tt.typ))
		})
	}
}

func TestResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register(reflect.TypeOf(node{}))

	tests := []struct {
		name string
		want reflect.Type
	}{
		{"int64", reflect.TypeOf(int64(0))},
		{"[]string", reflect.TypeOf([]string{})},
		{"[3]float32", reflect.TypeOf([3]float32{})},
		{"map[string]map[int]bool", reflect.TypeOf(map[string]map[int]bool{})},
		{"map[[2]int]string", reflect.TypeOf(map[[2]int]string{})},
		{"*github.com/hengadev/savex/internal/reflection.node", reflect.TypeOf(&node{})},
		{"[]github.com/hengadev/savex/internal/reflection.node", reflect.TypeOf([]node{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reg.Resolve(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, name := range []string{"example.com/unknown.Type", "map[string", "[x]int", "map[[]int]bool"} {
		_, ok := reg.Resolve(name)
		assert.False(t, ok, name)
	}
}

func TestDescribeRegistersName(t *testing.T) {
	reg := NewRegistry()

	d := reg.Describe(reflect.TypeOf(account{}), true)

	got, ok := reg.Resolve(d.Name)
	require.True(t, ok)
	assert.Equal(t, reflect.TypeOf(account{}), got)
	assert.Equal(t, KindStruct, d.Kind)
	assert.Equal(t, KindBinary, reg.Describe(reflect.TypeOf(time.Time{}), true).Kind)
}
