package cel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{"ByteCount * 8", []string{"ByteCount"}},
		{"a + b * a", []string{"a", "b"}},
		{"ceilDiv(bits, 8)", []string{"bits"}},
		{"hdr.len - 2", []string{"hdr"}},
		{"'quoted' == name", []string{"name"}},
		{"true ? 1 : 0", nil},
		{"Count", []string{"Count"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractVariables(tt.expr))
		})
	}
}

func TestExpressionPool_EvaluateInt(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	tests := []struct {
		name   string
		expr   string
		params map[string]any
		want   int64
	}{
		{"Literal", "5", nil, 5},
		{"Uint8Var", "ByteCount * 8", map[string]any{"ByteCount": uint8(5)}, 40},
		{"Uint64Var", "Count", map[string]any{"Count": uint64(37)}, 37},
		{"Conditional", "Flag ? 2 : 0", map[string]any{"Flag": true}, 2},
		{"CeilDiv", "ceilDiv(Bits, 8)", map[string]any{"Bits": int64(37)}, 5},
		{"BitAnd", "bitAnd(Header, 0x0F)", map[string]any{"Header": uint64(0xA7)}, 7},
		{"ShiftRight", "bitShiftRight(Header, 4)", map[string]any{"Header": uint64(0xA7)}, 0xA},
		{"Min", "min(Len, 4)", map[string]any{"Len": int64(9)}, 4},
		{"Max", "max(Len - 10, 0)", map[string]any{"Len": int64(9)}, 0},
		{"Abs", "abs(Len)", map[string]any{"Len": int64(-3)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pool.EvaluateInt(tt.expr, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpressionPool_Errors(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	_, err = pool.EvaluateInt("Count +", map[string]any{"Count": 1})
	assert.Error(t, err)

	_, err = pool.EvaluateInt("Name", map[string]any{"Name": "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want an integer")

	_, err = pool.EvaluateInt("Missing + 1", nil)
	assert.Error(t, err)

	_, err = pool.EvaluateInt("ceilDiv(1, 0)", nil)
	assert.Error(t, err)
}

func TestExpressionPool_Caches(t *testing.T) {
	pool, err := NewExpressionPool()
	require.NoError(t, err)

	p1, err := pool.GetExpression("A + 1")
	require.NoError(t, err)
	p2, err := pool.GetExpression("A + 1")
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, pool.Len())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := pool.EvaluateInt("A + 1", map[string]any{"A": 1})
			assert.NoError(t, err)
			assert.Equal(t, int64(2), v)
		}()
	}
	wg.Wait()
}

func TestDefaultPool(t *testing.T) {
	p1, err := DefaultPool()
	require.NoError(t, err)
	p2, err := DefaultPool()
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}

func TestNewExpressionPoolWithEnv_Nil(t *testing.T) {
	_, err := NewExpressionPoolWithEnv(nil)
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "a=1, b=x", Describe(map[string]any{"b": "x", "a": 1}))
}
