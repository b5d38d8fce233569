package util_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter-labs/jobhunter/internal/util"
)

type posting struct {
	Title  string
	Tags   []string
	Extra  map[string]interface{}
	When   time.Time
	hidden []int
}

func TestDeepCopy_JSONShapes(t *testing.T) {
	src := map[string]interface{}{
		"name":   "Ada",
		"skills": []interface{}{"go", map[string]interface{}{"level": 3.0}},
		"empty":  map[string]interface{}{},
		"nil":    nil,
	}
	cpy := util.DeepCopy(src).(map[string]interface{})
	require.Equal(t, src, cpy)

	cpy["skills"].([]interface{})[1].(map[string]interface{})["level"] = 1.0
	assert.Equal(t, 3.0, src["skills"].([]interface{})[1].(map[string]interface{})["level"])
}

func TestDeepCopy_Structs(t *testing.T) {
	when := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	src := &posting{
		Title:  "Backend Engineer",
		Tags:   []string{"go"},
		Extra:  map[string]interface{}{"remote": true},
		When:   when,
		hidden: []int{1},
	}
	cpy := util.DeepCopy(src).(*posting)
	require.NotSame(t, src, cpy)
	assert.Equal(t, src.Title, cpy.Title)
	assert.Equal(t, when, cpy.When)
	assert.Equal(t, []int{1}, cpy.hidden, "unexported fields are copied by assignment")

	cpy.Tags[0] = "rust"
	cpy.Extra["remote"] = false
	assert.Equal(t, "go", src.Tags[0])
	assert.Equal(t, true, src.Extra["remote"])
}

func TestDeepCopy_Cycles(t *testing.T) {
	m := map[string]interface{}{"name": "loop"}
	m["self"] = m
	cpy := util.DeepCopy(m).(map[string]interface{})
	inner := cpy["self"].(map[string]interface{})
	assert.Equal(t, "loop", inner["name"])

	inner["name"] = "changed"
	assert.Equal(t, "changed", cpy["name"], "the cycle is preserved inside the copy")
	assert.Equal(t, "loop", m["name"])
}

func TestDeepCopy_NilsAndScalars(t *testing.T) {
	assert.Nil(t, util.DeepCopy(nil))
	assert.Equal(t, 7, util.DeepCopy(7))
	assert.Equal(t, "s", util.DeepCopy("s"))

	var nilMap map[string]interface{}
	assert.Nil(t, util.DeepCopy(nilMap))
	assert.NotNil(t, util.DeepCopyMap(nil))

	src := []interface{}{nil, []int(nil)}
	assert.Equal(t, src, util.DeepCopy(src))
}
