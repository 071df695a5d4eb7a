package testutils

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingT captures assertion failures instead of failing the test.
type recordingT struct {
	errors []string
}

func (r *recordingT) Errorf(format string, args ...interface{}) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func TestJSONAsserter(t *testing.T) {
	t.Run("equal documents pass regardless of key order", func(t *testing.T) {
		rt := &recordingT{}
		NewJSONAsserter(rt).Assert(`{"b": 1, "a": [1, 2]}`, `{"a": [1, 2], "b": 1}`)
		assert.Empty(t, rt.errors)
	})

	t.Run("root arrays are compared", func(t *testing.T) {
		rt := &recordingT{}
		NewJSONAsserter(rt).Assert(`[{"name": "A"}]`, `[{"name": "B"}]`)
		require.Len(t, rt.errors, 1)
		assert.Contains(t, rt.errors[0], "JSON assertion failed")
	})

	t.Run("null matches empty array", func(t *testing.T) {
		rt := &recordingT{}
		NewJSONAsserter(rt).AssertValue(map[string][]string{"devices": nil}, `{"devices": []}`)
		assert.Empty(t, rt.errors)
	})

	t.Run("options", func(t *testing.T) {
		rt := &recordingT{}
		NewJSONAsserter(rt).
			WithOptions(WithIgnoreExtraKeys(true), WithIgnoredFields("elapsed"), WithIgnoreArrayOrder(true)).
			Assert(`{"ids": [2, 1], "extra": true, "elapsed": 3}`, `{"ids": [1, 2], "elapsed": 9}`)
		assert.Empty(t, rt.errors)
	})

	t.Run("invalid JSON is reported", func(t *testing.T) {
		rt := &recordingT{}
		NewJSONAsserter(rt).Assert(`{`, `{}`)
		require.Len(t, rt.errors, 1)
		assert.Contains(t, rt.errors[0], "invalid actual JSON")
	})
}

func TestTextAsserter(t *testing.T) {
	t.Run("trailing whitespace and surrounding blank lines are ignored", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserter(rt).Assert("NAME  STATUS   \nKeyboard  connected\n", "\nNAME  STATUS\nKeyboard  connected\n")
		assert.Empty(t, rt.errors)
	})

	t.Run("differences produce a unified diff", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserter(rt).Assert("Connected Mouse", "Connected Keyboard")
		require.Len(t, rt.errors, 1)
		assert.Contains(t, rt.errors[0], "-Connected Keyboard")
		assert.Contains(t, rt.errors[0], "+Connected Mouse")
	})

	t.Run("empty lines can be ignored", func(t *testing.T) {
		rt := &recordingT{}
		NewTextAsserter(rt).WithOptions(WithIgnoreEmptyLines(true)).Assert("a\n\nb", "a\nb")
		assert.Empty(t, rt.errors)
	})
}

func TestScriptedRunner(t *testing.T) {
	r := NewScriptedRunner().
		On("blueutil --connect AA", ScriptedResponse{Stderr: "busy", ExitCode: 1}).
		On("blueutil --connect AA", ScriptedResponse{})

	res, err := r.Run(context.Background(), "blueutil", "--connect", "AA")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	for i := 0; i < 2; i++ {
		res, err = r.Run(context.Background(), "blueutil", "--connect", "AA")
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode, "the last response MUST repeat")
	}

	_, err = r.Run(context.Background(), "blueutil", "--pair", "AA")
	assert.ErrorContains(t, err, "unexpected command: blueutil --pair AA")

	assert.Equal(t, 3, r.CallCount("blueutil --connect AA"))
	assert.Len(t, r.Calls(), 4)
}

func TestScriptedRunner_Concurrent(t *testing.T) {
	r := NewScriptedRunner().On("true", ScriptedResponse{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Run(context.Background(), "true")
		}()
	}
	wg.Wait()

	assert.Equal(t, 20, r.CallCount("true"))
}

func TestInventoryReport(t *testing.T) {
	assert.Equal(t, `{"SPBluetoothDataType":[]}`, InventoryReport())
	assert.Equal(t, `{"SPBluetoothDataType":[{},{"a":1}]}`, InventoryReport(`{}`, `{"a":1}`))
}
