package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRequestEmpty(t *testing.T) {
	t.Parallel()
	controller := NewTypeCheckController(2)
	assert.Nil(t, controller.MakeRequest(nil))
}

func TestMakeRequestDrains(t *testing.T) {
	t.Parallel()
	controller := NewTypeCheckController(2)
	controller.PushChange("lib/a.sig")
	request := controller.MakeRequest(nil)
	require.NotNil(t, request)
	assert.Equal(t, 1, request.Total)
	assert.NotEmpty(t, request.GUID)

	// the changed set was drained
	assert.Nil(t, controller.MakeRequest(nil))
}

func TestMakeRequestDeterministic(t *testing.T) {
	t.Parallel()
	paths := []string{"lib/a.sig", "lib/b.sig", "lib/c.sig", "app/d.sig", "app/e.sig"}
	build := func() [][]string {
		controller := NewTypeCheckController(3)
		for _, path := range paths {
			controller.PushChange(path)
		}
		return controller.MakeRequest(nil).Assignments
	}
	first := build()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build())
	}
}

func TestMakeRequestPriorityFirst(t *testing.T) {
	t.Parallel()
	controller := NewTypeCheckController(1)
	for _, path := range []string{"z.sig", "m.sig", "a.sig", "q.sig"} {
		controller.PushChange(path)
	}
	controller.UpdatePriority([]string{"z.sig", "q.sig"}, nil)

	request := controller.MakeRequest(nil)
	require.NotNil(t, request)
	// priority paths lead in lexicographic order, the rest follow sorted
	assert.Equal(t, []string{"q.sig", "z.sig", "a.sig", "m.sig"}, request.Assignments[0])

	controller.UpdatePriority(nil, []string{"z.sig"})
	for _, path := range []string{"z.sig", "q.sig"} {
		controller.PushChange(path)
	}
	request = controller.MakeRequest(nil)
	assert.Equal(t, []string{"q.sig", "z.sig"}, request.Assignments[0])
}

func TestMakeRequestCarriesOverPending(t *testing.T) {
	t.Parallel()
	controller := NewTypeCheckController(1)
	controller.PushChange("a.sig")
	controller.PushChange("b.sig")
	first := controller.MakeRequest(nil)
	require.True(t, first.MarkCompleted("a.sig"))

	controller.PushChange("c.sig")
	second := controller.MakeRequest(first)
	assert.Equal(t, 2, second.Total)
	assert.ElementsMatch(t, []string{"b.sig", "c.sig"}, second.Assignments[0])
}

func TestCheckRequestAccounting(t *testing.T) {
	t.Parallel()
	controller := NewTypeCheckController(1)
	controller.PushChange("a.sig")
	controller.PushChange("b.sig")
	request := controller.MakeRequest(nil)

	assert.False(t, request.Finished())
	assert.Equal(t, 0, request.Percentage())

	assert.False(t, request.MarkCompleted("other.sig"), "paths outside the assignment leave counters untouched")
	assert.Equal(t, 0, request.Completed)

	assert.True(t, request.MarkCompleted("a.sig"))
	assert.Equal(t, 50, request.Percentage())
	assert.False(t, request.MarkCompleted("a.sig"), "a second completion of the same path does not count")

	assert.True(t, request.MarkCompleted("b.sig"))
	assert.True(t, request.Finished())
	assert.Equal(t, 100, request.Percentage())
}

func TestCheckRequestReassign(t *testing.T) {
	t.Parallel()
	controller := NewTypeCheckController(2)
	controller.PushChange("a.sig")
	controller.PushChange("b.sig")
	controller.PushChange("c.sig")
	request := controller.MakeRequest(nil)

	for _, path := range request.PendingFor(0) {
		request.Reassign(path, 1)
	}
	assert.Empty(t, request.PendingFor(0))
	assert.Len(t, request.PendingFor(1), 3)
}
