package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func note(id string) Notification {
	return Notification{ID: id, Level: LevelInfo, Title: "t" + id}
}

func ids(s State) []string {
	out := make([]string, len(s.Items))
	for i, n := range s.Items {
		out[i] = n.ID
	}
	return out
}

func TestReduce(t *testing.T) {
	base := State{Items: []Notification{note("b"), note("a")}, Capacity: 3}

	tests := []struct {
		name   string
		state  State
		action Action
		want   []string
	}{
		{"push prepends", base, Push(note("c")), []string{"c", "b", "a"}},
		{"push trims to capacity", State{Items: []Notification{note("c"), note("b"), note("a")}, Capacity: 3}, Push(note("d")), []string{"d", "c", "b"}},
		{"push replaces same id", base, Push(note("a")), []string{"a", "b"}},
		{"dismiss removes", base, Dismiss("b"), []string{"a"}},
		{"dismiss unknown keeps state", base, Dismiss("zzz"), []string{"b", "a"}},
		{"clear empties", base, Clear(), []string{}},
		{"unknown action keeps state", base, Action{Type: "rename"}, []string{"b", "a"}},
		{"zero state gets default capacity", State{}, Push(note("x")), []string{"x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(tt.state, tt.action)
			assert.Equal(t, tt.want, ids(got))
			assert.Positive(t, got.Capacity)
		})
	}
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	state := State{Items: []Notification{note("b"), note("a")}, Capacity: 5}

	_ = Reduce(state, Push(note("c")))
	_ = Reduce(state, Dismiss("a"))
	_ = Reduce(state, Clear())

	assert.Equal(t, []string{"b", "a"}, ids(state))
}

func TestState_Find(t *testing.T) {
	state := State{Items: []Notification{note("a")}, Capacity: 5}

	n, ok := state.Find("a")
	assert.True(t, ok)
	assert.Equal(t, "ta", n.Title)

	_, ok = state.Find("b")
	assert.False(t, ok)
	assert.Equal(t, 1, state.Len())
}
