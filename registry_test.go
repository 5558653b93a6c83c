package llmroute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsmend/llmroute"
)

func TestRegistry_LookupAndOrder(t *testing.T) {
	reg := llmroute.NewRegistry(
		llmroute.BackendModel{ID: "a", Provider: "p1"},
		llmroute.BackendModel{ID: "b", Provider: "p2"},
	)

	snap := reg.Snapshot()
	require.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"a", "b"}, snap.IDs())

	m, ok := snap.Get("a")
	require.True(t, ok)
	assert.Equal(t, "p1", m.Provider)

	_, ok = snap.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_PublishKeepsOldSnapshotValid(t *testing.T) {
	reg := llmroute.NewRegistry(llmroute.BackendModel{ID: "a"})

	old := reg.Snapshot()
	reg.Publish([]llmroute.BackendModel{{ID: "b"}, {ID: "c"}})

	// An in-flight request holding the old snapshot sees no change.
	_, ok := old.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, old.Len())

	fresh := reg.Snapshot()
	assert.Equal(t, 2, fresh.Len())
	_, ok = fresh.Get("a")
	assert.False(t, ok)
}

func TestSnapshot_WithCapability(t *testing.T) {
	reg := llmroute.NewRegistry(
		llmroute.BackendModel{ID: "a", Capabilities: []string{"triage"}},
		llmroute.BackendModel{ID: "b", Capabilities: []string{"triage", "analysis"}},
		llmroute.BackendModel{ID: "c", Capabilities: []string{"remediation"}},
	)

	snap := reg.Snapshot()
	assert.Equal(t, []string{"a", "b"}, snap.WithCapability("triage"))
	assert.Equal(t, []string{"b"}, snap.WithCapability("analysis"))
	assert.Empty(t, snap.WithCapability("unknown"))
}

func TestRegistry_DuplicateIDsKeepFirst(t *testing.T) {
	reg := llmroute.NewRegistry(
		llmroute.BackendModel{ID: "a", Provider: "first"},
		llmroute.BackendModel{ID: "a", Provider: "second"},
	)

	snap := reg.Snapshot()
	assert.Equal(t, 1, snap.Len())
	m, _ := snap.Get("a")
	assert.Equal(t, "first", m.Provider)
}
