package project

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T, projects ...Project) *Registry {
	t.Helper()
	reg := NewRegistry()
	for i := range projects {
		require.NoError(t, reg.Add(context.Background(), &projects[i]))
	}
	return reg
}

func setStatus(s Status) func(Status) (Status, bool) {
	return func(current Status) (Status, bool) {
		return s, current != s
	}
}

func TestRegistry_Create(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()

	p, err := reg.Create(ctx, "site", "/home/user/site")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)

	_, err = reg.Create(ctx, "other", "/home/user/site")
	assert.True(t, errors.Is(err, ErrProjectExists), "duplicate path must be rejected, got %v", err)

	_, err = reg.Create(ctx, "", "/x")
	assert.True(t, errors.Is(err, ErrEmptyProjectName))
}

func TestRegistry_AddDuplicateID(t *testing.T) {
	reg := newTestRegistry(t, Project{ID: "1", Name: "a", Path: "/a"})

	err := reg.Add(context.Background(), &Project{ID: "1", Name: "b", Path: "/b"})
	assert.True(t, errors.Is(err, ErrProjectExists))
}

func TestRegistry_AddKeepsPrivateCopy(t *testing.T) {
	p := Project{ID: "1", Name: "a", Path: "/a"}
	reg := newTestRegistry(t, p)

	p.Name = "mutated"
	got, err := reg.Get("1")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	got.Status = StatusRunning
	again, _ := reg.Get("1")
	assert.Equal(t, StatusUnknown, again.Status)
}

func TestRegistry_ListKeepsRegistrationOrder(t *testing.T) {
	reg := newTestRegistry(t,
		Project{ID: "c", Name: "c", Path: "/c"},
		Project{ID: "a", Name: "a", Path: "/a"},
		Project{ID: "b", Name: "b", Path: "/b"},
	)
	require.NoError(t, reg.Remove(context.Background(), "a"))
	require.NoError(t, reg.Add(context.Background(), &Project{ID: "a2", Name: "a", Path: "/a"}))

	var ids []string
	for _, p := range reg.List() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"c", "b", "a2"}, ids)
	assert.Equal(t, 3, reg.Len())
}

func TestRegistry_Remove(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(t, Project{ID: "1", Name: "a", Path: "/a"})

	require.NoError(t, reg.Remove(ctx, "1"))
	assert.False(t, reg.Has("1"))

	_, err := reg.Get("1")
	assert.True(t, errors.Is(err, ErrProjectNotFound))

	assert.True(t, errors.Is(reg.Remove(ctx, "1"), ErrProjectNotFound))
	assert.True(t, errors.Is(reg.Remove(ctx, ""), ErrEmptyProjectID))

	// the path is free again
	require.NoError(t, reg.Add(ctx, &Project{ID: "2", Name: "a", Path: "/a"}))
}

func TestRegistry_UpdateStatus(t *testing.T) {
	reg := newTestRegistry(t, Project{ID: "1", Name: "a", Path: "/a"})

	assert.Equal(t, WriteApplied, reg.UpdateStatus("1", setStatus(StatusRunning)))
	assert.Equal(t, WriteUnchanged, reg.UpdateStatus("1", setStatus(StatusRunning)))
	assert.Equal(t, WriteMissing, reg.UpdateStatus("2", setStatus(StatusRunning)))
	assert.Equal(t, WriteMissing, reg.UpdateStatus("", setStatus(StatusRunning)))

	p, err := reg.Get("1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, p.Status)
	assert.Equal(t, int64(1), reg.Writes(GroupStatus))
	assert.Equal(t, int64(0), reg.Writes(GroupSettings))
}

func TestRegistry_UpdateSettingsSeesPrivateCopy(t *testing.T) {
	reg := newTestRegistry(t, Project{
		ID: "1", Name: "a", Path: "/a",
		Settings: Settings{Config: map[string]any{"k": "v"}},
	})

	res := reg.UpdateSettings("1", func(cur Settings) (Settings, bool) {
		cur.Config["k"] = "changed-in-place"
		return cur, false
	})
	assert.Equal(t, WriteUnchanged, res)

	p, _ := reg.Get("1")
	assert.Equal(t, "v", p.Settings.Config["k"])
	assert.Equal(t, int64(0), reg.Writes(GroupSettings))
}

func TestRegistry_Subscribe(t *testing.T) {
	reg := newTestRegistry(t, Project{ID: "1", Name: "a", Path: "/a"})

	var changes []Change
	reg.Subscribe(func(c Change) { changes = append(changes, c) })

	reg.UpdateStatus("1", setStatus(StatusRunning))
	reg.UpdateStatus("1", setStatus(StatusRunning))
	reg.UpdateSettings("1", func(cur Settings) (Settings, bool) {
		cur.Repository = "git@example/repo"
		return cur, true
	})

	require.Len(t, changes, 2)
	assert.Equal(t, GroupStatus, changes[0].Group)
	assert.Equal(t, StatusRunning, changes[0].Project.Status)
	assert.Equal(t, GroupSettings, changes[1].Group)
	assert.Equal(t, "git@example/repo", changes[1].Project.Settings.Repository)
}

func TestRegistry_ConcurrentFieldGroupWrites(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	for i := 0; i < 8; i++ {
		require.NoError(t, reg.Add(ctx, &Project{
			ID: fmt.Sprintf("p%d", i), Name: "n", Path: fmt.Sprintf("/p%d", i),
		}))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("p%d", i)
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.UpdateStatus(id, setStatus(Status(fmt.Sprintf("s%d", j%2))))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.UpdateSettings(id, func(cur Settings) (Settings, bool) {
					cur.Config = map[string]any{"n": int64(j)}
					return cur, true
				})
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				reg.UpdateSettings(id, func(cur Settings) (Settings, bool) {
					cur.Repository = "git@example/repo"
					return cur, true
				})
				_ = reg.List()
			}
		}()
	}
	wg.Wait()

	for _, p := range reg.List() {
		assert.Equal(t, "git@example/repo", p.Settings.Repository)
		assert.Equal(t, map[string]any{"n": int64(99)}, p.Settings.Config)
	}
}
