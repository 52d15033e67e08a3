package mcp_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/pkg/engine"
	"github.com/macropower/ruler/pkg/mcp"
)

func TestSessionStore(t *testing.T) {
	t.Parallel()

	st, err := mcp.NewSessionStore(0)
	require.NoError(t, err)

	id := st.Add(engine.Session{Root: "/a"})
	assert.Len(t, id, 36)

	got, err := st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "/a", got.Root)

	_, err = st.Update(id, func(engine.Session) (engine.Session, error) {
		return engine.Session{}, errors.New("boom")
	})
	require.Error(t, err)

	got, err = st.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "/a", got.Root)

	next, err := st.Update(id, func(s engine.Session) (engine.Session, error) {
		s.Root = "/b"
		return s, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "/b", next.Root)

	st.Remove(id)

	_, err = st.Get(id)
	require.ErrorIs(t, err, mcp.ErrUnknownSession)

	_, err = st.Update(id, func(s engine.Session) (engine.Session, error) { return s, nil })
	require.ErrorIs(t, err, mcp.ErrUnknownSession)
}
