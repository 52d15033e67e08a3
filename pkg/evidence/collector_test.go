package evidence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/pkg/evidence"
	"github.com/macropower/ruler/pkg/signal"
	"github.com/macropower/ruler/pkg/vcs"
)

type stubSource struct {
	collect func(ctx context.Context) ([]signal.Signal, error)
	name    signal.Source
}

func (s *stubSource) Name() signal.Source { return s.name }

func (s *stubSource) Collect(ctx context.Context, _ string) ([]signal.Signal, error) {
	return s.collect(ctx)
}

func fixedSource(name signal.Source, sigs ...signal.Signal) *stubSource {
	return &stubSource{
		name: name,
		collect: func(context.Context) ([]signal.Signal, error) {
			return sigs, nil
		},
	}
}

func TestCollector_Collect(t *testing.T) {
	t.Parallel()

	c := evidence.NewCollector(time.Second,
		fixedSource(signal.CodePattern, signal.New("language", "go", signal.CodePattern, 0.6)),
		fixedSource(signal.Manifest,
			signal.New("orm", "prisma", signal.Manifest, 0.9),
			signal.New("language", "go", signal.Manifest, 0.9),
		),
	)
	assert.Equal(t, []signal.Source{signal.CodePattern, signal.Manifest}, c.Sources())

	sigs, err := c.Collect(t.Context(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, sigs, 3)
	assertSorted(t, sigs)
	assert.Equal(t, "language", sigs[0].Attribute)
	assert.Equal(t, "orm", sigs[2].Attribute)
}

func TestCollector_PartialFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	c := evidence.NewCollector(time.Second,
		fixedSource(signal.Manifest, signal.New("language", "go", signal.Manifest, 0.9)),
		&stubSource{
			name: signal.VCSHistory,
			collect: func(context.Context) ([]signal.Signal, error) {
				return []signal.Signal{signal.New("team", "solo", signal.VCSHistory, 0.3)}, boom
			},
		},
	)

	sigs, err := c.Collect(t.Context(), t.TempDir())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "vcs-history")
	assert.Len(t, sigs, 2, "partial results are kept")
}

func TestCollector_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	c := evidence.NewCollector(50*time.Millisecond,
		&stubSource{
			name: signal.CodePattern,
			collect: func(ctx context.Context) ([]signal.Signal, error) {
				<-ctx.Done()
				return []signal.Signal{signal.New("language", "go", signal.CodePattern, 0.5)}, ctx.Err()
			},
		},
		&stubSource{
			// Ignores its context entirely.
			name: signal.VCSHistory,
			collect: func(context.Context) ([]signal.Signal, error) {
				<-release
				return nil, nil
			},
		},
		fixedSource(signal.Manifest, signal.New("orm", "gorm", signal.Manifest, 0.9)),
	)

	start := time.Now()
	sigs, err := c.Collect(t.Context(), t.TempDir())
	assert.Less(t, time.Since(start), 2*time.Second)

	require.ErrorIs(t, err, evidence.ErrTimeout)
	assert.Equal(t, []string{"go"}, values(sigs, "language"))
	assert.Equal(t, []string{"gorm"}, values(sigs, "orm"))
}

func TestNewDefaultCollector(t *testing.T) {
	t.Parallel()

	cfg := evidence.NewConfig()
	cfg.Disable = []signal.Source{signal.Environment}

	vcsCfg := vcs.NewConfig()
	vcsCfg.Disabled = true

	c, err := evidence.NewDefaultCollector(cfg, vcsCfg)
	require.NoError(t, err)
	assert.Equal(t, []signal.Source{signal.Manifest, signal.CodePattern}, c.Sources())

	cfg.MaxFileSize = "huge"
	_, err = evidence.NewDefaultCollector(cfg, vcsCfg)
	require.ErrorIs(t, err, evidence.ErrInvalidConfig)
}

func TestCollector_Scenario(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"package.json":         `{"dependencies": {"express": "4", "prisma": "5", "@prisma/client": "5"}}`,
		"prisma/schema.prisma": "datasource db { provider = \"postgresql\" }\n",
		"src/index.js":         "const express = require('express')\napp.get('/', handler)\n",
		"src/routes/users.js":  "router.get('/users', list)\n",
	})

	cfg := evidence.NewConfig()
	cfg.Disable = []signal.Source{signal.Environment}

	vcsCfg := vcs.NewConfig()
	vcsCfg.Disabled = true

	c, err := evidence.NewDefaultCollector(cfg, vcsCfg)
	require.NoError(t, err)

	first, err := c.Collect(t.Context(), root)
	require.NoError(t, err)

	second, err := c.Collect(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, first, second, "collection is deterministic")

	assert.ElementsMatch(t, []string{"express", "express"}, values(first, "framework"))
	assert.Contains(t, values(first, "orm"), "prisma")
	assert.Empty(t, values(first, "testing"), "no tests yields no testing signal")
}
