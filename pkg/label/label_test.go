package label_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/ruler/pkg/attr"
	"github.com/macropower/ruler/pkg/label"
)

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	r, err := label.NewResolver()
	require.NoError(t, err)

	tcs := map[string]struct {
		candidates label.Candidates
		want       label.Label
		wantErr    bool
	}{
		"current matches detected": {
			candidates: label.Candidates{Current: "gin", Detected: "gin", Recommended: "echo"},
			want:       label.Label{Kind: label.Current, Value: "gin"},
		},
		"current wins over detected": {
			candidates: label.Candidates{Current: "small", Detected: "large"},
			want:       label.Label{Kind: label.Current, Value: "small"},
		},
		"detected over recommended": {
			candidates: label.Candidates{Detected: "standard", Recommended: "full"},
			want:       label.Label{Kind: label.Detected, Value: "standard"},
		},
		"recommended only": {
			candidates: label.Candidates{Recommended: "full"},
			want:       label.Label{Kind: label.Recommended, Value: "full"},
		},
		"no candidates": {
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Resolve("testing", tc.candidates)
			if tc.wantErr {
				require.ErrorIs(t, err, label.ErrLabelConflict)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewResolver(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		precedence []label.Kind
		wantErr    bool
	}{
		"default":   {},
		"reordered": {precedence: []label.Kind{label.Detected, label.Current, label.Recommended}},
		"duplicate": {
			precedence: []label.Kind{label.Current, label.Current, label.Detected, label.Recommended},
			wantErr:    true,
		},
		"unknown": {
			precedence: []label.Kind{label.Current, "guessed", label.Detected, label.Recommended},
			wantErr:    true,
		},
		"incomplete": {
			precedence: []label.Kind{label.Current, label.Detected},
			wantErr:    true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r, err := label.NewResolver(tc.precedence...)
			if tc.wantErr {
				require.ErrorIs(t, err, label.ErrLabelConflict)
				return
			}

			require.NoError(t, err)
			assert.Len(t, r.Precedence(), 3)
		})
	}
}

func TestResolver_Reordered(t *testing.T) {
	t.Parallel()

	r, err := label.NewResolver(label.Detected, label.Current, label.Recommended)
	require.NoError(t, err)

	got, err := r.Resolve("scale", label.Candidates{Current: "small", Detected: "large"})
	require.NoError(t, err)
	assert.Equal(t, label.Label{Kind: label.Detected, Value: "large"}, got)
}

func TestResolver_ResolveAll(t *testing.T) {
	t.Parallel()

	r, err := label.NewResolver()
	require.NoError(t, err)

	got, err := r.ResolveAll(map[string]label.Candidates{
		"scale":   {Recommended: "prototype"},
		"testing": {Detected: "basic", Recommended: "standard"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]label.Label{
		"scale":   {Kind: label.Recommended, Value: "prototype"},
		"testing": {Kind: label.Detected, Value: "basic"},
	}, got)

	_, err = r.ResolveAll(map[string]label.Candidates{"scale": {}})
	require.ErrorIs(t, err, label.ErrLabelConflict)
}

func TestResolver_OptionLabels(t *testing.T) {
	t.Parallel()

	r, err := label.NewResolver()
	require.NoError(t, err)

	assert.Equal(t, map[string]label.Kind{
		"gin":  label.Current,
		"echo": label.Recommended,
	}, r.OptionLabels(label.Candidates{Current: "gin", Detected: "gin", Recommended: "echo"}))

	assert.Empty(t, r.OptionLabels(label.Candidates{}))
}

func TestRecommender(t *testing.T) {
	t.Parallel()

	reg := attr.Default()

	rec, err := label.NewRecommender(reg)
	require.NoError(t, err)

	tcs := map[string]struct {
		set       attr.Set
		attribute string
		want      string
	}{
		"default":          {set: reg.Defaults(), attribute: attr.Testing, want: "basic"},
		"large scale":      {set: reg.Defaults().With(attr.Scale, "large"), attribute: attr.Testing, want: "full"},
		"medium scale":     {set: reg.Defaults().With(attr.Scale, "medium"), attribute: attr.Observability, want: "standard"},
		"strict sla":       {set: reg.Defaults().With(attr.SLA, "99.99"), attribute: attr.Observability, want: "full"},
		"regulated":        {set: reg.Defaults().With(attr.DataSensitivity, "regulated"), attribute: attr.AuditLogging, want: attr.Yes},
		"multi compliance": {set: reg.Defaults().With(attr.Compliance, "gdpr", "soc2"), attribute: attr.AuditLogging, want: attr.Yes},
		"no rule":          {set: reg.Defaults(), attribute: attr.Language, want: "other"},
		"unknown":          {set: reg.Defaults(), attribute: "nope", want: ""},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := rec.Recommend(tc.attribute, func(name string) attr.Value {
				v, _ := tc.set.Get(name)
				return v
			})
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewRecommender_Invalid(t *testing.T) {
	t.Parallel()

	reg := attr.Default()

	tcs := map[string]label.Recommendation{
		"unknown attribute": {Attribute: "nope", Value: "x", When: []label.Condition{{Attribute: attr.Scale, Values: []string{"large"}}}},
		"invalid value":     {Attribute: attr.Testing, Value: "extreme", When: []label.Condition{{Attribute: attr.Scale, Values: []string{"large"}}}},
		"no conditions":     {Attribute: attr.Testing, Value: "full"},
		"invalid condition": {Attribute: attr.Testing, Value: "full", When: []label.Condition{{Attribute: attr.Scale, Values: []string{"huge"}}}},
	}

	for name, rec := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := label.NewRecommender(reg, rec)
			require.Error(t, err)
		})
	}
}

func TestConfig_New(t *testing.T) {
	t.Parallel()

	cfg := label.NewConfig()
	assert.Equal(t, label.DefaultPrecedence, cfg.Precedence)

	res, rec, err := cfg.New(attr.Default())
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.NotNil(t, rec)

	cfg.Precedence = []label.Kind{label.Current}
	_, _, err = cfg.New(attr.Default())
	require.ErrorIs(t, err, label.ErrLabelConflict)
}
