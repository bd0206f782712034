package refer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/components/pkg/apperr"
	"github.com/morezero/components/pkg/config"
	"github.com/morezero/components/pkg/locator"
)

func TestDependencyResolver_Configure(t *testing.T) {
	r := NewDependencyResolver()
	err := r.Configure(config.FromTuples(
		"dependencies.persistence", "dummies:persistence:memory:*:1.0",
		"dependencies.events", "*:events:*:*:*",
		"connection.port", "8090",
	))
	require.NoError(t, err)

	loc, ok := r.Locate("persistence")
	require.True(t, ok)
	assert.Equal(t, "memory", loc.Kind())
	_, ok = r.Locate("port")
	assert.False(t, ok)

	err = NewDependencyResolver().Configure(config.FromTuples("dependencies.bad", "a:b"))
	assert.True(t, apperr.IsCategory(err, apperr.CategoryMisconfiguration))
}

func TestDependencyResolver_PutLastWriteWins(t *testing.T) {
	r, err := NewDependencyResolverFromTuples("controller", "a:controller:*:*:1.0")
	require.NoError(t, err)
	r.Put("controller", locator.MustParse("b:controller:*:*:1.0"))

	loc, _ := r.Locate("controller")
	assert.Equal(t, "b", loc.Group())
}

func TestDependencyResolver_TwoStageFailure(t *testing.T) {
	refs := NewReferences()
	require.NoError(t, refs.Put(locator.MustParse("dummies:persistence:memory:default:1.0"), "store"))

	// Unknown name: configuration error.
	r := NewDependencyResolver()
	require.NoError(t, r.SetReferences(refs))
	_, err := r.GetOneRequired("controller")
	require.Error(t, err)
	assert.True(t, apperr.IsCategory(err, apperr.CategoryMisconfiguration))
	assert.True(t, apperr.HasCode(err, "UNKNOWN_DEPENDENCY"))

	// Known name with no match: reference error.
	r.Put("controller", locator.MustParse("dummies:controller:*:*:1.0"))
	_, err = r.GetOneRequired("controller")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, "REF_ERROR"))
	assert.False(t, apperr.IsCategory(err, apperr.CategoryMisconfiguration))

	_, err = r.GetRequired("controller")
	assert.True(t, apperr.HasCode(err, "REF_ERROR"))
}

func TestDependencyResolver_OptionalDowngrades(t *testing.T) {
	refs := NewReferences()
	r := NewDependencyResolver()
	require.NoError(t, r.SetReferences(refs))

	assert.Nil(t, r.GetOneOptional("missing"))
	assert.Empty(t, r.GetOptional("missing"))

	r.Put("events", locator.MustParse("*:events:*:*:*"))
	assert.Nil(t, r.GetOneOptional("events"))

	require.NoError(t, refs.Put(locator.MustParse("svc:events:nats:a:1.0"), "old"))
	require.NoError(t, refs.Put(locator.MustParse("svc:events:noop:b:1.0"), "new"))
	assert.Equal(t, "new", r.GetOneOptional("events"))
	assert.Equal(t, []any{"new", "old"}, r.GetOptional("events"))

	found, err := r.Find("events", true)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestDependencyResolver_NoReferences(t *testing.T) {
	r, err := NewDependencyResolverFromTuples("persistence", locator.MustParse("*:persistence:*:*:*"))
	require.NoError(t, err)

	_, err = r.GetOneRequired("persistence")
	assert.True(t, apperr.HasCode(err, "NO_REFERENCES"))
	assert.Nil(t, r.GetOneOptional("persistence"))
}

func TestTypedResolverHelpers(t *testing.T) {
	refs := NewReferences()
	require.NoError(t, refs.Put(locator.MustParse("svc:component:named:a:1.0"), &namedComponent{"a"}))

	r, err := NewDependencyResolverFromTuples(
		"component", "svc:component:*:*:*",
		"missing", "svc:other:*:*:*",
	)
	require.NoError(t, err)
	require.NoError(t, r.SetReferences(refs))

	c, err := Required[*namedComponent](r, "component")
	require.NoError(t, err)
	assert.Equal(t, "a", c.name)

	_, err = Required[string](r, "component")
	assert.True(t, apperr.HasCode(err, "REF_TYPE_MISMATCH"))

	_, ok := Dependency[*namedComponent](r, "missing")
	assert.False(t, ok)

	_, err = NewDependencyResolverFromTuples("x", 42)
	assert.True(t, apperr.HasCode(err, "BAD_DEPENDENCY"))
}
