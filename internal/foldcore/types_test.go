package foldcore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecayParamsValidate(t *testing.T) {
	require.NoError(t, DecayParams{StrengthWeight: 0.3, HalfLifeDays: 30}.Validate())
	require.NoError(t, DecayParams{StrengthWeight: 0, HalfLifeDays: 1}.Validate())
	require.NoError(t, DecayParams{StrengthWeight: 1, HalfLifeDays: 1}.Validate())

	err := DecayParams{StrengthWeight: 1.5, HalfLifeDays: 30}.Validate()
	require.Error(t, err)
	assert.Equal(t, InvalidInput, KindOf(err))

	err = DecayParams{StrengthWeight: 0.3, HalfLifeDays: 0}.Validate()
	require.Error(t, err)
	assert.Equal(t, InvalidInput, KindOf(err))
}

func TestProjectValidate(t *testing.T) {
	valid := Project{Slug: "p", Root: "/tmp/p", Decay: DecayParams{StrengthWeight: 0.3, HalfLifeDays: 30}}
	require.NoError(t, valid.Validate())

	noSlug := valid
	noSlug.Slug = ""
	require.Error(t, noSlug.Validate())

	noRoot := valid
	noRoot.Root = ""
	require.Error(t, noRoot.Validate())

	badDecay := valid
	badDecay.Decay.HalfLifeDays = -1
	require.Error(t, badDecay.Validate())
}

func TestSourceValid(t *testing.T) {
	assert.True(t, SourceFile.Valid())
	assert.True(t, SourceAgent.Valid())
	assert.True(t, SourceGit.Valid())
	assert.False(t, Source("bogus").Valid())
}

func TestLinkTypeValid(t *testing.T) {
	for _, lt := range []LinkType{LinkRelated, LinkReferences, LinkDependsOn, LinkModifies, LinkContains, LinkAffects} {
		assert.True(t, lt.Valid())
	}
	assert.False(t, LinkType("bogus").Valid())
}

func TestLinkValidate(t *testing.T) {
	conf := 0.5
	valid := Link{SourceMemoryID: "a", TargetMemoryID: "b", LinkType: LinkRelated, Confidence: &conf}
	require.NoError(t, valid.Validate())

	self := Link{SourceMemoryID: "a", TargetMemoryID: "a", LinkType: LinkRelated}
	err := self.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSelfLink))

	badType := Link{SourceMemoryID: "a", TargetMemoryID: "b", LinkType: "bogus"}
	require.Error(t, badType.Validate())

	badConf := -0.1
	badConfidence := Link{SourceMemoryID: "a", TargetMemoryID: "b", LinkType: LinkRelated, Confidence: &badConf}
	require.Error(t, badConfidence.Validate())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(JobPending, JobRunning))
	assert.True(t, CanTransition(JobPending, JobCancelled))
	assert.True(t, CanTransition(JobRunning, JobRetry))
	assert.True(t, CanTransition(JobRetry, JobRunning))
	assert.False(t, CanTransition(JobCompleted, JobRunning))
	assert.False(t, CanTransition(JobPending, JobCompleted))
}

func TestJobString(t *testing.T) {
	j := Job{ID: "j1", Type: "index_repo", Status: JobRunning, Attempts: 2}
	assert.Contains(t, j.String(), "j1")
	assert.Contains(t, j.String(), "index_repo")
	assert.Contains(t, j.String(), "running")
}

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "fold_myproj", CollectionName("MyProj"))
	assert.Equal(t, "fold_a_b", CollectionName("a/b"))
	assert.Equal(t, "fold_", CollectionName(""))
}
