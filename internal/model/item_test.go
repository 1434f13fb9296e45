package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFromSubjectType(t *testing.T) {
	cases := map[string]Kind{
		"Issue":       KindIssue,
		"PullRequest": KindPullRequest,
		"Commit":      KindCommit,
		"Release":     KindRelease,
		"CheckSuite":  KindCheckSuite,
		"Discussion":  KindDiscussion,
		"RepositoryInvitation": KindOther,
		"": KindOther,
	}

	for subjectType, want := range cases {
		assert.Equal(t, want, KindFromSubjectType(subjectType), "subject type %q", subjectType)
	}
}

func TestItemGroup(t *testing.T) {
	assert.Equal(t, "acme", Item{RepoFullName: "acme/widgets"}.Group())
	assert.Equal(t, "acme", Item{RepoFullName: "acme/"}.Group())
	assert.Equal(t, "standalone", Item{RepoFullName: "standalone"}.Group())
	assert.Equal(t, "", Item{}.Group())
}

func TestPatchApply(t *testing.T) {
	item := Item{ID: "1", Title: "hello", Unread: true, Subscribed: true}

	// Empty patch changes nothing.
	assert.Equal(t, item, Patch{}.Apply(item))

	unread := false
	patched := Patch{Unread: &unread}.Apply(item)
	assert.False(t, patched.Unread)
	assert.True(t, patched.Subscribed)
	assert.Equal(t, "hello", patched.Title)

	// The original is untouched.
	assert.True(t, item.Unread)

	subscribed := false
	patched = Patch{Subscribed: &subscribed}.Apply(patched)
	assert.False(t, patched.Subscribed)
	assert.False(t, patched.Unread)
}
