package services

import (
	"context"
	"fmt"
	"testing"

	"lumina/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommunity(t *testing.T) (*CommunityService, *AlertService) {
	t.Helper()
	var ids []models.Identity
	ids = append(ids, models.Identity{ID: "me", Username: "nova", FullName: "Nova Lee"})
	for i := 0; i < 25; i++ {
		ids = append(ids, models.Identity{ID: fmt.Sprintf("u%02d", i), Username: fmt.Sprintf("user%02d", i), FullName: "Someone", Mobile: "555"})
	}
	ids = append(ids, models.Identity{ID: "z", Username: "zara", FullName: "Zara Novak"})
	alerts := NewAlertService(nil)
	return NewCommunityService(newFakeProfiles(ids...), newPrefs(t), viewerOf("me", "nova"), alerts, nil), alerts
}

func TestCommunityService_Directory(t *testing.T) {
	svc, _ := newCommunity(t)
	dir := svc.Directory(context.Background())
	require.Len(t, dir, 20)
	for _, p := range dir {
		assert.NotEqual(t, "me", p.ID)
		assert.Empty(t, p.Mobile)
		assert.NotEmpty(t, p.Avatar)
	}
}

func TestCommunityService_Search(t *testing.T) {
	svc, _ := newCommunity(t)
	ctx := context.Background()

	assert.Empty(t, svc.Search(ctx, "n"))

	res := svc.Search(ctx, "NOV")
	require.Len(t, res, 1)
	assert.Equal(t, "z", res[0].ID)

	assert.Len(t, svc.Search(ctx, "user"), 10)
}

func TestCommunityService_ToggleFollow(t *testing.T) {
	svc, alerts := newCommunity(t)
	ctx := context.Background()
	svc.Directory(ctx)

	following, err := svc.ToggleFollow(ctx, "u01")
	require.NoError(t, err)
	assert.True(t, following)
	require.Len(t, alerts.List(), 1)
	assert.Equal(t, models.AlertFollow, alerts.List()[0].Kind)

	ids, err := svc.Following(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u01"}, ids)

	p, err := svc.Profile(ctx, "u01")
	require.NoError(t, err)
	assert.True(t, p.IsFollowing)

	following, err = svc.ToggleFollow(ctx, "u01")
	require.NoError(t, err)
	assert.False(t, following)
	assert.Len(t, alerts.List(), 1)

	ids, err = svc.Following(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
