package services

import (
	"testing"
	"time"

	"github.com/agiledragon/gomonkey/v2"
	"github.com/peopleflow/approval-engine/models"
	"github.com/stretchr/testify/assert"
)

// FixedTime is used to patch time.Now in tests.
var FixedTime = time.Date(2025, time.March, 5, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestActiveDelegateForEffectiveness(t *testing.T) {
	patches := gomonkey.ApplyFunc(time.Now, func() time.Time {
		return FixedTime
	})
	defer patches.Reset()

	tests := []struct {
		name       string
		delegation models.Delegation
		wantFound  bool
	}{
		{
			name: "active delegation inside its window",
			delegation: models.Delegation{
				DelegatorID: "alice", DelegateID: "dora",
				StartsAt: FixedTime.Add(-time.Hour),
				EndsAt:   timePtr(FixedTime.Add(time.Hour)),
				IsActive: true,
			},
			wantFound: true,
		},
		{
			name: "open ended delegation",
			delegation: models.Delegation{
				DelegatorID: "alice", DelegateID: "dora",
				StartsAt: FixedTime.Add(-time.Hour),
				IsActive: true,
			},
			wantFound: true,
		},
		{
			name: "not yet started",
			delegation: models.Delegation{
				DelegatorID: "alice", DelegateID: "dora",
				StartsAt: FixedTime.Add(time.Hour),
				IsActive: true,
			},
			wantFound: false,
		},
		{
			name: "already ended",
			delegation: models.Delegation{
				DelegatorID: "alice", DelegateID: "dora",
				StartsAt: FixedTime.Add(-2 * time.Hour),
				EndsAt:   timePtr(FixedTime.Add(-time.Hour)),
				IsActive: true,
			},
			wantFound: false,
		},
		{
			name: "revoked delegation",
			delegation: models.Delegation{
				DelegatorID: "alice", DelegateID: "dora",
				StartsAt: FixedTime.Add(-time.Hour),
				IsActive: false,
			},
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, db := setupTestService(t)
			assert.NoError(t, db.Create(&tt.delegation).Error)

			delegate, err := svc.ActiveDelegateFor("alice")
			assert.NoError(t, err)
			if tt.wantFound {
				assert.NotNil(t, delegate)
				assert.Equal(t, "dora", *delegate)
			} else {
				assert.Nil(t, delegate)
			}
		})
	}
}

// Overlapping effective delegations: the most recently created one wins.
func TestActiveDelegateForOverlapTieBreak(t *testing.T) {
	patches := gomonkey.ApplyFunc(time.Now, func() time.Time {
		return FixedTime
	})
	defer patches.Reset()

	svc, db := setupTestService(t)

	older := models.Delegation{
		DelegatorID: "alice", DelegateID: "dora",
		StartsAt: FixedTime.Add(-3 * time.Hour),
		IsActive: true,
	}
	older.CreatedAt = FixedTime.Add(-2 * time.Hour)
	assert.NoError(t, db.Create(&older).Error)

	newer := models.Delegation{
		DelegatorID: "alice", DelegateID: "erik",
		StartsAt: FixedTime.Add(-3 * time.Hour),
		IsActive: true,
	}
	newer.CreatedAt = FixedTime.Add(-time.Hour)
	assert.NoError(t, db.Create(&newer).Error)

	delegate, err := svc.ActiveDelegateFor("alice")
	assert.NoError(t, err)
	assert.NotNil(t, delegate)
	assert.Equal(t, "erik", *delegate)
}

func TestCanActOnBehalfOf(t *testing.T) {
	patches := gomonkey.ApplyFunc(time.Now, func() time.Time {
		return FixedTime
	})
	defer patches.Reset()

	svc, db := setupTestService(t)
	assert.NoError(t, db.Create(&models.Delegation{
		DelegatorID: "alice", DelegateID: "dora",
		StartsAt: FixedTime.Add(-time.Hour),
		EndsAt:   timePtr(FixedTime.Add(time.Hour)),
		IsActive: true,
	}).Error)

	// Identity always holds.
	ok, err := svc.CanActOnBehalfOf("alice", "alice")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Effective delegation from nominal to actor.
	ok, err = svc.CanActOnBehalfOf("dora", "alice")
	assert.NoError(t, err)
	assert.True(t, ok)

	// Delegation is directional.
	ok, err = svc.CanActOnBehalfOf("alice", "dora")
	assert.NoError(t, err)
	assert.False(t, ok)

	// No delegation at all.
	ok, err = svc.CanActOnBehalfOf("erik", "alice")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateDelegationValidation(t *testing.T) {
	svc, _ := setupTestService(t)

	_, err := svc.CreateDelegation("alice", "alice", time.Now(), nil)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	ends := time.Now().Add(-time.Hour)
	_, err = svc.CreateDelegation("alice", "dora", time.Now(), &ends)
	assert.ErrorAs(t, err, &validationErr)
}

func TestRevokeDelegationOwnership(t *testing.T) {
	svc, db := setupTestService(t)

	del, err := svc.CreateDelegation("alice", "dora", time.Now().Add(-time.Hour), nil)
	assert.NoError(t, err)

	// Only the delegator may revoke.
	var authErr *AuthorizationError
	assert.ErrorAs(t, svc.RevokeDelegation(del.ID, "dora"), &authErr)

	assert.NoError(t, svc.RevokeDelegation(del.ID, "alice"))

	var reloaded models.Delegation
	assert.NoError(t, db.First(&reloaded, "id = ?", del.ID).Error)
	assert.False(t, reloaded.IsActive)
}
