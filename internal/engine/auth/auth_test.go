package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assetline/internal/domain"
)

var policy = Policy{
	ManagerRole:     "manager",
	ManagerGrade:    "7",
	PICRole:         "pic",
	AdminRole:       "admin",
	ElevatedReaders: []string{"pic", "admin"},
}

func TestManagerStage(t *testing.T) {
	req := domain.Request{ID: "r1", RequesterID: "emp", ManagerID: "mgr"}
	cases := []struct {
		name  string
		actor domain.User
		ok    bool
	}{
		{"designated qualified", domain.User{ID: "mgr", Grade: "7", Roles: []string{"manager"}}, true},
		{"other manager", domain.User{ID: "mgr2", Grade: "7", Roles: []string{"manager"}}, false},
		{"wrong grade", domain.User{ID: "mgr", Grade: "5", Roles: []string{"manager"}}, false},
		{"role revoked", domain.User{ID: "mgr", Grade: "7"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.CanDecideManager(tc.actor, req)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			var fe ForbiddenError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.actor.ID, fe.ActorID)
		})
	}
}

func TestPICReturnAndRead(t *testing.T) {
	req := domain.Request{ID: "r1", RequesterID: "emp", ManagerID: "mgr"}
	pic := domain.User{ID: "pic", Roles: []string{"pic"}}
	admin := domain.User{ID: "root", Roles: []string{"admin"}}
	emp := domain.User{ID: "emp", Roles: []string{"employee"}}
	stranger := domain.User{ID: "x", Roles: []string{"employee"}}

	assert.NoError(t, policy.CanDecidePIC(pic))
	assert.Error(t, policy.CanDecidePIC(emp))

	assert.NoError(t, policy.CanReturn(emp, req))
	assert.NoError(t, policy.CanReturn(admin, req))
	assert.Error(t, policy.CanReturn(pic, req))

	for _, u := range []domain.User{emp, pic, admin, {ID: "mgr"}} {
		assert.NoError(t, policy.CanRead(u, req), u.ID)
	}
	assert.Error(t, policy.CanRead(stranger, req))
}

func TestQualifiesAsManager(t *testing.T) {
	assert.True(t, policy.QualifiesAsManager(domain.User{Grade: "7", Roles: []string{"employee", "manager"}}))
	assert.False(t, policy.QualifiesAsManager(domain.User{Grade: "6", Roles: []string{"manager"}}))
	assert.False(t, policy.QualifiesAsManager(domain.User{Grade: "7"}))
}
