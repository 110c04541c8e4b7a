package services

import (
	"testing"
	"time"

	"law_flow_forms/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSessionToken(t *testing.T) {
	token, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.Len(t, token, SessionTokenLength*2)
}

func TestValidateSession(t *testing.T) {
	db := setupFormsTestDB(t)
	firm := models.Firm{Name: "Firm"}
	require.NoError(t, db.Create(&firm).Error)
	user := models.User{Name: "Staff", Email: "staff@firm.test", FirmID: &firm.ID, Role: models.RoleStaff}
	require.NoError(t, db.Create(&user).Error)

	t.Run("valid session loads user and firm", func(t *testing.T) {
		session, err := CreateSession(db, user.ID)
		require.NoError(t, err)

		found, err := ValidateSession(db, session.Token)
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.User.ID)
		require.NotNil(t, found.User.Firm)
		assert.Equal(t, "Firm", found.User.Firm.Name)
	})

	t.Run("unknown token", func(t *testing.T) {
		_, err := ValidateSession(db, "nope")
		assert.ErrorIs(t, err, ErrSessionNotFound)

		_, err = ValidateSession(db, "")
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("expired session is removed", func(t *testing.T) {
		session := models.Session{ID: "expired-1", UserID: user.ID, Token: "expired-token", ExpiresAt: time.Now().Add(-time.Hour)}
		require.NoError(t, db.Create(&session).Error)

		_, err := ValidateSession(db, "expired-token")
		assert.ErrorIs(t, err, ErrSessionExpired)

		var count int64
		db.Model(&models.Session{}).Where("id = ?", "expired-1").Count(&count)
		assert.Zero(t, count)
	})

	t.Run("cleanup", func(t *testing.T) {
		require.NoError(t, db.Create(&models.Session{ID: "expired-2", UserID: user.ID, Token: "old", ExpiresAt: time.Now().Add(-time.Minute)}).Error)
		require.NoError(t, CleanupExpiredSessions(db))

		var count int64
		db.Model(&models.Session{}).Where("expires_at < ?", time.Now()).Count(&count)
		assert.Zero(t, count)
	})
}
