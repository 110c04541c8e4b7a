package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"law_flow_forms/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEmailSender is a mock implementation of EmailSender
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) Send(email *Email) error {
	args := m.Called(email)
	return args.Error(0)
}

// blockingSender holds every delivery until release is closed
type blockingSender struct {
	release chan struct{}
	once    sync.Once
}

func (b *blockingSender) Send(email *Email) error {
	<-b.release
	return nil
}

func (b *blockingSender) open() {
	b.once.Do(func() { close(b.release) })
}

func notificationStatus(t *testing.T, svc *NotificationService, id string) string {
	var n models.FormNotification
	if err := svc.DB.First(&n, "id = ?", id).Error; err != nil {
		t.Logf("load notification %s: %v", id, err)
		return ""
	}
	return n.Status
}

func TestNotificationService(t *testing.T) {
	email := &Email{To: []string{"carl@example.com"}, Subject: "Please complete", TextBody: "hi"}

	t.Run("Delivers and marks sent", func(t *testing.T) {
		db := setupFormsTestDB(t)
		sender := new(MockEmailSender)
		sender.On("Send", email).Return(nil).Once()

		svc := NewNotificationService(db, sender, nil, 4)
		svc.Start(context.Background())
		defer svc.Stop()

		n := svc.Enqueue("form-1", models.FormNotificationAssignment, email)
		require.NotNil(t, n)
		assert.Equal(t, models.FormNotificationQueued, n.Status)
		assert.Equal(t, "carl@example.com", n.Recipient)

		assert.Eventually(t, func() bool {
			return notificationStatus(t, svc, n.ID) == models.FormNotificationSent
		}, 2*time.Second, 10*time.Millisecond)

		var stored models.FormNotification
		require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
		assert.NotNil(t, stored.SentAt)
		sender.AssertExpectations(t)
	})

	t.Run("Send failure is recorded", func(t *testing.T) {
		db := setupFormsTestDB(t)
		sender := new(MockEmailSender)
		sender.On("Send", email).Return(errors.New("smtp unavailable")).Once()

		svc := NewNotificationService(db, sender, nil, 4)
		svc.Start(context.Background())
		defer svc.Stop()

		n := svc.Enqueue("form-1", models.FormNotificationReminder, email)
		require.NotNil(t, n)

		assert.Eventually(t, func() bool {
			return notificationStatus(t, svc, n.ID) == models.FormNotificationFailed
		}, 2*time.Second, 10*time.Millisecond)

		var stored models.FormNotification
		require.NoError(t, db.First(&stored, "id = ?", n.ID).Error)
		assert.Equal(t, "smtp unavailable", stored.Error)
		assert.Nil(t, stored.SentAt)
	})

	t.Run("Full queue fails fast", func(t *testing.T) {
		db := setupFormsTestDB(t)
		sender := &blockingSender{release: make(chan struct{})}
		defer sender.open()

		// No worker is running, so the single slot stays taken
		svc := NewNotificationService(db, sender, nil, 1)

		first := svc.Enqueue("form-1", models.FormNotificationAssignment, email)
		second := svc.Enqueue("form-1", models.FormNotificationAssignment, email)
		require.NotNil(t, first)
		require.NotNil(t, second)

		assert.Equal(t, models.FormNotificationQueued, first.Status)
		assert.Equal(t, models.FormNotificationFailed, second.Status)
		assert.Equal(t, models.FormNotificationFailed, notificationStatus(t, svc, second.ID))

		svc.Start(context.Background())
		sender.open()
		assert.Eventually(t, func() bool {
			return notificationStatus(t, svc, first.ID) == models.FormNotificationSent
		}, 2*time.Second, 10*time.Millisecond)
		svc.Stop()
	})

	t.Run("Enqueue after stop", func(t *testing.T) {
		db := setupFormsTestDB(t)
		svc := NewNotificationService(db, new(MockEmailSender), nil, 4)
		svc.Start(context.Background())
		svc.Stop()

		n := svc.Enqueue("form-1", models.FormNotificationReminder, email)
		require.NotNil(t, n)
		assert.Equal(t, models.FormNotificationFailed, n.Status)
	})

	t.Run("List newest first", func(t *testing.T) {
		db := setupFormsTestDB(t)
		older := models.FormNotification{ClientFormID: "form-9", Type: models.FormNotificationAssignment, Recipient: "a@b.test", CreatedAt: time.Now().Add(-time.Hour)}
		newer := models.FormNotification{ClientFormID: "form-9", Type: models.FormNotificationReminder, Recipient: "a@b.test"}
		require.NoError(t, db.Create(&older).Error)
		require.NoError(t, db.Create(&newer).Error)

		list, err := GetFormNotifications(db, "form-9")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, models.FormNotificationReminder, list[0].Type)
	})
}
