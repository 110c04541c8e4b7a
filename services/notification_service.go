package services

import (
	"context"
	"log"
	"sync"
	"time"

	"law_flow_forms/metrics"
	"law_flow_forms/models"

	"gorm.io/gorm"
)

// EmailSender delivers a rendered email
type EmailSender interface {
	Send(email *Email) error
}

// FormNotifier hands notifications off without blocking the caller
type FormNotifier interface {
	Enqueue(clientFormID, notificationType string, email *Email) *models.FormNotification
}

type notificationJob struct {
	notificationID   string
	notificationType string
	email            *Email
}

// NotificationService queues form emails and delivers them from a background worker.
// Every email gets a form_notifications row that tracks its delivery.
type NotificationService struct {
	DB      *gorm.DB
	Sender  EmailSender
	Metrics *metrics.Metrics
	Now     func() time.Time

	jobs   chan notificationJob
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewNotificationService(db *gorm.DB, sender EmailSender, m *metrics.Metrics, queueSize int) *NotificationService {
	if queueSize < 1 {
		queueSize = 1
	}
	return &NotificationService{
		DB:      db,
		Sender:  sender,
		Metrics: m,
		Now:     time.Now,
		jobs:    make(chan notificationJob, queueSize),
	}
}

// Start runs the delivery worker until ctx is cancelled or Stop is called
func (s *NotificationService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-s.jobs:
				if !ok {
					return
				}
				s.deliver(job)
			}
		}
	}()
}

// Stop closes the queue and waits for the worker to finish
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Enqueue records a QUEUED notification and hands it to the worker. A full or stopped
// queue marks the row FAILED instead of waiting.
func (s *NotificationService) Enqueue(clientFormID, notificationType string, email *Email) *models.FormNotification {
	recipient := ""
	if len(email.To) > 0 {
		recipient = email.To[0]
	}
	notification := &models.FormNotification{
		ClientFormID: clientFormID,
		Type:         notificationType,
		Recipient:    recipient,
		Status:       models.FormNotificationQueued,
	}
	if err := s.DB.Create(notification).Error; err != nil {
		log.Printf("[NOTIFY] Failed to record %s notification for form %s: %v", notificationType, clientFormID, err)
		return nil
	}

	job := notificationJob{notificationID: notification.ID, notificationType: notificationType, email: email}

	s.mu.RLock()
	queued := false
	if !s.closed {
		select {
		case s.jobs <- job:
			queued = true
		default:
		}
	}
	s.mu.RUnlock()

	if !queued {
		log.Printf("[NOTIFY] Queue full, dropping %s notification %s for form %s", notificationType, notification.ID, clientFormID)
		s.markFailed(notification.ID, notificationType, "notification queue is full")
		notification.Status = models.FormNotificationFailed
		notification.Error = "notification queue is full"
	}
	return notification
}

func (s *NotificationService) deliver(job notificationJob) {
	if err := s.Sender.Send(job.email); err != nil {
		log.Printf("[NOTIFY] Failed to send %s notification %s: %v", job.notificationType, job.notificationID, err)
		s.markFailed(job.notificationID, job.notificationType, err.Error())
		return
	}

	now := s.Now()
	err := s.DB.Model(&models.FormNotification{}).
		Where("id = ?", job.notificationID).
		Updates(map[string]interface{}{
			"status":  models.FormNotificationSent,
			"sent_at": now,
			"error":   "",
		}).Error
	if err != nil {
		log.Printf("[NOTIFY] Failed to mark notification %s as sent: %v", job.notificationID, err)
	}
	s.Metrics.RecordNotification(job.notificationType, models.FormNotificationSent)
}

func (s *NotificationService) markFailed(id, notificationType, reason string) {
	err := s.DB.Model(&models.FormNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": models.FormNotificationFailed,
			"error":  reason,
		}).Error
	if err != nil {
		log.Printf("[NOTIFY] Failed to mark notification %s as failed: %v", id, err)
	}
	s.Metrics.RecordNotification(notificationType, models.FormNotificationFailed)
}

// GetFormNotifications lists the notifications sent for a client form, newest first
func GetFormNotifications(db *gorm.DB, clientFormID string) ([]models.FormNotification, error) {
	var notifications []models.FormNotification
	err := db.Where("client_form_id = ?", clientFormID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}
