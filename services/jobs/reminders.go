package jobs

import (
	"log"
	"time"

	"law_flow_forms/models"
	"law_flow_forms/services"

	"gorm.io/gorm"
)

// SendFormReminders queues one reminder for every open form that expires within window
// and has not been reminded yet. It returns the number of reminders queued.
func SendFormReminders(database *gorm.DB, forms *services.ClientFormService, window time.Duration) int {
	log.Println("[CRON] Starting form reminder job...")

	now := forms.Now().UTC()

	var pending []models.ClientForm
	err := database.Preload("Client").Preload("Client.Firm").
		Where("status IN (?)", []string{models.ClientFormStatusPending, models.ClientFormStatusInProgress}).
		Where("expires_at IS NOT NULL AND expires_at > ? AND expires_at <= ?", now, now.Add(window)).
		Where("reminder_sent_at IS NULL").
		Find(&pending).Error
	if err != nil {
		log.Printf("[CRON] Error fetching forms for reminders: %v", err)
		return 0
	}

	log.Printf("[CRON] Found %d forms to remind", len(pending))

	sent := 0
	for i := range pending {
		form := &pending[i]
		if !forms.QueueReminder(form) {
			log.Printf("[CRON] Skipped reminder for form %s: no client email", form.ID)
			continue
		}

		// Marking the reminder is bookkeeping and does not bump the form version
		if err := database.Model(&models.ClientForm{}).Where("id = ?", form.ID).Update("reminder_sent_at", now).Error; err != nil {
			log.Printf("[CRON] Failed to mark reminder for form %s: %v", form.ID, err)
			continue
		}
		sent++
	}

	log.Printf("[CRON] Form reminder job completed: %d queued", sent)
	return sent
}
