package jobs

import (
	"log"
	"time"

	"law_flow_forms/config"
	"law_flow_forms/services"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// StartScheduler schedules the form reminder job and starts the cron runner.
// The caller stops it on shutdown.
func StartScheduler(database *gorm.DB, forms *services.ClientFormService, cfg *config.Config) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	window := time.Duration(cfg.FormReminderWindowHrs) * time.Hour
	if window <= 0 {
		window = 48 * time.Hour
	}

	schedule := cfg.FormReminderCron
	if schedule == "" {
		schedule = "0 9 * * *"
	}

	_, err := c.AddFunc(schedule, func() {
		log.Println("[CRON] Running SendFormReminders...")
		SendFormReminders(database, forms, window)
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	log.Printf("[CRON] Scheduler started (form reminders: %q, window %s)", schedule, window)
	return c, nil
}
