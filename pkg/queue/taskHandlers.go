package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Messenger delivers a rendered notification.
type Messenger interface {
	SendMessage(ctx context.Context, text string) error
}

// TaskHandler renders booking notifications and hands them to the messenger
type TaskHandler struct {
	messenger Messenger
	timeout   time.Duration
}

func NewTaskHandler(messenger Messenger) *TaskHandler {
	return &TaskHandler{messenger: messenger, timeout: 10 * time.Second}
}

func (h *TaskHandler) HandleTask(task *Task) error {
	logrus.WithFields(logrus.Fields{
		"task_id": task.ID,
		"type":    task.Type,
		"attempt": task.Attempts,
	}).Debug("Handling task")

	switch task.Type {
	case TaskTypeSendNotification:
		return h.handleSendNotification(task)
	default:
		return Permanent(fmt.Errorf("unknown task type: %s", task.Type))
	}
}

func (h *TaskHandler) handleSendNotification(task *Task) error {
	text, err := RenderNotification(task)
	if err != nil {
		return Permanent(err)
	}
	if h.messenger == nil {
		logrus.WithField("task_id", task.ID).Debug("Notification skipped, no messenger configured")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	return h.messenger.SendMessage(ctx, text)
}

// RenderNotification builds the message text for a send_notification task
func RenderNotification(task *Task) (string, error) {
	kind := task.GetString("notification_type")
	bookingID := task.GetString("booking_id")
	if bookingID == "" {
		return "", fmt.Errorf("notification task %s has no booking_id", task.ID)
	}

	venue := task.GetString("venue_name")
	if venue == "" {
		venue = task.GetString("venue_id")
	}
	amount := fmt.Sprintf("₹%.2f", task.GetFloat("amount"))

	var b strings.Builder
	switch kind {
	case "booking_created":
		fmt.Fprintf(&b, "New booking awaiting payment verification\n\nVenue: %s\nAmount: %s\nBooking: %s", venue, amount, bookingID)
	case "booking_approved":
		fmt.Fprintf(&b, "Booking approved\n\nVenue: %s\nAmount: %s\nBooking: %s", venue, amount, bookingID)
		if end := task.GetTime("end_date"); !end.IsZero() {
			fmt.Fprintf(&b, "\nValid until: %s UTC", end.Format("02 Jan 2006 15:04"))
		}
	case "booking_rejected":
		fmt.Fprintf(&b, "Booking rejected\n\nVenue: %s\nBooking: %s", venue, bookingID)
	case "booking_expired":
		fmt.Fprintf(&b, "Booking expired without a decision\n\nVenue: %s\nBooking: %s", venue, bookingID)
	default:
		return "", fmt.Errorf("unknown notification type %q", kind)
	}
	return b.String(), nil
}
