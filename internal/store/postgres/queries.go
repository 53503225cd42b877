package postgres

// The check-and-transition procedures are stored functions owned by the
// database; the engine only orchestrates around them. Every value below is
// bound as a parameter - nothing user-controlled is ever spliced into query
// text.

const queryCheckAndStartScheduledMeetings = `
SELECT check_and_start_scheduled_meetings()
`

const queryCheckMeetingReminders = `
SELECT check_meeting_reminders()
`

const queryCheckMeetingNotifications = `
SELECT reminders_sent, starts_sent FROM check_meeting_notifications()
`

const queryCheckBreakReminders = `
SELECT check_break_reminders()
`

const querySendEventReminders = `
SELECT send_event_reminders()
`

const queryUpdateAllEventStatuses = `
SELECT updated_count, details FROM update_all_event_statuses()
`

const queryListTodayStartedEvents = `
SELECT id, title, event_type, status, start_time, end_time, location
FROM events
WHERE status = 'today'
  AND start_time <= $1
ORDER BY start_time ASC
`

const queryListMeetingOwnerIDs = `
SELECT DISTINCT agent_user_id
FROM meetings
`

const queryCountExistingNotifications = `
SELECT COUNT(*)
FROM notifications
WHERE payload->>'entity_id' = $1
  AND payload->>'entity_date' = $2
  AND payload->>'notification_type' = $3
`

const queryListActiveUserIDs = `
SELECT id
FROM users
WHERE status = 'active'
ORDER BY id
`

const queryInsertNotification = `
INSERT INTO notifications (id, user_id, category, type, title, message, payload, is_read, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
`
