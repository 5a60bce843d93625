package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QueueName string

const (
	QueueSMS    QueueName = "sms"
	QueueEmail  QueueName = "email"
	QueueReport QueueName = "report"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSent       JobStatus = "sent"
	JobStatusFailed     JobStatus = "failed"
)

// NotificationJob is a queued outbound message. Failed-after-retries jobs
// are retained for inspection and manual retry.
type NotificationJob struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Queue        QueueName       `json:"queue" db:"queue"`
	Payload      json.RawMessage `json:"payload" db:"payload"`
	DedupKey     *string         `json:"dedup_key,omitempty" db:"dedup_key"`
	Status       JobStatus       `json:"status" db:"status"`
	Attempts     int             `json:"attempts" db:"attempts"`
	LastError    *string         `json:"last_error,omitempty" db:"last_error"`
	RunAt        time.Time       `json:"run_at" db:"run_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// MessagePayload is the body of an sms/email job
type MessagePayload struct {
	ClientID  uuid.UUID `json:"client_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	Kind      string    `json:"kind"`
}

type MessageOutcome string

const (
	MessageOutcomeSent   MessageOutcome = "SENT"
	MessageOutcomeFailed MessageOutcome = "FAILED"
)

// MessageLog is the audit row persisted for every send attempt,
// success or failure.
type MessageLog struct {
	ID        uuid.UUID      `json:"id" db:"id"`
	JobID     uuid.UUID      `json:"job_id" db:"job_id"`
	ClientID  *uuid.UUID     `json:"client_id,omitempty" db:"client_id"`
	Queue     QueueName      `json:"queue" db:"queue"`
	Kind      string         `json:"kind" db:"kind"`
	Recipient string         `json:"recipient" db:"recipient"`
	Outcome   MessageOutcome `json:"outcome" db:"outcome"`
	Error     *string        `json:"error,omitempty" db:"error"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// Message kinds recorded in MessageLog and used for dedup lookbacks
const (
	MessageKindReminder     = "reservation_reminder"
	MessageKindBalanceAlert = "balance_alert"
	MessageKindExpiryAlert  = "expiry_alert"
	MessageKindReport       = "daily_report"
)
