package events

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Type identifies an event kind.
type Type string

const (
	InventoryItemDeleted Type = "inventory.item_deleted"
	MailRead             Type = "mail.read"
	MailClaimed          Type = "mail.claimed"
	WorkflowStepFailed   Type = "workflow.step_failed"
	SessionFinished      Type = "session.finished"
)

// Valid reports whether t belongs to the known set.
func (t Type) Valid() bool {
	switch t {
	case InventoryItemDeleted, MailRead, MailClaimed, WorkflowStepFailed, SessionFinished:
		return true
	default:
		return false
	}
}

// Event is an immutable record handed to the bus.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// New creates an event with an encoded payload.
func New(t Type, at time.Time, payload any) (Event, error) {
	if !t.Valid() {
		return Event{}, fmt.Errorf("unknown event type %q", t)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: at,
		Payload:   data,
	}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Payloads

type InventoryItemDeletedPayload struct {
	GameSaveID uuid.UUID `json:"game_save_id"`
	ClientID   string    `json:"client_id"`
}

type MailPayload struct {
	MailID     uuid.UUID `json:"mail_id"`
	GameSaveID uuid.UUID `json:"game_save_id"`
}

type MailClaimedPayload struct {
	MailPayload
	Gold     int64 `json:"gold"`
	Diamond  int64 `json:"diamond"`
	Emerald  int64 `json:"emerald"`
	Amethyst int64 `json:"amethyst"`
}

type WorkflowStepFailedPayload struct {
	RunID      string    `json:"run_id"`
	GameSaveID uuid.UUID `json:"game_save_id"`
	Step       string    `json:"step"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error"`
}

type SessionFinishedPayload struct {
	SessionID  uuid.UUID `json:"session_id"`
	GameSaveID uuid.UUID `json:"game_save_id"`
	Cancelled  bool      `json:"cancelled"`
}
