package handler

import (
	"time"

	"veridoc/internal/verification/models"
	"veridoc/pkg/platform/audit"
)

type recordResponse struct {
	ID             string            `json:"id"`
	DocumentID     string            `json:"document_id"`
	RequesterID    string            `json:"requester_id"`
	State          string            `json:"state"`
	Outcome        string            `json:"outcome,omitempty"`
	Score          *float64          `json:"score,omitempty"`
	Evidence       map[string]string `json:"evidence,omitempty"`
	DecisionReason string            `json:"decision_reason,omitempty"`
	Attempt        int               `json:"attempt"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

func toRecordResponse(record models.Record) recordResponse {
	return recordResponse{
		ID:             record.ID.String(),
		DocumentID:     record.DocumentID.String(),
		RequesterID:    record.RequesterID.String(),
		State:          string(record.State),
		Outcome:        string(record.Outcome),
		Score:          record.Score,
		Evidence:       record.Evidence,
		DecisionReason: record.DecisionReason,
		Attempt:        record.Attempt,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func toRecordResponses(records []models.Record) []recordResponse {
	out := make([]recordResponse, len(records))
	for i, record := range records {
		out[i] = toRecordResponse(record)
	}
	return out
}

type auditEntryResponse struct {
	ID             string    `json:"id"`
	VerificationID string    `json:"verification_id"`
	FromState      string    `json:"from_state"`
	ToState        string    `json:"to_state"`
	Actor          string    `json:"actor"`
	Reason         string    `json:"reason,omitempty"`
	Schema         int       `json:"schema_version"`
	Timestamp      time.Time `json:"timestamp"`
	Seq            int64     `json:"seq"`
}

func toAuditEntryResponses(entries []audit.Entry) []auditEntryResponse {
	out := make([]auditEntryResponse, len(entries))
	for i, entry := range entries {
		out[i] = auditEntryResponse{
			ID:             entry.ID.String(),
			VerificationID: entry.VerificationID.String(),
			FromState:      entry.FromState,
			ToState:        entry.ToState,
			Actor:          entry.Actor,
			Reason:         entry.Reason,
			Schema:         entry.Schema,
			Timestamp:      entry.Timestamp,
			Seq:            entry.Seq,
		}
	}
	return out
}
