// Package repository provides data persistence implementations for saga transactions.
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/allisson/orderflow/internal/saga/domain"
)

const sagaColumns = `id, saga_type, business_id, status, current_step, step_names, executed_steps,
		compensated_steps, saga_data, error_message, version, created_at, updated_at, completed_at`

// sagaText holds the JSON encoded columns of a saga row.
type sagaText struct {
	stepNames        string
	executedSteps    string
	compensatedSteps string
	data             string
}

func encodeSaga(saga *domain.SagaTransaction) (sagaText, error) {
	var (
		text sagaText
		err  error
	)
	if text.stepNames, err = encodeList(saga.StepNames); err != nil {
		return text, err
	}
	if text.executedSteps, err = encodeList(saga.ExecutedSteps); err != nil {
		return text, err
	}
	if text.compensatedSteps, err = encodeList(saga.CompensatedSteps); err != nil {
		return text, err
	}
	data := saga.Data
	if data == nil {
		data = domain.NewData()
	}
	b, err := json.Marshal(data)
	if err != nil {
		return text, fmt.Errorf("failed to encode saga data: %w", err)
	}
	text.data = string(b)
	return text, nil
}

func (t sagaText) decodeInto(saga *domain.SagaTransaction) error {
	var err error
	if saga.StepNames, err = decodeList(t.stepNames); err != nil {
		return err
	}
	if saga.ExecutedSteps, err = decodeList(t.executedSteps); err != nil {
		return err
	}
	if saga.CompensatedSteps, err = decodeList(t.compensatedSteps); err != nil {
		return err
	}
	saga.Data = domain.NewData()
	if t.data != "" {
		if err := json.Unmarshal([]byte(t.data), saga.Data); err != nil {
			return fmt.Errorf("failed to decode saga data: %w", err)
		}
	}
	return nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(text string) ([]string, error) {
	values := []string{}
	if text == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, fmt.Errorf("failed to decode step list: %w", err)
	}
	return values, nil
}

func statusArgs(statuses []domain.SagaStatus) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}

// placeholders returns n bind markers built by marker, starting at position first.
func placeholders(n, first int, marker func(pos int) string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = marker(first + i)
	}
	return strings.Join(parts, ", ")
}

func scanStatusCounts(rows *sql.Rows) (map[domain.SagaStatus]int64, error) {
	defer rows.Close() //nolint:errcheck

	counts := make(map[domain.SagaStatus]int64)
	for rows.Next() {
		var (
			status domain.SagaStatus
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
