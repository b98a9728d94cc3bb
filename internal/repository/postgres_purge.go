package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"answerafter-admin/internal/domain"
)

// PostgresPurgeRepo 租户数据清除Repository实现
//
// 每条语句都按tenant_id（或预取的call id列表）限定范围，
// 不假设之前的清除进行到了哪一步，中断后重跑是安全的。
type PostgresPurgeRepo struct {
	db *sql.DB
}

// NewPostgresPurgeRepo 创建清除Repository
func NewPostgresPurgeRepo(db *sql.DB) *PostgresPurgeRepo {
	return &PostgresPurgeRepo{db: db}
}

var _ PurgeRepo = (*PostgresPurgeRepo)(nil)

// GetVoiceAgent 获取租户的语音agent记录；没有时返回 (nil, nil)
func (r *PostgresPurgeRepo) GetVoiceAgent(ctx context.Context, tenantID string) (*domain.VoiceAgent, error) {
	var agent domain.VoiceAgent
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id::text, agent_id_ext FROM voice_agents WHERE tenant_id = $1::uuid`,
		tenantID,
	).Scan(&agent.TenantID, &agent.AgentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get voice agent: %w", err)
	}
	return &agent, nil
}

// ListPhoneNumbers 列出租户持有的全部号码（含共享号码）
func (r *PostgresPurgeRepo) ListPhoneNumbers(ctx context.Context, tenantID string) ([]domain.PhoneNumber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT
			phone_number_id::text,
			COALESCE(tenant_id::text, '') as tenant_id,
			e164,
			COALESCE(telephony_sid, '') as telephony_sid,
			COALESCE(voice_number_id, '') as voice_number_id,
			is_shared
		FROM phone_numbers
		WHERE tenant_id = $1::uuid
		ORDER BY e164`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list phone numbers: %w", err)
	}
	defer rows.Close()

	numbers := []domain.PhoneNumber{}
	for rows.Next() {
		var n domain.PhoneNumber
		if err := rows.Scan(&n.PhoneNumberID, &n.TenantID, &n.E164, &n.TelephonySID, &n.VoiceNumberID, &n.IsShared); err != nil {
			return nil, fmt.Errorf("failed to scan phone number: %w", err)
		}
		numbers = append(numbers, n)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate phone numbers: %w", err)
	}
	return numbers, nil
}

// ListCallIDs 预取租户全部通话id（call_events/call_transcripts没有tenant_id列）
func (r *PostgresPurgeRepo) ListCallIDs(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT call_id::text FROM calls WHERE tenant_id = $1::uuid`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list call ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan call id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call ids: %w", err)
	}
	return ids, nil
}

func (r *PostgresPurgeRepo) deleteByTenant(ctx context.Context, table, tenantID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1::uuid`, table),
		tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return result.RowsAffected()
}

func (r *PostgresPurgeRepo) deleteByCallIDs(ctx context.Context, table string, callIDs []string) (int64, error) {
	if len(callIDs) == 0 {
		return 0, nil
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE call_id = ANY($1::uuid[])`, table),
		pq.Array(callIDs),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return result.RowsAffected()
}

func (r *PostgresPurgeRepo) DeleteAppointmentReminders(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "appointment_reminders", tenantID)
}

func (r *PostgresPurgeRepo) DeleteAppointments(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "appointments", tenantID)
}

func (r *PostgresPurgeRepo) DeleteCallTranscripts(ctx context.Context, callIDs []string) (int64, error) {
	return r.deleteByCallIDs(ctx, "call_transcripts", callIDs)
}

func (r *PostgresPurgeRepo) DeleteCallEvents(ctx context.Context, callIDs []string) (int64, error) {
	return r.deleteByCallIDs(ctx, "call_events", callIDs)
}

func (r *PostgresPurgeRepo) DeleteCalls(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "calls", tenantID)
}

func (r *PostgresPurgeRepo) DeleteServices(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "services", tenantID)
}

// DetachSharedPhoneNumbers 解绑共享号码：保留行，清除租户关联和语音绑定
func (r *PostgresPurgeRepo) DetachSharedPhoneNumbers(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE phone_numbers
		 SET tenant_id = NULL, voice_number_id = NULL
		 WHERE tenant_id = $1::uuid AND is_shared = true`,
		tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to detach shared phone numbers: %w", err)
	}
	return result.RowsAffected()
}

// DeleteOwnedPhoneNumbers 删除租户独占号码行（共享号码已在上一步解绑）
func (r *PostgresPurgeRepo) DeleteOwnedPhoneNumbers(ctx context.Context, tenantID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM phone_numbers WHERE tenant_id = $1::uuid AND is_shared = false`,
		tenantID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete phone numbers: %w", err)
	}
	return result.RowsAffected()
}

func (r *PostgresPurgeRepo) DeletePurchasedCredits(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "purchased_credits", tenantID)
}

func (r *PostgresPurgeRepo) DeleteSubscriptions(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "subscriptions", tenantID)
}

func (r *PostgresPurgeRepo) DeleteCalendarConnections(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "calendar_connections", tenantID)
}

func (r *PostgresPurgeRepo) DeleteVoiceAgentRecord(ctx context.Context, tenantID string) (int64, error) {
	return r.deleteByTenant(ctx, "voice_agents", tenantID)
}
