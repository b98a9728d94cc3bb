package teardown

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"answerafter-admin/internal/domain"
	"answerafter-admin/internal/repository"
)

// recordingPurge 记录purge操作顺序
type recordingPurge struct {
	repository.PurgeRepo
	ops []string
}

func (r *recordingPurge) record(op string) {
	r.ops = append(r.ops, op)
}

func (r *recordingPurge) DeleteAppointmentReminders(ctx context.Context, tenantID string) (int64, error) {
	r.record("appointment_reminders")
	return r.PurgeRepo.DeleteAppointmentReminders(ctx, tenantID)
}

func (r *recordingPurge) DeleteAppointments(ctx context.Context, tenantID string) (int64, error) {
	r.record("appointments")
	return r.PurgeRepo.DeleteAppointments(ctx, tenantID)
}

func (r *recordingPurge) DeleteCallTranscripts(ctx context.Context, callIDs []string) (int64, error) {
	r.record("call_transcripts")
	return r.PurgeRepo.DeleteCallTranscripts(ctx, callIDs)
}

func (r *recordingPurge) DeleteCallEvents(ctx context.Context, callIDs []string) (int64, error) {
	r.record("call_events")
	return r.PurgeRepo.DeleteCallEvents(ctx, callIDs)
}

func (r *recordingPurge) DeleteCalls(ctx context.Context, tenantID string) (int64, error) {
	r.record("calls")
	return r.PurgeRepo.DeleteCalls(ctx, tenantID)
}

func (r *recordingPurge) DetachSharedPhoneNumbers(ctx context.Context, tenantID string) (int64, error) {
	r.record("phone_numbers_detach")
	return r.PurgeRepo.DetachSharedPhoneNumbers(ctx, tenantID)
}

func (r *recordingPurge) DeleteOwnedPhoneNumbers(ctx context.Context, tenantID string) (int64, error) {
	r.record("phone_numbers")
	return r.PurgeRepo.DeleteOwnedPhoneNumbers(ctx, tenantID)
}

func (r *recordingPurge) DeleteVoiceAgentRecord(ctx context.Context, tenantID string) (int64, error) {
	r.record("voice_agents")
	return r.PurgeRepo.DeleteVoiceAgentRecord(ctx, tenantID)
}

func indexOf(ops []string, op string) int {
	for i, o := range ops {
		if o == op {
			return i
		}
	}
	return -1
}

func TestRelationalPurgeOrdering(t *testing.T) {
	store := repository.NewMemoryStore()
	seedTenant(store)

	rec := &recordingPurge{PurgeRepo: store}
	step := &RelationalPurgeStep{Purge: rec}

	tenant, err := store.GetTenant(context.Background(), testTenantID)
	require.NoError(t, err)

	res := step.Run(context.Background(), &State{Tenant: tenant})
	require.Equal(t, OutcomeOK, res.Outcome, res.Detail)

	// 外键依赖顺序：孙表 → 子表 → 父表
	assert.Less(t, indexOf(rec.ops, "appointment_reminders"), indexOf(rec.ops, "appointments"))
	assert.Less(t, indexOf(rec.ops, "call_transcripts"), indexOf(rec.ops, "calls"))
	assert.Less(t, indexOf(rec.ops, "call_events"), indexOf(rec.ops, "calls"))
	assert.Less(t, indexOf(rec.ops, "calls"), indexOf(rec.ops, "phone_numbers"))
	assert.Less(t, indexOf(rec.ops, "phone_numbers_detach"), indexOf(rec.ops, "phone_numbers"))

	// 每一步都确实执行过
	for _, op := range []string{"appointment_reminders", "appointments", "call_transcripts", "call_events", "calls", "phone_numbers_detach", "phone_numbers", "voice_agents"} {
		assert.GreaterOrEqual(t, indexOf(rec.ops, op), 0, "missing purge op %s", op)
	}
}

func TestRelationalPurgeRetryAfterPartialRun(t *testing.T) {
	// 中途中止后重跑：每步按当前状态查询，两次执行都成功
	store := repository.NewMemoryStore()
	seedTenant(store)

	step := &RelationalPurgeStep{Purge: store}
	tenant, err := store.GetTenant(context.Background(), testTenantID)
	require.NoError(t, err)

	res := step.Run(context.Background(), &State{Tenant: tenant})
	require.Equal(t, OutcomeOK, res.Outcome, res.Detail)

	res = step.Run(context.Background(), &State{Tenant: tenant})
	require.Equal(t, OutcomeOK, res.Outcome, res.Detail)
}

func TestVoiceAgentStepNoAgentProvisioned(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddTenant(domain.Tenant{TenantID: testTenantID, TenantName: "No Agent Co"})

	env := newTestEnv(t)
	step := &VoiceAgentStep{Voice: env.orch.voice}
	tenant := &domain.Tenant{TenantID: testTenantID}

	res := step.Run(context.Background(), &State{Tenant: tenant})
	assert.Equal(t, OutcomeOK, res.Outcome)
	assert.Contains(t, res.Detail, "no voice agent")
}

func TestVoiceAgentStepSkipsSharedBinding(t *testing.T) {
	// 共享号码即便携带平台绑定也不许删外部注册，只数据层detach
	env := newTestEnv(t)
	step := &VoiceAgentStep{Voice: env.orch.voice}

	st := &State{
		Tenant: &domain.Tenant{TenantID: testTenantID},
		Agent:  &domain.VoiceAgent{TenantID: testTenantID, AgentID: testAgentID},
		Numbers: []domain.PhoneNumber{
			{PhoneNumberID: "p1", VoiceNumberID: "vn-owned", IsShared: false},
			{PhoneNumberID: "p2", VoiceNumberID: "vn-shared", IsShared: true},
		},
	}

	res := step.Run(context.Background(), st)
	require.Equal(t, OutcomeOK, res.Outcome, res.Detail)
	assert.Contains(t, res.Detail, "1/1")

	assert.True(t, env.voice.seen("DELETE /phone-number/vn-owned"))
	assert.False(t, env.voice.seen("DELETE /phone-number/vn-shared"),
		"shared number's external registration was deleted")
	assert.Equal(t, 1, env.voice.countPrefix("DELETE /phone-number/"))
}
