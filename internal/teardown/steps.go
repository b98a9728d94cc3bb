package teardown

import (
	"context"
	"fmt"
	"strings"

	"answerafter-admin/internal/domain"
	"answerafter-admin/internal/identity"
	"answerafter-admin/internal/repository"
	"answerafter-admin/internal/telephony"
	"answerafter-admin/internal/voiceai"
)

// State teardown执行中的共享状态：saga开始时装载一次，各步骤只读
type State struct {
	Tenant  *domain.Tenant
	Agent   *domain.VoiceAgent // 可能为nil（租户未完成开通）
	Numbers []domain.PhoneNumber
}

// Step teardown单步
// Run 返回 Ok/Warned 时saga继续；返回 Fatal 时saga立即中止
type Step interface {
	Name() string
	Run(ctx context.Context, st *State) StepResult
}

// ---------- 语音agent清理 ----------

// VoiceAgentStep 删除语音AI平台上的agent及其号码绑定
//
// 全程尽力而为：单个绑定删除失败不会中断循环，绑定清理结果不影响
// agent删除的尝试。语音平台故障绝不能阻塞数据层purge——
// 残留agent是成本问题，残留租户数据是合规问题。
type VoiceAgentStep struct {
	Voice *voiceai.Client
}

func (s *VoiceAgentStep) Name() string { return "voice_agent_cleanup" }

func (s *VoiceAgentStep) Run(ctx context.Context, st *State) StepResult {
	if s.Voice == nil || !s.Voice.Configured() {
		return resultWarned("voice platform API key not configured, cleanup skipped")
	}

	bindings := 0
	failed := 0
	for _, n := range st.Numbers {
		// 共享号码的平台绑定归号码池所有，只在数据层detach，不删外部注册
		if n.IsShared || n.VoiceNumberID == "" {
			continue
		}
		bindings++
		if err := s.Voice.DeletePhoneNumberBinding(ctx, n.VoiceNumberID); err != nil {
			failed++
		}
	}

	if st.Agent == nil {
		detail := "no voice agent provisioned"
		if bindings > 0 {
			detail = fmt.Sprintf("%s; deleted %d/%d number bindings", detail, bindings-failed, bindings)
		}
		if failed > 0 {
			return resultWarned(detail)
		}
		return resultOK(detail)
	}

	agentErr := s.Voice.DeleteAgent(ctx, st.Agent.AgentID)

	detail := fmt.Sprintf("deleted %d/%d number bindings", bindings-failed, bindings)
	if agentErr != nil {
		return resultWarned(detail + "; agent delete failed: " + agentErr.Error())
	}
	if failed > 0 {
		return resultWarned(detail + "; agent deleted")
	}
	return resultOK(detail + "; agent deleted")
}

// ---------- 电话运营商webhook重置 ----------

// TelephonyStep 将租户各号码的入站webhook重置为占位端点
//
// 对所有携带运营商号码ID的号码执行（含共享号码——重置路由是无害的，
// 注销/删除才是共享号码的禁区）。逐号尽力而为，单号失败不中断循环。
// 号码不注销：保留待人工复用。
type TelephonyStep struct {
	Phones *telephony.Client
}

func (s *TelephonyStep) Name() string { return "telephony_webhook_reset" }

func (s *TelephonyStep) Run(ctx context.Context, st *State) StepResult {
	if s.Phones == nil {
		return resultWarned("telephony client not configured, webhook reset skipped")
	}

	creds, ok := s.Phones.ResolveCredentials(st.Tenant)
	if !ok {
		return resultWarned("telephony credentials not configured, webhook reset skipped")
	}

	total := 0
	failed := 0
	for _, n := range st.Numbers {
		if n.TelephonySID == "" {
			continue
		}
		total++
		if err := s.Phones.ResetWebhooks(ctx, creds, n.TelephonySID); err != nil {
			failed++
		}
	}

	detail := fmt.Sprintf("reset webhooks on %d/%d numbers", total-failed, total)
	if failed > 0 {
		return resultWarned(detail)
	}
	return resultOK(detail)
}

// ---------- 关系数据purge ----------

// RelationalPurgeStep 按外键依赖顺序删除全部租户范围行
//
// 顺序固定：孙表先于子表、子表先于父表（见PurgeRepo文档）。
// 任一删除失败即致命：中止并带表名上抛，数据层停留在上一步完成后的一致状态。
type RelationalPurgeStep struct {
	Purge repository.PurgeRepo
}

func (s *RelationalPurgeStep) Name() string { return "relational_purge" }

func (s *RelationalPurgeStep) Run(ctx context.Context, st *State) StepResult {
	tenantID := st.Tenant.TenantID

	// call_events/call_transcripts 没有tenant_id列，先预取call id列表
	callIDs, err := s.Purge.ListCallIDs(ctx, tenantID)
	if err != nil {
		return resultFatal("table calls (id prefetch): "+err.Error(), err)
	}

	type tableDelete struct {
		table string
		run   func() (int64, error)
	}
	deletes := []tableDelete{
		{"appointment_reminders", func() (int64, error) { return s.Purge.DeleteAppointmentReminders(ctx, tenantID) }},
		{"appointments", func() (int64, error) { return s.Purge.DeleteAppointments(ctx, tenantID) }},
		{"call_transcripts", func() (int64, error) { return s.Purge.DeleteCallTranscripts(ctx, callIDs) }},
		{"call_events", func() (int64, error) { return s.Purge.DeleteCallEvents(ctx, callIDs) }},
		{"calls", func() (int64, error) { return s.Purge.DeleteCalls(ctx, tenantID) }},
		{"services", func() (int64, error) { return s.Purge.DeleteServices(ctx, tenantID) }},
		{"phone_numbers (detach shared)", func() (int64, error) { return s.Purge.DetachSharedPhoneNumbers(ctx, tenantID) }},
		{"phone_numbers", func() (int64, error) { return s.Purge.DeleteOwnedPhoneNumbers(ctx, tenantID) }},
		{"purchased_credits", func() (int64, error) { return s.Purge.DeletePurchasedCredits(ctx, tenantID) }},
		{"subscriptions", func() (int64, error) { return s.Purge.DeleteSubscriptions(ctx, tenantID) }},
		{"calendar_connections", func() (int64, error) { return s.Purge.DeleteCalendarConnections(ctx, tenantID) }},
		{"voice_agents", func() (int64, error) { return s.Purge.DeleteVoiceAgentRecord(ctx, tenantID) }},
	}

	details := make([]string, 0, len(deletes))
	for _, d := range deletes {
		n, err := d.run()
		if err != nil {
			return resultFatal(fmt.Sprintf("table %s: %v", d.table, err), err)
		}
		details = append(details, fmt.Sprintf("%s=%d", d.table, n))
	}

	return resultOK(strings.Join(details, " "))
}

// ---------- 成员身份purge ----------

// IdentityPurgeStep 逐成员清除：角色行 → profile行 → 认证服务身份
//
// 关系行删除失败致命（残留profile违反purge不变式）；
// 认证服务身份删除逐用户尽力而为（无profile的残留身份不可发现，可重跑补删）。
type IdentityPurgeStep struct {
	Members repository.MembersRepo
	Auth    *identity.Client
}

func (s *IdentityPurgeStep) Name() string { return "identity_purge" }

func (s *IdentityPurgeStep) Run(ctx context.Context, st *State) StepResult {
	tenantID := st.Tenant.TenantID

	members, err := s.Members.ListMembers(ctx, tenantID)
	if err != nil {
		return resultFatal("table user_profiles (member list): "+err.Error(), err)
	}

	authConfigured := s.Auth != nil && s.Auth.Configured()
	authFailed := 0
	for _, m := range members {
		if _, err := s.Members.DeleteUserRoles(ctx, m.UserID); err != nil {
			return resultFatal(fmt.Sprintf("table user_roles (user %s): %v", m.UserID, err), err)
		}
		if err := s.Members.DeleteUserProfile(ctx, m.UserID); err != nil {
			return resultFatal(fmt.Sprintf("table user_profiles (user %s): %v", m.UserID, err), err)
		}
		// profile行已删除，认证身份残留是可接受的状态
		if m.AuthUserID == "" {
			continue
		}
		if !authConfigured {
			authFailed++
			continue
		}
		if err := s.Auth.DeleteUser(ctx, m.AuthUserID); err != nil {
			authFailed++
		}
	}

	detail := fmt.Sprintf("purged %d members", len(members))
	if !authConfigured && authFailed > 0 {
		return resultWarned(detail + fmt.Sprintf("; auth provider not configured, %d identities left", authFailed))
	}
	if authFailed > 0 {
		return resultWarned(detail + fmt.Sprintf("; %d auth identity deletes failed", authFailed))
	}
	return resultOK(detail)
}

// ---------- 租户行删除 ----------

// TenantRowStep 删除tenants行本身（最后一步，此时外键不再阻塞）
type TenantRowStep struct {
	Tenants repository.TenantsRepo
}

func (s *TenantRowStep) Name() string { return "tenant_row_delete" }

func (s *TenantRowStep) Run(ctx context.Context, st *State) StepResult {
	if err := s.Tenants.DeleteTenant(ctx, st.Tenant.TenantID); err != nil {
		return resultFatal("table tenants: "+err.Error(), err)
	}
	return resultOK("tenant row deleted")
}
