package domain

// Tenant 租户（商户账号）领域模型
// teardown saga 的根作用域：所有租户数据按 tenant_id 级联清除
type Tenant struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	Status     string `json:"status"` // active | suspended | deleted

	// 电话运营商子账号凭证（可选）
	// teardown 时优先于平台主凭证使用；两者都缺省则跳过webhook重置
	TelephonySubaccountSID   string `json:"telephony_subaccount_sid,omitempty"`
	TelephonySubaccountToken string `json:"-"`
}

// VoiceAgent 租户在语音AI平台上的会话agent
// 一个租户最多一个agent；未完成开通流程的租户可能没有
type VoiceAgent struct {
	TenantID string `json:"tenant_id"`
	AgentID  string `json:"agent_id"` // 语音AI平台签发的外部ID
}
