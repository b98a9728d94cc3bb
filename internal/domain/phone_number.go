package domain

// PhoneNumber 电话号码
// IsShared=true 表示池化共享号码（免费版共享线路）：
// teardown 时只解绑（tenant_id/voice_number_id 置空），不删除行、不注销外部注册
type PhoneNumber struct {
	PhoneNumberID string `json:"phone_number_id"`
	TenantID      string `json:"tenant_id,omitempty"`
	E164          string `json:"e164"`
	TelephonySID  string `json:"telephony_sid,omitempty"`  // 运营商侧号码ID
	VoiceNumberID string `json:"voice_number_id,omitempty"` // 语音AI平台号码绑定ID
	IsShared      bool   `json:"is_shared"`
}

// Member 租户成员（用于身份清除）
// AuthUserID 指向外部认证服务的用户；profile行删除后该身份即不可发现
type Member struct {
	UserID     string `json:"user_id"`
	AuthUserID string `json:"auth_user_id,omitempty"`
}
