package repository

import (
	"context"

	"answerafter-admin/internal/domain"
)

// PurgeRepo 租户范围数据清除接口
//
// 所有删除都按tenant_id（或预取的父级id列表）限定范围，
// 因此每个方法天然幂等：匹配0行或N行都是合法状态，可安全重试。
// 删除顺序由调用方（teardown.RelationalPurgeStep）保证，
// 必须满足外键依赖：孙表 → 子表 → 父表。
type PurgeRepo interface {
	// GetVoiceAgent 获取租户的语音agent记录；没有时返回 (nil, nil)
	GetVoiceAgent(ctx context.Context, tenantID string) (*domain.VoiceAgent, error)

	// ListPhoneNumbers 列出租户持有的全部号码（含共享号码）
	ListPhoneNumbers(ctx context.Context, tenantID string) ([]domain.PhoneNumber, error)

	// ListCallIDs 预取租户全部通话id
	// call_events/call_transcripts 没有tenant_id列，按此列表限定范围
	ListCallIDs(ctx context.Context, tenantID string) ([]string, error)

	DeleteAppointmentReminders(ctx context.Context, tenantID string) (int64, error)
	DeleteAppointments(ctx context.Context, tenantID string) (int64, error)
	DeleteCallTranscripts(ctx context.Context, callIDs []string) (int64, error)
	DeleteCallEvents(ctx context.Context, callIDs []string) (int64, error)
	DeleteCalls(ctx context.Context, tenantID string) (int64, error)
	DeleteServices(ctx context.Context, tenantID string) (int64, error)

	// DetachSharedPhoneNumbers 解绑共享号码：tenant_id/voice_number_id 置空，行保留
	DetachSharedPhoneNumbers(ctx context.Context, tenantID string) (int64, error)
	// DeleteOwnedPhoneNumbers 删除租户独占号码行
	DeleteOwnedPhoneNumbers(ctx context.Context, tenantID string) (int64, error)

	DeletePurchasedCredits(ctx context.Context, tenantID string) (int64, error)
	DeleteSubscriptions(ctx context.Context, tenantID string) (int64, error)
	DeleteCalendarConnections(ctx context.Context, tenantID string) (int64, error)
	DeleteVoiceAgentRecord(ctx context.Context, tenantID string) (int64, error)
}

// MembersRepo 租户成员身份数据接口
type MembersRepo interface {
	// ListMembers 列出租户全部成员（user_id + 外部认证服务user id）
	ListMembers(ctx context.Context, tenantID string) ([]domain.Member, error)

	DeleteUserRoles(ctx context.Context, userID string) (int64, error)
	DeleteUserProfile(ctx context.Context, userID string) error
}
