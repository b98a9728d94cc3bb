package teardown

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"answerafter-admin/internal/identity"
	"answerafter-admin/internal/repository"
	"answerafter-admin/internal/telephony"
	"answerafter-admin/internal/voiceai"
)

// Orchestrator 租户teardown编排器
//
// 严格顺序、单遍执行：装载租户 → 语音agent清理 → webhook重置 →
// 关系数据purge → 成员身份purge → 租户行删除。
// 外部清理步骤容忍失败（Warned后继续），数据层步骤致命（Fatal即中止）。
// 整个saga在租户级互斥锁内执行。
type Orchestrator struct {
	tenants repository.TenantsRepo
	purge   repository.PurgeRepo
	members repository.MembersRepo
	voice   *voiceai.Client
	phones  *telephony.Client
	auth    *identity.Client
	locker  Locker
	logger  *zap.Logger
}

// NewOrchestrator 创建teardown编排器
// voice/phones/auth 允许未配置（对应步骤降级为告警），locker必须提供
func NewOrchestrator(
	tenants repository.TenantsRepo,
	purge repository.PurgeRepo,
	members repository.MembersRepo,
	voice *voiceai.Client,
	phones *telephony.Client,
	auth *identity.Client,
	locker Locker,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		tenants: tenants,
		purge:   purge,
		members: members,
		voice:   voice,
		phones:  phones,
		auth:    auth,
		locker:  locker,
		logger:  logger,
	}
}

// Teardown 执行租户全量下线
//
// 成功返回完整审计账目；失败返回已执行部分的账目和错误：
// ErrInvalidTenantID / ErrTenantNotFound / ErrTeardownInProgress /
// *FatalStepError（携带失败步骤名）。
// 幂等：已purge的租户重跑返回ErrTenantNotFound；中途致命中止后重跑安全
// （每步都按当前状态查询，不假设之前进行到哪）。
func (o *Orchestrator) Teardown(ctx context.Context, tenantID string) (*Report, error) {
	if _, err := uuid.Parse(tenantID); err != nil {
		return nil, fmt.Errorf("tenant id '%s': %w", tenantID, ErrInvalidTenantID)
	}

	release, acquired, err := o.locker.Acquire(ctx, tenantID)
	if err != nil {
		// 锁基础设施故障不阻塞teardown：降级为无锁执行并告警
		o.logger.Warn("Teardown lock unavailable, proceeding without mutual exclusion",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	} else if !acquired {
		return nil, fmt.Errorf("tenant '%s': %w", tenantID, ErrTeardownInProgress)
	} else {
		defer release()
	}

	tenant, err := o.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	agent, err := o.purge.GetVoiceAgent(ctx, tenantID)
	if err != nil {
		return nil, &FatalStepError{Step: "load_tenant", Err: err}
	}
	numbers, err := o.purge.ListPhoneNumbers(ctx, tenantID)
	if err != nil {
		return nil, &FatalStepError{Step: "load_tenant", Err: err}
	}

	st := &State{Tenant: tenant, Agent: agent, Numbers: numbers}
	report := &Report{TenantID: tenantID, Steps: []StepRecord{}}

	steps := []Step{
		&VoiceAgentStep{Voice: o.voice},
		&TelephonyStep{Phones: o.phones},
		&RelationalPurgeStep{Purge: o.purge},
		&IdentityPurgeStep{Members: o.members, Auth: o.auth},
		&TenantRowStep{Tenants: o.tenants},
	}

	o.logger.Info("Starting tenant teardown",
		zap.String("tenant_id", tenantID),
		zap.String("tenant_name", tenant.TenantName),
		zap.Int("phone_numbers", len(numbers)),
	)

	for _, step := range steps {
		res := step.Run(ctx, st)
		report.append(step.Name(), res)

		switch res.Outcome {
		case OutcomeWarned:
			o.logger.Warn("Teardown step degraded",
				zap.String("tenant_id", tenantID),
				zap.String("step", step.Name()),
				zap.String("detail", res.Detail),
			)
		case OutcomeFatal:
			o.logger.Error("Teardown step failed, aborting",
				zap.String("tenant_id", tenantID),
				zap.String("step", step.Name()),
				zap.String("detail", res.Detail),
			)
			ferr := res.Err
			if ferr == nil {
				ferr = errors.New(res.Detail)
			}
			return report, &FatalStepError{Step: step.Name(), Err: ferr}
		default:
			o.logger.Info("Teardown step completed",
				zap.String("tenant_id", tenantID),
				zap.String("step", step.Name()),
				zap.String("detail", res.Detail),
			)
		}
	}

	o.logger.Info("Tenant teardown completed", zap.String("tenant_id", tenantID))
	return report, nil
}
