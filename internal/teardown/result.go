package teardown

// Outcome 单步结果分类
// warned: 容忍性失败（外部清理尽力而为），saga继续
// fatal: 致命失败（数据层必须全量清除），saga立即中止
type Outcome string

const (
	OutcomeOK     Outcome = "ok"
	OutcomeWarned Outcome = "warned"
	OutcomeFatal  Outcome = "fatal"
)

// StepResult 单步执行结果
// Err 只在 fatal 时携带：保留底层错误链供调用方 errors.Is/As 判定
type StepResult struct {
	Outcome Outcome
	Detail  string
	Err     error
}

func resultOK(detail string) StepResult {
	return StepResult{Outcome: OutcomeOK, Detail: detail}
}

func resultWarned(detail string) StepResult {
	return StepResult{Outcome: OutcomeWarned, Detail: detail}
}

func resultFatal(detail string, err error) StepResult {
	return StepResult{Outcome: OutcomeFatal, Detail: detail, Err: err}
}

// StepRecord 审计账目中的一条记录
type StepRecord struct {
	Step    string  `json:"step"`
	Outcome Outcome `json:"outcome"`
	Detail  string  `json:"detail,omitempty"`
}

// Report teardown 执行报告：按步骤顺序的审计账目
// 管理端调用方据此判断重试是否必要、从哪一步失败
type Report struct {
	TenantID string       `json:"tenant_id"`
	Steps    []StepRecord `json:"steps"`
}

func (r *Report) append(step string, res StepResult) {
	r.Steps = append(r.Steps, StepRecord{Step: step, Outcome: res.Outcome, Detail: res.Detail})
}
