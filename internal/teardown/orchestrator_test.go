package teardown

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"answerafter-admin/internal/domain"
	"answerafter-admin/internal/identity"
	"answerafter-admin/internal/repository"
	"answerafter-admin/internal/telephony"
	"answerafter-admin/internal/voiceai"
)

const (
	testTenantID = "11111111-1111-1111-1111-111111111111"
	testAgentID  = "agent-a1"
)

// fakeProvider 记录请求并按需注入失败的外部服务桩
type fakeProvider struct {
	mu        sync.Mutex
	requests  []string
	failPaths map[string]bool
	srv       *httptest.Server
}

func newFakeProvider() *fakeProvider {
	p := &fakeProvider{failPaths: map[string]bool{}}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.requests = append(p.requests, r.Method+" "+r.URL.Path)
		fail := p.failPaths[r.URL.Path]
		p.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	return p
}

func (p *fakeProvider) failOn(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failPaths[path] = true
}

func (p *fakeProvider) seen(req string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.requests {
		if r == req {
			return true
		}
	}
	return false
}

func (p *fakeProvider) countPrefix(prefix string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.requests {
		if len(r) >= len(prefix) && r[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// seedTenant 装载§8示例形态的租户：agent、独占/共享号码、通话树、预约、账单行、成员
func seedTenant(store *repository.MemoryStore) {
	store.AddTenant(domain.Tenant{TenantID: testTenantID, TenantName: "Bella Salon"})
	store.AddVoiceAgent(domain.VoiceAgent{TenantID: testTenantID, AgentID: testAgentID})

	store.AddPhoneNumber(domain.PhoneNumber{
		PhoneNumberID: "p1", TenantID: testTenantID, E164: "+15550100",
		TelephonySID: "PN111", VoiceNumberID: "vn-p1", IsShared: false,
	})
	store.AddPhoneNumber(domain.PhoneNumber{
		PhoneNumberID: "p2", TenantID: testTenantID, E164: "+15550200",
		TelephonySID: "PN222", VoiceNumberID: "vn-p2", IsShared: true,
	})

	for i := 1; i <= 3; i++ {
		callID := fmt.Sprintf("c%d", i)
		store.AddCall(callID, testTenantID)
		store.AddCallEvent(callID)
		store.AddCallTranscript(callID)
	}

	store.AddAppointment(testTenantID, 1)
	store.AddService(testTenantID)
	store.AddSubscription(testTenantID)
	store.AddPurchasedCredit(testTenantID)
	store.AddCalendarConnection(testTenantID)

	store.AddMember(testTenantID, domain.Member{UserID: "22222222-2222-2222-2222-222222222201", AuthUserID: "au1"}, 2)
	store.AddMember(testTenantID, domain.Member{UserID: "22222222-2222-2222-2222-222222222202", AuthUserID: "au2"}, 1)
}

type testEnv struct {
	store *repository.MemoryStore
	voice *fakeProvider
	phone *fakeProvider
	auth  *fakeProvider
	orch  *Orchestrator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()

	store := repository.NewMemoryStore()
	voice := newFakeProvider()
	phone := newFakeProvider()
	auth := newFakeProvider()
	t.Cleanup(voice.srv.Close)
	t.Cleanup(phone.srv.Close)
	t.Cleanup(auth.srv.Close)

	orch := NewOrchestrator(
		store, store, store,
		voiceai.NewClient(voice.srv.URL, "test-key", log),
		telephony.NewClient(phone.srv.URL, telephony.Credentials{AccountSID: "AC000", AuthToken: "tok"}, "https://example.com/neutral", log),
		identity.NewClient(auth.srv.URL, "service-key", log),
		NewMemoryLocker(),
		log,
	)
	return &testEnv{store: store, voice: voice, phone: phone, auth: auth, orch: orch}
}

func TestTeardownCompleteness(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(env.store)

	report, err := env.orch.Teardown(context.Background(), testTenantID)
	require.NoError(t, err)
	require.NotNil(t, report)

	// 数据层：租户范围内零残留
	counts := env.store.CountFor(testTenantID)
	assert.Empty(t, counts, "expected zero tenant-scoped rows after teardown, got %v", counts)

	// 共享号码行保留，但已解绑
	p2, ok := env.store.PhoneNumber("p2")
	require.True(t, ok, "shared number must survive teardown")
	assert.Empty(t, p2.TenantID)
	assert.Empty(t, p2.VoiceNumberID)

	// 独占号码行已删除
	_, ok = env.store.PhoneNumber("p1")
	assert.False(t, ok)

	// 语音平台：只删独占号码的绑定；共享号码的绑定归号码池，不许动
	assert.True(t, env.voice.seen("DELETE /phone-number/vn-p1"))
	assert.False(t, env.voice.seen("DELETE /phone-number/vn-p2"),
		"shared number's external registration must survive teardown")
	assert.True(t, env.voice.seen("DELETE /assistant/"+testAgentID))
	assert.Equal(t, 1, env.voice.countPrefix("DELETE /phone-number/"))

	// 运营商：两个号码（含共享号码）都重置了webhook
	assert.True(t, env.phone.seen("POST /2010-04-01/Accounts/AC000/IncomingPhoneNumbers/PN111.json"))
	assert.True(t, env.phone.seen("POST /2010-04-01/Accounts/AC000/IncomingPhoneNumbers/PN222.json"))

	// 认证服务：两个成员身份都请求了删除
	assert.True(t, env.auth.seen("DELETE /admin/users/au1"))
	assert.True(t, env.auth.seen("DELETE /admin/users/au2"))

	// 审计账目：五步齐全、全部ok
	require.Len(t, report.Steps, 5)
	wantSteps := []string{
		"voice_agent_cleanup",
		"telephony_webhook_reset",
		"relational_purge",
		"identity_purge",
		"tenant_row_delete",
	}
	for i, rec := range report.Steps {
		assert.Equal(t, wantSteps[i], rec.Step)
		assert.Equal(t, OutcomeOK, rec.Outcome, "step %s: %s", rec.Step, rec.Detail)
	}
}

func TestTeardownIdempotentRetry(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(env.store)

	_, err := env.orch.Teardown(context.Background(), testTenantID)
	require.NoError(t, err)

	// 已purge的租户重跑：NotFound，而不是在缺失子行上报错
	_, err = env.orch.Teardown(context.Background(), testTenantID)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrTenantNotFound)
}

func TestTeardownInvalidTenantID(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orch.Teardown(context.Background(), "not-a-uuid")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTenantID)
}

func TestTeardownLockContention(t *testing.T) {
	log := zap.NewNop()
	store := repository.NewMemoryStore()
	seedTenant(store)

	locker := NewMemoryLocker()
	orch := NewOrchestrator(
		store, store, store,
		voiceai.NewClient("http://127.0.0.1:1", "", log),
		telephony.NewClient("http://127.0.0.1:1", telephony.Credentials{}, "https://example.com/neutral", log),
		identity.NewClient("http://127.0.0.1:1", "", log),
		locker, log,
	)

	release, acquired, err := locker.Acquire(context.Background(), testTenantID)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = orch.Teardown(context.Background(), testTenantID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTeardownInProgress)

	release()
	_, err = orch.Teardown(context.Background(), testTenantID)
	require.NoError(t, err)
}

func TestTeardownTolerantVoiceFailure(t *testing.T) {
	// 三个绑定里一个失败：其余绑定和agent删除仍然尝试，saga继续到purge
	env := newTestEnv(t)
	env.store.AddTenant(domain.Tenant{TenantID: testTenantID, TenantName: "Bella Salon"})
	env.store.AddVoiceAgent(domain.VoiceAgent{TenantID: testTenantID, AgentID: testAgentID})
	for i := 1; i <= 3; i++ {
		env.store.AddPhoneNumber(domain.PhoneNumber{
			PhoneNumberID: fmt.Sprintf("p%d", i),
			TenantID:      testTenantID,
			E164:          fmt.Sprintf("+1555010%d", i),
			TelephonySID:  fmt.Sprintf("PN%d", i),
			VoiceNumberID: fmt.Sprintf("vn-%d", i),
		})
	}
	env.voice.failOn("/phone-number/vn-2")

	report, err := env.orch.Teardown(context.Background(), testTenantID)
	require.NoError(t, err)

	assert.Equal(t, 3, env.voice.countPrefix("DELETE /phone-number/"))
	assert.True(t, env.voice.seen("DELETE /assistant/"+testAgentID))

	require.Len(t, report.Steps, 5)
	assert.Equal(t, OutcomeWarned, report.Steps[0].Outcome)
	assert.Contains(t, report.Steps[0].Detail, "2/3")

	// 数据层purge不受影响
	assert.Empty(t, env.store.CountFor(testTenantID))
}

// failingPurge 在指定表上注入数据层故障
type failingPurge struct {
	repository.PurgeRepo
}

var errDBConnReset = errors.New("connection reset by peer")

func (f *failingPurge) DeleteCalls(_ context.Context, _ string) (int64, error) {
	return 0, errDBConnReset
}

func TestTeardownFatalShortCircuit(t *testing.T) {
	env := newTestEnv(t)
	seedTenant(env.store)

	log := zap.NewNop()
	orch := NewOrchestrator(
		env.store, &failingPurge{PurgeRepo: env.store}, env.store,
		voiceai.NewClient(env.voice.srv.URL, "test-key", log),
		telephony.NewClient(env.phone.srv.URL, telephony.Credentials{AccountSID: "AC000", AuthToken: "tok"}, "https://example.com/neutral", log),
		identity.NewClient(env.auth.srv.URL, "service-key", log),
		NewMemoryLocker(),
		log,
	)

	report, err := orch.Teardown(context.Background(), testTenantID)
	require.Error(t, err)

	var fatal *FatalStepError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "relational_purge", fatal.Step)

	// 错误链保留底层数据层错误，调用方可errors.Is判定
	assert.ErrorIs(t, err, errDBConnReset)

	// 租户行仍然存在：调用方可以重试
	_, err = env.store.GetTenant(context.Background(), testTenantID)
	require.NoError(t, err)

	// 已成功的外部清理不回滚
	assert.True(t, env.voice.seen("DELETE /assistant/"+testAgentID))

	// 账目停在致命步骤，身份purge和租户行删除未执行
	require.NotNil(t, report)
	last := report.Steps[len(report.Steps)-1]
	assert.Equal(t, "relational_purge", last.Step)
	assert.Equal(t, OutcomeFatal, last.Outcome)
	for _, rec := range report.Steps {
		assert.NotEqual(t, "identity_purge", rec.Step)
		assert.NotEqual(t, "tenant_row_delete", rec.Step)
	}

	// purge在calls之前的表已删、calls保留：重跑安全（按当前状态查询）
	counts := env.store.CountFor(testTenantID)
	assert.Zero(t, counts["call_transcripts"])
	assert.Zero(t, counts["call_events"])
	assert.Equal(t, 3, counts["calls"])
}

func TestTeardownUnconfiguredProvidersDegrade(t *testing.T) {
	// 三个外部服务都未配置：对应步骤降级为告警，数据层purge照常完成
	log := zap.NewNop()
	store := repository.NewMemoryStore()
	seedTenant(store)

	orch := NewOrchestrator(
		store, store, store,
		voiceai.NewClient("http://127.0.0.1:1", "", log),
		telephony.NewClient("http://127.0.0.1:1", telephony.Credentials{}, "https://example.com/neutral", log),
		identity.NewClient("http://127.0.0.1:1", "", log),
		NewMemoryLocker(),
		log,
	)

	report, err := orch.Teardown(context.Background(), testTenantID)
	require.NoError(t, err)

	require.Len(t, report.Steps, 5)
	assert.Equal(t, OutcomeWarned, report.Steps[0].Outcome)
	assert.Equal(t, OutcomeWarned, report.Steps[1].Outcome)
	assert.Equal(t, OutcomeWarned, report.Steps[3].Outcome) // 认证服务未配置，身份残留告警

	assert.Empty(t, store.CountFor(testTenantID))
}
