package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"answerafter-admin/internal/domain"
)

// MemoryStore 内存版数据访问实现（DB未就绪时的联测/开发支持）
// 同时实现 TenantsRepo / PurgeRepo / MembersRepo
type MemoryStore struct {
	mu sync.RWMutex

	tenants map[string]domain.Tenant
	agents  map[string]domain.VoiceAgent     // tenantID -> agent
	numbers map[string]domain.PhoneNumber    // phoneNumberID -> number

	calls           map[string]string // callID -> tenantID
	callEvents      map[string]string // eventID -> callID
	callTranscripts map[string]string // transcriptID -> callID

	appointments map[string]string // appointmentID -> tenantID
	reminders    map[string]string // reminderID -> tenantID

	services     map[string]string // serviceID -> tenantID
	subs         map[string]string // subscriptionID -> tenantID
	credits      map[string]string // creditID -> tenantID
	calConns     map[string]string // connectionID -> tenantID

	profiles map[string]domain.Member // userID -> member
	memberOf map[string]string        // userID -> tenantID
	roles    map[string][]string      // userID -> role ids
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tenants:         map[string]domain.Tenant{},
		agents:          map[string]domain.VoiceAgent{},
		numbers:         map[string]domain.PhoneNumber{},
		calls:           map[string]string{},
		callEvents:      map[string]string{},
		callTranscripts: map[string]string{},
		appointments:    map[string]string{},
		reminders:       map[string]string{},
		services:        map[string]string{},
		subs:            map[string]string{},
		credits:         map[string]string{},
		calConns:        map[string]string{},
		profiles:        map[string]domain.Member{},
		memberOf:        map[string]string{},
		roles:           map[string][]string{},
	}
}

var (
	_ TenantsRepo = (*MemoryStore)(nil)
	_ PurgeRepo   = (*MemoryStore)(nil)
	_ MembersRepo = (*MemoryStore)(nil)
)

// ---------- 数据装载（联测/单测使用） ----------

func (s *MemoryStore) AddTenant(t domain.Tenant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.Status == "" {
		t.Status = "active"
	}
	s.tenants[t.TenantID] = t
}

func (s *MemoryStore) AddVoiceAgent(a domain.VoiceAgent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.TenantID] = a
}

func (s *MemoryStore) AddPhoneNumber(n domain.PhoneNumber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.PhoneNumberID == "" {
		n.PhoneNumberID = uuid.NewString()
	}
	s.numbers[n.PhoneNumberID] = n
}

func (s *MemoryStore) AddCall(callID, tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[callID] = tenantID
}

func (s *MemoryStore) AddCallEvent(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callEvents[uuid.NewString()] = callID
}

func (s *MemoryStore) AddCallTranscript(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callTranscripts[uuid.NewString()] = callID
}

func (s *MemoryStore) AddAppointment(tenantID string, reminderCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[uuid.NewString()] = tenantID
	for i := 0; i < reminderCount; i++ {
		s.reminders[uuid.NewString()] = tenantID
	}
}

func (s *MemoryStore) AddService(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[uuid.NewString()] = tenantID
}

func (s *MemoryStore) AddSubscription(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[uuid.NewString()] = tenantID
}

func (s *MemoryStore) AddPurchasedCredit(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits[uuid.NewString()] = tenantID
}

func (s *MemoryStore) AddCalendarConnection(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calConns[uuid.NewString()] = tenantID
}

func (s *MemoryStore) AddMember(tenantID string, m domain.Member, roleCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.UserID == "" {
		m.UserID = uuid.NewString()
	}
	s.profiles[m.UserID] = m
	s.memberOf[m.UserID] = tenantID
	for i := 0; i < roleCount; i++ {
		s.roles[m.UserID] = append(s.roles[m.UserID], uuid.NewString())
	}
}

// CountFor 统计各表中仍属于该租户的行数（清除完整性检查）
func (s *MemoryStore) CountFor(tenantID string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[string]int{}
	countScoped := func(table string, m map[string]string) {
		for _, tid := range m {
			if tid == tenantID {
				counts[table]++
			}
		}
	}
	if _, ok := s.tenants[tenantID]; ok {
		counts["tenants"] = 1
	}
	if _, ok := s.agents[tenantID]; ok {
		counts["voice_agents"] = 1
	}
	for _, n := range s.numbers {
		if n.TenantID == tenantID {
			counts["phone_numbers"]++
		}
	}
	countScoped("calls", s.calls)
	for _, callID := range s.callEvents {
		if s.calls[callID] == tenantID {
			counts["call_events"]++
		}
	}
	for _, callID := range s.callTranscripts {
		if s.calls[callID] == tenantID {
			counts["call_transcripts"]++
		}
	}
	countScoped("appointments", s.appointments)
	countScoped("appointment_reminders", s.reminders)
	countScoped("services", s.services)
	countScoped("subscriptions", s.subs)
	countScoped("purchased_credits", s.credits)
	countScoped("calendar_connections", s.calConns)
	countScoped("user_profiles", s.memberOf)
	for userID := range s.roles {
		if s.memberOf[userID] == tenantID {
			counts["user_roles"] += len(s.roles[userID])
		}
	}
	return counts
}

// PhoneNumber 按id读取号码行（共享号码保留性检查）
func (s *MemoryStore) PhoneNumber(phoneNumberID string) (domain.PhoneNumber, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.numbers[phoneNumberID]
	return n, ok
}

// ---------- TenantsRepo ----------

func (s *MemoryStore) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, fmt.Errorf("tenant '%s': %w", tenantID, ErrTenantNotFound)
	}
	out := t
	return &out, nil
}

func (s *MemoryStore) ListTenants(_ context.Context, status string, page, size int) ([]domain.Tenant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]domain.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		if status != "" && t.Status != status {
			continue
		}
		all = append(all, t)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].TenantName < all[j].TenantName
	})

	total := len(all)
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) DeleteTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[tenantID]; !ok {
		return fmt.Errorf("tenant '%s': %w", tenantID, ErrTenantNotFound)
	}
	delete(s.tenants, tenantID)
	return nil
}

// ---------- PurgeRepo ----------

func (s *MemoryStore) GetVoiceAgent(_ context.Context, tenantID string) (*domain.VoiceAgent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[tenantID]
	if !ok {
		return nil, nil
	}
	out := a
	return &out, nil
}

func (s *MemoryStore) ListPhoneNumbers(_ context.Context, tenantID string) ([]domain.PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	numbers := []domain.PhoneNumber{}
	for _, n := range s.numbers {
		if n.TenantID == tenantID {
			numbers = append(numbers, n)
		}
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i].E164 < numbers[j].E164 })
	return numbers, nil
}

func (s *MemoryStore) ListCallIDs(_ context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for callID, tid := range s.calls {
		if tid == tenantID {
			ids = append(ids, callID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) deleteScoped(m map[string]string, tenantID string) int64 {
	var n int64
	for id, tid := range m {
		if tid == tenantID {
			delete(m, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) DeleteAppointmentReminders(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.reminders, tenantID), nil
}

func (s *MemoryStore) DeleteAppointments(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.appointments, tenantID), nil
}

func (s *MemoryStore) deleteByCallIDs(m map[string]string, callIDs []string) int64 {
	member := map[string]bool{}
	for _, id := range callIDs {
		member[id] = true
	}
	var n int64
	for id, callID := range m {
		if member[callID] {
			delete(m, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) DeleteCallTranscripts(_ context.Context, callIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteByCallIDs(s.callTranscripts, callIDs), nil
}

func (s *MemoryStore) DeleteCallEvents(_ context.Context, callIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteByCallIDs(s.callEvents, callIDs), nil
}

func (s *MemoryStore) DeleteCalls(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.calls, tenantID), nil
}

func (s *MemoryStore) DeleteServices(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.services, tenantID), nil
}

func (s *MemoryStore) DetachSharedPhoneNumbers(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, num := range s.numbers {
		if num.TenantID == tenantID && num.IsShared {
			num.TenantID = ""
			num.VoiceNumberID = ""
			s.numbers[id] = num
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteOwnedPhoneNumbers(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, num := range s.numbers {
		if num.TenantID == tenantID && !num.IsShared {
			delete(s.numbers, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeletePurchasedCredits(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.credits, tenantID), nil
}

func (s *MemoryStore) DeleteSubscriptions(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.subs, tenantID), nil
}

func (s *MemoryStore) DeleteCalendarConnections(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteScoped(s.calConns, tenantID), nil
}

func (s *MemoryStore) DeleteVoiceAgentRecord(_ context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[tenantID]; !ok {
		return 0, nil
	}
	delete(s.agents, tenantID)
	return 1, nil
}

// ---------- MembersRepo ----------

func (s *MemoryStore) ListMembers(_ context.Context, tenantID string) ([]domain.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	members := []domain.Member{}
	for userID, tid := range s.memberOf {
		if tid == tenantID {
			members = append(members, s.profiles[userID])
		}
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UserID < members[j].UserID })
	return members, nil
}

func (s *MemoryStore) DeleteUserRoles(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.roles[userID]))
	delete(s.roles, userID)
	return n, nil
}

func (s *MemoryStore) DeleteUserProfile(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	delete(s.memberOf, userID)
	return nil
}
