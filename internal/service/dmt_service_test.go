package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- Fakes ---

type fakeDMTRepo struct {
	records     map[string]*model.DMTRecord
	nextNumber  int
	counterErr  error
	createErr   error
	createCalls int
	updateCalls int
}

func newFakeDMTRepo() *fakeDMTRepo {
	return &fakeDMTRepo{
		records:    make(map[string]*model.DMTRecord),
		nextNumber: model.ReportCounterSeed,
	}
}

func (f *fakeDMTRepo) Create(ctx context.Context, record *model.DMTRecord) error {
	f.createCalls++
	if f.createErr != nil {
		return f.createErr
	}
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeDMTRepo) GetByID(ctx context.Context, id string) (*model.DMTRecord, error) {
	record, ok := f.records[id]
	if !ok || !record.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *record
	return &clone, nil
}

func (f *fakeDMTRepo) List(ctx context.Context, filter repository.DMTFilter) ([]model.DMTRecord, int64, error) {
	var out []model.DMTRecord
	for _, r := range f.records {
		if !r.IsActive {
			continue
		}
		if r.IsSession {
			if r.CreatedBy == filter.UserID {
				out = append(out, *r)
			}
			continue
		}
		if filter.ViewAll || r.CreatedBy == filter.UserID || r.AssignedTo == filter.UserID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportNumber > out[j].ReportNumber })
	total := int64(len(out))
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		start := (page - 1) * filter.Limit
		if start > len(out) {
			start = len(out)
		}
		end := start + filter.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, total, nil
}

func (f *fakeDMTRepo) Update(ctx context.Context, record *model.DMTRecord) error {
	f.updateCalls++
	clone := *record
	f.records[record.ID] = &clone
	return nil
}

func (f *fakeDMTRepo) SoftDelete(ctx context.Context, id string) error {
	if record, ok := f.records[id]; ok {
		record.IsActive = false
	}
	return nil
}

func (f *fakeDMTRepo) NextReportNumber(ctx context.Context) (int, error) {
	if f.counterErr != nil {
		return 0, f.counterErr
	}
	n := f.nextNumber
	f.nextNumber++
	return n, nil
}

func (f *fakeDMTRepo) CountByStatus(ctx context.Context, status model.Status) (int64, error) {
	var count int64
	for _, r := range f.records {
		if r.IsActive && r.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeDMTRepo) CountByStage(ctx context.Context, stage model.WorkflowStage) (int64, error) {
	var count int64
	for _, r := range f.records {
		if r.IsActive && r.WorkflowStatus == stage {
			count++
		}
	}
	return count, nil
}

func (f *fakeDMTRepo) CountActive(ctx context.Context) (int64, error) {
	var count int64
	for _, r := range f.records {
		if r.IsActive {
			count++
		}
	}
	return count, nil
}

type fakeUserRepo struct {
	users  map[string]*model.User
	tokens map[string]*model.RefreshToken
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		tokens: make(map[string]*model.RefreshToken),
	}
}

func (f *fakeUserRepo) addUser(role model.Role, active bool) string {
	id := uuid.New()
	f.users[id.String()] = &model.User{ID: id, Role: role, IsActive: active}
	return id.String()
}

func (f *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	f.users[user.ID.String()] = user
	return nil
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUserRepo) List(ctx context.Context, page, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range f.users {
		out = append(out, *u)
	}
	return out, int64(len(out)), nil
}

func (f *fakeUserRepo) ListActive(ctx context.Context) ([]model.User, error) {
	var out []model.User
	for _, u := range f.users {
		if u.IsActive {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *model.User) error {
	f.users[user.ID.String()] = user
	return nil
}

func (f *fakeUserRepo) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeUserRepo) GetRefreshToken(ctx context.Context, token string) (*model.RefreshToken, error) {
	rt, ok := f.tokens[token]
	if !ok || !rt.ExpiresAt.After(time.Now()) {
		return nil, gorm.ErrRecordNotFound
	}
	return rt, nil
}

func (f *fakeUserRepo) DeleteRefreshToken(ctx context.Context, token string) error {
	delete(f.tokens, token)
	return nil
}

func (f *fakeUserRepo) DeleteRefreshTokensForUser(ctx context.Context, userID string) error {
	for key, rt := range f.tokens {
		if rt.UserID.String() == userID {
			delete(f.tokens, key)
		}
	}
	return nil
}

type fakeAuditRepo struct {
	entries []model.AuditLog
	err     error
}

func (f *fakeAuditRepo) Log(ctx context.Context, entry *model.AuditLog) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(ctx context.Context, entityType string, page, limit int) ([]model.AuditLog, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

func (f *fakeAuditRepo) lastAction() string {
	if len(f.entries) == 0 {
		return ""
	}
	return f.entries[len(f.entries)-1].Action
}

type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

// --- Helpers ---

type testEnv struct {
	svc      DMTService
	dmtRepo  *fakeDMTRepo
	userRepo *fakeUserRepo
	audit    *fakeAuditRepo
}

func newTestEnv() *testEnv {
	dmtRepo := newFakeDMTRepo()
	userRepo := newFakeUserRepo()
	audit := &fakeAuditRepo{}
	return &testEnv{
		svc:      NewDMTService(dmtRepo, userRepo, audit, fakeTxManager{}, nil),
		dmtRepo:  dmtRepo,
		userRepo: userRepo,
		audit:    audit,
	}
}

func completeFields() DMTFields {
	return DMTFields{
		WorkCenter:         "WC-100",
		PartNum:            "PN-4432",
		Operation:          "0040",
		EmployeeName:       "J. Smith",
		Qty:                "3",
		Customer:           "Acme Aero",
		ShopOrder:          "SO-9981",
		SerialNumber:       "SN-0012",
		InspItem:           "Final inspection",
		Date:               "2026-08-12",
		PreparedBy:         "Q. Inspector",
		Description:        "Crack at weld seam",
		CarType:            "Internal",
		CarCycle:           "1",
		CarSecondCycleDate: "n/a",
		Disposition:        "Rework",
		DispositionDate:    "2026-08-13",
		Engineer:           "E. Ngu",
		FailureCode:        "F-17",
		ReworkHours:        "2.5",
		ResponsibleDept:    "Welding",
		MaterialScrapCost:  "120.50",
		OthersCost:         "15.00",
		EngineeringRemarks: "Grind and re-weld",
		RepairProcess:      "Standard weld repair",
	}
}

func strPtr(s string) *string { return &s }

func (e *testEnv) mustCreate(t *testing.T, actor Actor, req CreateDMTRequest) *model.DMTRecord {
	t.Helper()
	record, err := e.svc.CreateDMT(context.Background(), actor, req)
	if err != nil {
		t.Fatalf("CreateDMT: %v", err)
	}
	return record
}

// --- Tests ---

func TestCreateDMTMintsSequentialReportNumbers(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleOperator}

	first := env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields()})
	second := env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields()})

	if first.ReportNumber != model.ReportCounterSeed {
		t.Errorf("first report number = %d, want %d", first.ReportNumber, model.ReportCounterSeed)
	}
	if second.ReportNumber != first.ReportNumber+1 {
		t.Errorf("second report number = %d, want %d", second.ReportNumber, first.ReportNumber+1)
	}
	if first.Status != model.StatusOpen || first.WorkflowStatus != model.StageDraft {
		t.Errorf("new record state = (%s, %s), want (open, draft)", first.Status, first.WorkflowStatus)
	}
	if first.CreatedBy != actor.ID {
		t.Errorf("CreatedBy = %s, want %s", first.CreatedBy, actor.ID)
	}
	if env.audit.lastAction() != model.ActionCreate {
		t.Errorf("audit action = %q, want %q", env.audit.lastAction(), model.ActionCreate)
	}
}

func TestCreateDMTCounterFallback(t *testing.T) {
	env := newTestEnv()
	env.dmtRepo.counterErr = errors.New("counter table locked")
	actor := Actor{ID: uuid.NewString(), Role: model.RoleOperator}

	record := env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields()})

	// Counter failure degrades to a time-derived number, never an error.
	if record.ReportNumber < model.ReportCounterSeed {
		t.Errorf("fallback report number = %d, want >= %d", record.ReportNumber, model.ReportCounterSeed)
	}
	if _, ok := env.dmtRepo.records[record.ID]; !ok {
		t.Error("record was not persisted")
	}
}

func TestCreateDMTInsertFailureSurfacesError(t *testing.T) {
	env := newTestEnv()
	env.dmtRepo.createErr = errors.New("insert failed")
	actor := Actor{ID: uuid.NewString(), Role: model.RoleOperator}

	_, err := env.svc.CreateDMT(context.Background(), actor, CreateDMTRequest{DMTFields: completeFields()})
	if err == nil {
		t.Fatal("CreateDMT with failing insert: want error")
	}
	// Only a counter failure triggers the time-derived retry; an insert
	// failure must not.
	if env.dmtRepo.createCalls != 1 {
		t.Errorf("create attempts = %d, want 1", env.dmtRepo.createCalls)
	}
	if len(env.dmtRepo.records) != 0 {
		t.Error("record persisted despite failed insert")
	}
}

func TestCreateDMTValidatesRequiredFields(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleOperator}

	fields := completeFields()
	fields.WorkCenter = ""
	fields.FailureCode = "   "

	_, err := env.svc.CreateDMT(context.Background(), actor, CreateDMTRequest{DMTFields: fields})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("CreateDMT error = %v, want ValidationError", err)
	}
	if len(validation.Missing) != 2 {
		t.Fatalf("missing = %v, want [work_center failure_code]", validation.Missing)
	}
	if validation.Missing[0] != "work_center" || validation.Missing[1] != "failure_code" {
		t.Errorf("missing = %v, want [work_center failure_code]", validation.Missing)
	}
	if len(env.dmtRepo.records) != 0 {
		t.Error("invalid record was persisted")
	}
}

func TestCreateDMTSessionSkipsValidation(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleOperator}

	record := env.mustCreate(t, actor, CreateDMTRequest{
		DMTFields:     DMTFields{PartNum: "PN-1"},
		SaveAsSession: true,
	})

	if !record.IsSession {
		t.Error("IsSession = false, want true")
	}
	if record.ReportNumber < model.ReportCounterSeed {
		t.Errorf("session draft report number = %d, want a minted number", record.ReportNumber)
	}
}

func TestCreateDMTAssignmentEligibility(t *testing.T) {
	env := newTestEnv()
	engineerID := env.userRepo.addUser(model.RoleEngineer, true)
	supervisorID := env.userRepo.addUser(model.RoleSupervisor, true)
	inactiveID := env.userRepo.addUser(model.RoleAdmin, false)

	actor := Actor{ID: uuid.NewString(), Role: model.RoleEngineer}

	// Peer assignment is allowed.
	env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields(), AssignedTo: engineerID})

	// Lower-ranked target is rejected.
	_, err := env.svc.CreateDMT(context.Background(), actor, CreateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: supervisorID,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("assign to lower role: error = %v, want ErrForbidden", err)
	}

	// Inactive users are never eligible, regardless of rank.
	_, err = env.svc.CreateDMT(context.Background(), actor, CreateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: inactiveID,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("assign to inactive user: error = %v, want ErrForbidden", err)
	}

	// Unknown target id is indistinguishable from ineligible.
	_, err = env.svc.CreateDMT(context.Background(), actor, CreateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: uuid.NewString(),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("assign to unknown user: error = %v, want ErrForbidden", err)
	}
}

func TestAdvanceWorkflowFullPipeline(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleSupervisor}
	record := env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	// draft -> supervisor_review: no stamp yet.
	record, err := env.svc.AdvanceWorkflow(ctx, actor, record.ID)
	if err != nil {
		t.Fatalf("advance from draft: %v", err)
	}
	if record.WorkflowStatus != model.StageSupervisorReview {
		t.Fatalf("stage = %s, want supervisor_review", record.WorkflowStatus)
	}
	if record.SupervisorCompletedAt != nil {
		t.Error("supervisor stamp set on entering review, want nil")
	}

	// supervisor_review -> manager_review.
	record, err = env.svc.AdvanceWorkflow(ctx, actor, record.ID)
	if err != nil {
		t.Fatalf("advance from supervisor_review: %v", err)
	}
	if record.WorkflowStatus != model.StageManagerReview {
		t.Fatalf("stage = %s, want manager_review", record.WorkflowStatus)
	}
	if record.SupervisorCompletedAt == nil {
		t.Error("supervisor stamp not set after leaving supervisor_review")
	}
	if record.ManagerCompletedAt != nil {
		t.Error("manager stamp set early")
	}

	// manager_review -> engineer_review.
	record, err = env.svc.AdvanceWorkflow(ctx, actor, record.ID)
	if err != nil {
		t.Fatalf("advance from manager_review: %v", err)
	}
	if record.WorkflowStatus != model.StageEngineerReview {
		t.Fatalf("stage = %s, want engineer_review", record.WorkflowStatus)
	}
	if record.ManagerCompletedAt == nil {
		t.Error("manager stamp not set after leaving manager_review")
	}

	// engineer_review -> completed.
	record, err = env.svc.AdvanceWorkflow(ctx, actor, record.ID)
	if err != nil {
		t.Fatalf("advance from engineer_review: %v", err)
	}
	if record.WorkflowStatus != model.StageCompleted {
		t.Fatalf("stage = %s, want completed", record.WorkflowStatus)
	}
	if record.EngineerCompletedAt == nil {
		t.Error("engineer stamp not set after completion")
	}

	if env.audit.lastAction() != model.ActionWorkflowAdvance {
		t.Errorf("audit action = %q, want %q", env.audit.lastAction(), model.ActionWorkflowAdvance)
	}
}

func TestAdvanceWorkflowCompletedIsTerminal(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	record := env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := env.svc.AdvanceWorkflow(ctx, actor, record.ID); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	updatesBefore := env.dmtRepo.updateCalls
	auditsBefore := len(env.audit.entries)

	_, err := env.svc.AdvanceWorkflow(ctx, actor, record.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("advance past completed: error = %v, want ErrInvalidState", err)
	}

	// A failed advance mutates nothing and leaves no trail.
	if env.dmtRepo.updateCalls != updatesBefore {
		t.Error("record was updated by a rejected advance")
	}
	if len(env.audit.entries) != auditsBefore {
		t.Error("audit entry written for a rejected advance")
	}
}

func TestAdvanceWorkflowClosedRecordFails(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	record := env.mustCreate(t, actor, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	if _, err := env.svc.CloseDMT(ctx, actor, record.ID); err != nil {
		t.Fatalf("CloseDMT: %v", err)
	}

	_, err := env.svc.AdvanceWorkflow(ctx, actor, record.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("advance closed record: error = %v, want ErrInvalidState", err)
	}

	stored, _ := env.dmtRepo.GetByID(ctx, record.ID)
	if stored.WorkflowStatus != model.StageDraft {
		t.Errorf("stage = %s after rejected advance, want draft", stored.WorkflowStatus)
	}
}

func TestCloseDMTRoleGate(t *testing.T) {
	env := newTestEnv()
	creator := Actor{ID: uuid.NewString(), Role: model.RoleOperator}
	record := env.mustCreate(t, creator, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	for _, role := range []model.Role{model.RoleManager, model.RoleSupervisor, model.RoleOperator} {
		_, err := env.svc.CloseDMT(ctx, Actor{ID: uuid.NewString(), Role: role}, record.ID)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("CloseDMT as %s: error = %v, want ErrForbidden", role, err)
		}
	}

	closed, err := env.svc.CloseDMT(ctx, Actor{ID: uuid.NewString(), Role: model.RoleEngineer}, record.ID)
	if err != nil {
		t.Fatalf("CloseDMT as Engineer: %v", err)
	}
	if closed.Status != model.StatusClosed {
		t.Errorf("status = %s, want closed", closed.Status)
	}
	if env.audit.lastAction() != model.ActionClose {
		t.Errorf("audit action = %q, want %q", env.audit.lastAction(), model.ActionClose)
	}
}

func TestReopenDMTPreservesWorkflowState(t *testing.T) {
	env := newTestEnv()
	admin := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	record := env.mustCreate(t, admin, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	// Walk to engineer_review, then close.
	for i := 0; i < 3; i++ {
		if _, err := env.svc.AdvanceWorkflow(ctx, admin, record.ID); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}
	if _, err := env.svc.CloseDMT(ctx, admin, record.ID); err != nil {
		t.Fatalf("CloseDMT: %v", err)
	}

	// Closing is not a promotion to Engineer for reopening purposes.
	_, err := env.svc.ReopenDMT(ctx, Actor{ID: uuid.NewString(), Role: model.RoleEngineer}, record.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("ReopenDMT as Engineer: error = %v, want ErrForbidden", err)
	}

	reopened, err := env.svc.ReopenDMT(ctx, admin, record.ID)
	if err != nil {
		t.Fatalf("ReopenDMT as Admin: %v", err)
	}
	if reopened.Status != model.StatusOpen {
		t.Errorf("status = %s, want open", reopened.Status)
	}
	if reopened.WorkflowStatus != model.StageEngineerReview {
		t.Errorf("stage = %s after reopen, want engineer_review", reopened.WorkflowStatus)
	}
	if reopened.SupervisorCompletedAt == nil || reopened.ManagerCompletedAt == nil {
		t.Error("completion stamps cleared by reopen")
	}
	if env.audit.lastAction() != model.ActionReopen {
		t.Errorf("audit action = %q, want %q", env.audit.lastAction(), model.ActionReopen)
	}
}

func TestUpdateDMTUnchangedAssigneeSkipsEligibilityCheck(t *testing.T) {
	env := newTestEnv()
	supervisorID := env.userRepo.addUser(model.RoleSupervisor, true)

	operator := Actor{ID: uuid.NewString(), Role: model.RoleOperator}
	record := env.mustCreate(t, operator, CreateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: supervisorID,
	})

	// A Manager saving the record keeps the existing Supervisor assignee,
	// even though a Manager could not newly assign to one.
	manager := Actor{ID: uuid.NewString(), Role: model.RoleManager}
	updated, err := env.svc.UpdateDMT(context.Background(), manager, record.ID, UpdateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: strPtr(supervisorID),
	})
	if err != nil {
		t.Fatalf("UpdateDMT with unchanged assignee: %v", err)
	}
	if updated.AssignedTo != supervisorID {
		t.Errorf("AssignedTo = %s, want %s", updated.AssignedTo, supervisorID)
	}
}

func TestUpdateDMTNewAssigneeIsChecked(t *testing.T) {
	env := newTestEnv()
	operatorID := env.userRepo.addUser(model.RoleOperator, true)

	creator := Actor{ID: uuid.NewString(), Role: model.RoleOperator}
	record := env.mustCreate(t, creator, CreateDMTRequest{DMTFields: completeFields()})

	engineer := Actor{ID: uuid.NewString(), Role: model.RoleEngineer}
	_, err := env.svc.UpdateDMT(context.Background(), engineer, record.ID, UpdateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: strPtr(operatorID),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("UpdateDMT assigning to lower role: error = %v, want ErrForbidden", err)
	}
}

func TestUpdateDMTAssigneeOmittedVersusCleared(t *testing.T) {
	env := newTestEnv()
	engineerID := env.userRepo.addUser(model.RoleEngineer, true)
	ctx := context.Background()

	actor := Actor{ID: uuid.NewString(), Role: model.RoleEngineer}
	record := env.mustCreate(t, actor, CreateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: engineerID,
	})

	// A payload without assigned_to leaves the assignment alone.
	updated, err := env.svc.UpdateDMT(ctx, actor, record.ID, UpdateDMTRequest{DMTFields: completeFields()})
	if err != nil {
		t.Fatalf("UpdateDMT without assignee: %v", err)
	}
	if updated.AssignedTo != engineerID {
		t.Errorf("AssignedTo = %q after omitted field, want %q", updated.AssignedTo, engineerID)
	}

	// An explicit empty value clears it.
	updated, err = env.svc.UpdateDMT(ctx, actor, record.ID, UpdateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: strPtr(""),
	})
	if err != nil {
		t.Fatalf("UpdateDMT clearing assignee: %v", err)
	}
	if updated.AssignedTo != "" {
		t.Errorf("AssignedTo = %q after explicit clear, want empty", updated.AssignedTo)
	}
}

func TestUpdateDMTSessionToFullRequiresFields(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleSupervisor}
	record := env.mustCreate(t, actor, CreateDMTRequest{
		DMTFields:     DMTFields{PartNum: "PN-1"},
		SaveAsSession: true,
	})
	ctx := context.Background()

	// Promoting a session draft to a real save enforces the full field set.
	_, err := env.svc.UpdateDMT(ctx, actor, record.ID, UpdateDMTRequest{
		DMTFields: DMTFields{PartNum: "PN-1"},
	})
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("UpdateDMT error = %v, want ValidationError", err)
	}

	updated, err := env.svc.UpdateDMT(ctx, actor, record.ID, UpdateDMTRequest{DMTFields: completeFields()})
	if err != nil {
		t.Fatalf("UpdateDMT with complete fields: %v", err)
	}
	if updated.IsSession {
		t.Error("IsSession = true after full save, want false")
	}
}

func TestDeleteDMTRoleGate(t *testing.T) {
	env := newTestEnv()
	creator := Actor{ID: uuid.NewString(), Role: model.RoleOperator}
	record := env.mustCreate(t, creator, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	for _, role := range []model.Role{model.RoleManager, model.RoleEngineer, model.RoleOperator} {
		err := env.svc.DeleteDMT(ctx, Actor{ID: uuid.NewString(), Role: role}, record.ID)
		if !errors.Is(err, ErrForbidden) {
			t.Errorf("DeleteDMT as %s: error = %v, want ErrForbidden", role, err)
		}
	}

	if err := env.svc.DeleteDMT(ctx, Actor{ID: uuid.NewString(), Role: model.RoleSupervisor}, record.ID); err != nil {
		t.Fatalf("DeleteDMT as Supervisor: %v", err)
	}

	// Soft-deleted records are gone from reads.
	if _, err := env.svc.GetDMT(ctx, creator, record.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDMT after delete: error = %v, want ErrNotFound", err)
	}
}

func TestPermissionsFollowRecordState(t *testing.T) {
	env := newTestEnv()
	admin := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	record := env.mustCreate(t, admin, CreateDMTRequest{DMTFields: completeFields()})
	ctx := context.Background()

	engineer := Actor{ID: uuid.NewString(), Role: model.RoleEngineer}
	perms, err := env.svc.Permissions(ctx, engineer, record.ID)
	if err != nil {
		t.Fatalf("Permissions: %v", err)
	}
	if !perms.Engineering || !perms.CanClose {
		t.Errorf("engineer on open record: %+v, want engineering edit and close", perms)
	}

	if _, err := env.svc.CloseDMT(ctx, admin, record.ID); err != nil {
		t.Fatalf("CloseDMT: %v", err)
	}

	perms, err = env.svc.Permissions(ctx, engineer, record.ID)
	if err != nil {
		t.Fatalf("Permissions after close: %v", err)
	}
	if perms != (workflow.PermissionSet{CanPrint: true}) {
		t.Errorf("engineer on closed record: %+v, want print-only", perms)
	}
}

func TestAuditFailureDoesNotBlockOperations(t *testing.T) {
	env := newTestEnv()
	env.audit.err = errors.New("audit table unavailable")
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}

	record, err := env.svc.CreateDMT(context.Background(), actor, CreateDMTRequest{DMTFields: completeFields()})
	if err != nil {
		t.Fatalf("CreateDMT with failing audit: %v", err)
	}
	if _, ok := env.dmtRepo.records[record.ID]; !ok {
		t.Error("record not persisted when audit write fails")
	}
}

func TestRecordLifecycleScenario(t *testing.T) {
	env := newTestEnv()
	operatorID := env.userRepo.addUser(model.RoleOperator, true)
	ctx := context.Background()

	creator := Actor{ID: uuid.NewString(), Role: model.RoleSupervisor}
	record := env.mustCreate(t, creator, CreateDMTRequest{DMTFields: completeFields()})

	if record.ReportNumber != 1000 {
		t.Fatalf("first report number = %d, want 1000", record.ReportNumber)
	}

	record, err := env.svc.AdvanceWorkflow(ctx, creator, record.ID)
	if err != nil {
		t.Fatalf("AdvanceWorkflow: %v", err)
	}
	if record.WorkflowStatus != model.StageSupervisorReview {
		t.Fatalf("stage = %s, want supervisor_review", record.WorkflowStatus)
	}

	// Hand-off to a junior is rejected and leaves the record untouched.
	_, err = env.svc.UpdateDMT(ctx, creator, record.ID, UpdateDMTRequest{
		DMTFields:  completeFields(),
		AssignedTo: strPtr(operatorID),
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("assign to Operator: error = %v, want ErrForbidden", err)
	}

	stored, err := env.svc.GetDMT(ctx, creator, record.ID)
	if err != nil {
		t.Fatalf("GetDMT: %v", err)
	}
	if stored.AssignedTo != "" {
		t.Errorf("AssignedTo = %q after rejected assignment, want empty", stored.AssignedTo)
	}
	if stored.WorkflowStatus != model.StageSupervisorReview {
		t.Errorf("stage = %s after rejected assignment, want supervisor_review", stored.WorkflowStatus)
	}
}

func TestGetDMTNotFound(t *testing.T) {
	env := newTestEnv()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}

	_, err := env.svc.GetDMT(context.Background(), actor, "ZZZZZZZZ")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDMT missing id: error = %v, want ErrNotFound", err)
	}
}
