package claim

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/feetrack/feetrack/internal/domain/audit"
	"github.com/feetrack/feetrack/internal/domain/consultation"
	"github.com/feetrack/feetrack/internal/domain/doctor"
	"github.com/feetrack/feetrack/internal/platform/db"
)

// -- mocks --

type mockClaimRepo struct {
	claims map[uuid.UUID]*Claim
	// failUpdates makes the next N updates lose the optimistic lock race.
	failUpdates int
	billed      map[uuid.UUID]decimal.Decimal
}

func newMockClaimRepo() *mockClaimRepo {
	return &mockClaimRepo{
		claims: make(map[uuid.UUID]*Claim),
		billed: make(map[uuid.UUID]decimal.Decimal),
	}
}

func copyClaim(c *Claim) *Claim {
	cp := *c
	return &cp
}

func (m *mockClaimRepo) Create(_ context.Context, c *Claim) error {
	c.ID = uuid.New()
	c.VersionID = 1
	c.CreatedAt = time.Now()
	m.claims[c.ID] = copyClaim(c)
	return nil
}

func (m *mockClaimRepo) GetByID(_ context.Context, id uuid.UUID) (*Claim, error) {
	c, ok := m.claims[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyClaim(c), nil
}

func (m *mockClaimRepo) GetByConsultation(_ context.Context, consultationID uuid.UUID) (*Claim, error) {
	for _, c := range m.claims {
		if c.ConsultationID == consultationID {
			return copyClaim(c), nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockClaimRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return m.GetByID(ctx, id)
}

func (m *mockClaimRepo) Update(_ context.Context, c *Claim) error {
	stored, ok := m.claims[c.ID]
	if !ok {
		return ErrNotFound
	}
	if m.failUpdates > 0 {
		m.failUpdates--
		return ErrVersionConflict
	}
	if stored.VersionID != c.VersionID {
		return ErrVersionConflict
	}
	c.VersionID++
	m.claims[c.ID] = copyClaim(c)
	return nil
}

func (m *mockClaimRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Claim, int, error) {
	var items []*Claim
	for _, c := range m.claims {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		items = append(items, copyClaim(c))
	}
	return items, len(items), nil
}

func (m *mockClaimRepo) Stats(_ context.Context, f ListFilter) (*Stats, error) {
	s := &Stats{}
	for _, c := range m.claims {
		s.Count++
		s.GrossTotal = s.GrossTotal.Add(c.GrossValue)
		s.RejectedTotal = s.RejectedTotal.Add(c.RejectedValue)
		s.NetTotal = s.NetTotal.Add(c.NetValue)
		s.PayoutTotal = s.PayoutTotal.Add(c.PayoutValue)
	}
	return s, nil
}

func (m *mockClaimRepo) ReportByDoctor(_ context.Context, doctorID uuid.UUID) ([]*DoctorReportRow, error) {
	return nil, nil
}

func (m *mockClaimRepo) ListGrossMismatches(_ context.Context) ([]*GrossMismatch, error) {
	var out []*GrossMismatch
	for _, c := range m.claims {
		billed, ok := m.billed[c.ConsultationID]
		if ok && !billed.Equal(c.GrossValue) {
			out = append(out, &GrossMismatch{
				ClaimID:        c.ID,
				ConsultationID: c.ConsultationID,
				ClaimGross:     c.GrossValue,
				BilledAmount:   billed,
			})
		}
	}
	return out, nil
}

type mockAuditRepo struct {
	entries []*audit.Entry
}

func (m *mockAuditRepo) Append(_ context.Context, e *audit.Entry) error {
	e.ID = int64(len(m.entries) + 1)
	e.CreatedAt = time.Now()
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockAuditRepo) ListForClaim(_ context.Context, claimID uuid.UUID, limit, offset int) ([]*audit.Entry, int, error) {
	var out []*audit.Entry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].ClaimID == claimID {
			out = append(out, m.entries[i])
		}
	}
	return out, len(out), nil
}

func (m *mockAuditRepo) lastKind() string {
	if len(m.entries) == 0 {
		return ""
	}
	return m.entries[len(m.entries)-1].Kind
}

type mockConsultationRepo struct {
	consultations map[uuid.UUID]*consultation.Consultation
}

func (m *mockConsultationRepo) Create(_ context.Context, c *consultation.Consultation) error {
	c.ID = uuid.New()
	m.consultations[c.ID] = c
	return nil
}

func (m *mockConsultationRepo) GetByID(_ context.Context, id uuid.UUID) (*consultation.Consultation, error) {
	c, ok := m.consultations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockConsultationRepo) Update(_ context.Context, c *consultation.Consultation) error {
	m.consultations[c.ID] = c
	return nil
}

func (m *mockConsultationRepo) SetHasClaim(_ context.Context, id uuid.UUID, hasClaim bool) error {
	m.consultations[id].HasClaim = hasClaim
	return nil
}

func (m *mockConsultationRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.consultations, id)
	return nil
}

func (m *mockConsultationRepo) List(_ context.Context, f consultation.ListFilter, limit, offset int) ([]*consultation.Consultation, int, error) {
	return nil, 0, nil
}

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*doctor.Doctor
}

func (m *mockDoctorRepo) Create(_ context.Context, d *doctor.Doctor) error {
	d.ID = uuid.New()
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d, nil
}

func (m *mockDoctorRepo) GetByCRM(_ context.Context, crm string) (*doctor.Doctor, error) {
	return nil, ErrNotFound
}

func (m *mockDoctorRepo) Update(_ context.Context, d *doctor.Doctor) error { return nil }
func (m *mockDoctorRepo) Delete(_ context.Context, id uuid.UUID) error     { return nil }
func (m *mockDoctorRepo) List(_ context.Context, activeOnly bool, limit, offset int) ([]*doctor.Doctor, int, error) {
	return nil, 0, nil
}

// -- fixture --

type fixture struct {
	svc          *Service
	claims       *mockClaimRepo
	audits       *mockAuditRepo
	consultation *consultation.Consultation
	doctor       *doctor.Doctor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	doctors := &mockDoctorRepo{doctors: make(map[uuid.UUID]*doctor.Doctor)}
	consultations := &mockConsultationRepo{consultations: make(map[uuid.UUID]*consultation.Consultation)}
	claims := newMockClaimRepo()
	audits := &mockAuditRepo{}

	doc := &doctor.Doctor{Name: "Dr. Ana Souza", CRM: "CRM-12345", Active: true}
	if err := doctors.Create(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	planID := uuid.New()
	cons := &consultation.Consultation{
		DoctorID:     doc.ID,
		PatientID:    uuid.New(),
		PlanID:       &planID,
		PayerType:    consultation.PayerInsurance,
		Date:         time.Now(),
		BilledAmount: dec("400.00"),
	}
	if err := consultations.Create(context.Background(), cons); err != nil {
		t.Fatal(err)
	}
	claims.billed[cons.ID] = cons.BilledAmount

	svc := NewService(claims, audits, consultations, doctors, db.PassthroughTxRunner())
	return &fixture{svc: svc, claims: claims, audits: audits, consultation: cons, doctor: doc}
}

func (f *fixture) create(t *testing.T) *Claim {
	t.Helper()
	c, err := f.svc.Create(context.Background(), CreateInput{ConsultationID: f.consultation.ID}, "tester")
	if err != nil {
		t.Fatalf("create claim: %v", err)
	}
	return c
}

func (f *fixture) submitted(t *testing.T) *Claim {
	t.Helper()
	c := f.create(t)
	c, err := f.svc.Submit(context.Background(), c.ID, "tester")
	if err != nil {
		t.Fatalf("submit claim: %v", err)
	}
	return c
}

func (f *fixture) rejected(t *testing.T, value string) *Claim {
	t.Helper()
	c := f.submitted(t)
	c, err := f.svc.RegisterRejection(context.Background(), c.ID, dec(value), "code 1820", "tester")
	if err != nil {
		t.Fatalf("register rejection: %v", err)
	}
	return c
}

// -- tests --

func TestCreate(t *testing.T) {
	f := newFixture(t)

	c := f.create(t)

	if c.Status != StatusPending {
		t.Errorf("expected status PENDING, got %s", c.Status)
	}
	if !c.GrossValue.Equal(dec("400.00")) {
		t.Errorf("expected gross 400.00, got %s", c.GrossValue)
	}
	if !c.NetValue.Equal(dec("400.00")) {
		t.Errorf("expected net 400.00, got %s", c.NetValue)
	}
	if !c.PayoutValue.Equal(dec("280.00")) {
		t.Errorf("expected payout 280.00, got %s", c.PayoutValue)
	}
	if !f.consultation.HasClaim {
		t.Error("expected consultation to be flagged as claimed")
	}
	if f.audits.lastKind() != audit.KindCreated {
		t.Errorf("expected created audit entry, got %q", f.audits.lastKind())
	}
}

func TestCreate_DuplicateConsultation(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	_, err := f.svc.Create(context.Background(), CreateInput{ConsultationID: f.consultation.ID}, "tester")
	if !IsKind(err, KindAlreadyExists) {
		t.Errorf("expected already_exists, got %v", err)
	}
}

func TestCreate_PrivateConsultation(t *testing.T) {
	f := newFixture(t)
	f.consultation.PayerType = consultation.PayerPrivate
	f.consultation.PlanID = nil

	_, err := f.svc.Create(context.Background(), CreateInput{ConsultationID: f.consultation.ID}, "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition, got %v", err)
	}
}

func TestCreate_DoctorPercentOverride(t *testing.T) {
	f := newFixture(t)
	pct := dec("80")
	f.doctor.PayoutPercent = &pct

	c := f.create(t)
	if !c.PayoutValue.Equal(dec("320.00")) {
		t.Errorf("expected payout 320.00 at 80%%, got %s", c.PayoutValue)
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	c, err := f.svc.Submit(context.Background(), c.ID, "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusSubmitted {
		t.Errorf("expected SUBMITTED, got %s", c.Status)
	}
	if f.audits.lastKind() != audit.KindStatusChanged {
		t.Errorf("expected status_changed audit entry, got %q", f.audits.lastKind())
	}
}

func TestSubmit_OnlyFromPending(t *testing.T) {
	f := newFixture(t)
	c := f.submitted(t)

	_, err := f.svc.Submit(context.Background(), c.ID, "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition, got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	c := f.submitted(t)

	c, err := f.svc.MarkPaid(context.Background(), c.ID, nil, "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusPaid {
		t.Errorf("expected PAID, got %s", c.Status)
	}
	if c.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}
}

func TestMarkPaid_ExplicitDate(t *testing.T) {
	f := newFixture(t)
	c := f.submitted(t)

	settled := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)
	c, err := f.svc.MarkPaid(context.Background(), c.ID, &settled, "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.PaidAt == nil || !c.PaidAt.Equal(settled) {
		t.Errorf("expected paid_at %s, got %v", settled, c.PaidAt)
	}
}

func TestMarkPaid_OnlyFromSubmitted(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	_, err := f.svc.MarkPaid(context.Background(), c.ID, nil, "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition, got %v", err)
	}
}

func TestRegisterRejection(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	if c.Status != StatusRejected {
		t.Errorf("expected REJECTED, got %s", c.Status)
	}
	if !c.RejectedValue.Equal(dec("100.00")) {
		t.Errorf("expected rejected 100.00, got %s", c.RejectedValue)
	}
	if !c.NetValue.Equal(dec("300.00")) {
		t.Errorf("expected net 300.00, got %s", c.NetValue)
	}
	if !c.PayoutValue.Equal(dec("210.00")) {
		t.Errorf("expected payout 210.00, got %s", c.PayoutValue)
	}
	if c.RejectedAt == nil || c.RejectionReason == nil {
		t.Error("expected rejection timestamp and reason to be set")
	}

	last := f.audits.entries[len(f.audits.entries)-1]
	if last.Kind != audit.KindRejectionRegistered {
		t.Fatalf("expected rejection_registered entry, got %q", last.Kind)
	}
	if last.Detail[audit.DetailOldValue] != "0.00" || last.Detail[audit.DetailNewValue] != "100.00" {
		t.Errorf("unexpected audit detail: %v", last.Detail)
	}
}

func TestRegisterRejection_FullGross(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "400.00")

	if c.NetValue.Sign() != 0 {
		t.Errorf("expected net 0, got %s", c.NetValue)
	}
	if c.PayoutValue.Sign() != 0 {
		t.Errorf("expected payout 0, got %s", c.PayoutValue)
	}
}

func TestRegisterRejection_ZeroClears(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	c, err := f.svc.RegisterRejection(context.Background(), c.ID, decimal.Zero, "", "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusPending {
		t.Errorf("expected PENDING after clearing rejection, got %s", c.Status)
	}
	if c.RejectionReason != nil || c.RejectedAt != nil {
		t.Error("expected rejection fields to be cleared")
	}
	if !c.NetValue.Equal(dec("400.00")) || !c.PayoutValue.Equal(dec("280.00")) {
		t.Errorf("expected restored values, got net %s payout %s", c.NetValue, c.PayoutValue)
	}
}

func TestRegisterRejection_Bounds(t *testing.T) {
	f := newFixture(t)
	c := f.submitted(t)

	_, err := f.svc.RegisterRejection(context.Background(), c.ID, dec("-1"), "", "tester")
	if !IsKind(err, KindInvalidAmount) {
		t.Errorf("expected invalid_amount for negative value, got %v", err)
	}

	_, err = f.svc.RegisterRejection(context.Background(), c.ID, dec("400.01"), "", "tester")
	if !IsKind(err, KindInvalidAmount) {
		t.Errorf("expected invalid_amount for value above gross, got %v", err)
	}
}

func TestRegisterRejection_FromPending(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	c, err := f.svc.RegisterRejection(context.Background(), c.ID, dec("100.00"), "code 1820", "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusRejected {
		t.Errorf("expected REJECTED, got %s", c.Status)
	}
	if !c.NetValue.Equal(dec("300.00")) || !c.PayoutValue.Equal(dec("210.00")) {
		t.Errorf("expected net 300.00 payout 210.00, got %s / %s", c.NetValue, c.PayoutValue)
	}
}

func TestRegisterRejection_TerminalStates(t *testing.T) {
	f := newFixture(t)

	paid := f.submitted(t)
	if _, err := f.svc.MarkPaid(context.Background(), paid.ID, nil, "tester"); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.RegisterRejection(context.Background(), paid.ID, dec("50.00"), "", "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition on paid claim, got %v", err)
	}
}

func TestRegisterRejection_CancelledClaim(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	if _, err := f.svc.Cancel(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.RegisterRejection(context.Background(), c.ID, dec("50.00"), "", "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition on cancelled claim, got %v", err)
	}
}

func TestRegisterRejection_ResetsAppealState(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "unjustified", "tester"); err != nil {
		t.Fatalf("file appeal: %v", err)
	}

	c, err := f.svc.RegisterRejection(context.Background(), c.ID, dec("150.00"), "updated code", "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.AppealFiled || c.AppealStatus != nil || c.RecoveredValue.Sign() != 0 {
		t.Error("expected appeal sub-state to be reset by a new rejection")
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	c, err := f.svc.Cancel(context.Background(), c.ID, "duplicate entry", "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusCancelled {
		t.Errorf("expected CANCELLED, got %s", c.Status)
	}
	// Monetary values stay frozen.
	if !c.NetValue.Equal(dec("300.00")) || !c.PayoutValue.Equal(dec("210.00")) {
		t.Errorf("expected frozen values, got net %s payout %s", c.NetValue, c.PayoutValue)
	}
}

func TestCancel_PaidClaim(t *testing.T) {
	f := newFixture(t)
	c := f.submitted(t)
	if _, err := f.svc.MarkPaid(context.Background(), c.ID, nil, "tester"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Cancel(context.Background(), c.ID, "", "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition for paid claim, got %v", err)
	}
}

func TestCancel_Twice(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)
	if _, err := f.svc.Cancel(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.Cancel(context.Background(), c.ID, "", "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition for double cancel, got %v", err)
	}
}

func TestFileAppeal(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	c, err := f.svc.FileAppeal(context.Background(), c.ID, "service was pre-authorized", "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.HasOpenAppeal() {
		t.Error("expected an open appeal")
	}
	if c.AppealFiledAt == nil {
		t.Error("expected appeal_filed_at to be set")
	}
	if f.audits.lastKind() != audit.KindAppealFiled {
		t.Errorf("expected appeal_filed audit entry, got %q", f.audits.lastKind())
	}
}

func TestFileAppeal_RequiresRejected(t *testing.T) {
	f := newFixture(t)
	c := f.submitted(t)

	_, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester")
	if !IsKind(err, KindInvalidTransition) {
		t.Errorf("expected invalid_transition, got %v", err)
	}
}

func TestFileAppeal_AlreadyOpen(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester")
	if !IsKind(err, KindAppealAlreadyOpen) {
		t.Errorf("expected appeal_already_open, got %v", err)
	}
}

func TestResolveAppeal_FullyAccepted(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	c, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealFullyAccepted, decimal.Zero, "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusPaid {
		t.Errorf("expected PAID after full recovery, got %s", c.Status)
	}
	if c.RejectedValue.Sign() != 0 {
		t.Errorf("expected rejected 0, got %s", c.RejectedValue)
	}
	if !c.RecoveredValue.Equal(dec("100.00")) {
		t.Errorf("expected recovered 100.00, got %s", c.RecoveredValue)
	}
	if !c.NetValue.Equal(dec("400.00")) || !c.PayoutValue.Equal(dec("280.00")) {
		t.Errorf("expected full values back, got net %s payout %s", c.NetValue, c.PayoutValue)
	}
	if c.PaidAt == nil {
		t.Error("expected paid_at to be set")
	}
}

func TestResolveAppeal_PartiallyAccepted(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	c, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealPartiallyAccepted, dec("50.00"), "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusRejected {
		t.Errorf("expected REJECTED with residual, got %s", c.Status)
	}
	if !c.RejectedValue.Equal(dec("50.00")) {
		t.Errorf("expected rejected 50.00, got %s", c.RejectedValue)
	}
	if !c.NetValue.Equal(dec("350.00")) || !c.PayoutValue.Equal(dec("245.00")) {
		t.Errorf("expected net 350.00 payout 245.00, got %s / %s", c.NetValue, c.PayoutValue)
	}
}

func TestResolveAppeal_PartialBounds(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	for _, v := range []string{"0", "-10", "100.00", "150.00"} {
		_, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealPartiallyAccepted, dec(v), "tester")
		if !IsKind(err, KindInvalidRecoveredValue) {
			t.Errorf("recovered %s: expected invalid_recovered_value, got %v", v, err)
		}
	}
}

func TestResolveAppeal_Denied(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}

	c, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealDenied, dec("999"), "tester")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Status != StatusRejected {
		t.Errorf("expected REJECTED, got %s", c.Status)
	}
	if !c.RejectedValue.Equal(dec("100.00")) {
		t.Errorf("expected rejected unchanged at 100.00, got %s", c.RejectedValue)
	}
	if c.RecoveredValue.Sign() != 0 {
		t.Errorf("expected recovered forced to 0, got %s", c.RecoveredValue)
	}
	if c.AppealStatus == nil || *c.AppealStatus != AppealDenied {
		t.Error("expected appeal status DENIED")
	}
}

func TestResolveAppeal_NoOpenAppeal(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	_, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealDenied, decimal.Zero, "tester")
	if !IsKind(err, KindNoOpenAppeal) {
		t.Errorf("expected no_open_appeal, got %v", err)
	}
}

func TestResolveAppeal_Twice(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealDenied, decimal.Zero, "tester"); err != nil {
		t.Fatal(err)
	}

	_, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealDenied, decimal.Zero, "tester")
	if !IsKind(err, KindNoOpenAppeal) {
		t.Errorf("expected no_open_appeal after resolution, got %v", err)
	}
}

func TestFileAppeal_AfterResolution(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ResolveAppeal(context.Background(), c.ID, AppealDenied, decimal.Zero, "tester"); err != nil {
		t.Fatal(err)
	}

	// A resolved appeal still counts against this rejection; a new appeal
	// needs a new rejection first.
	_, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester")
	if !IsKind(err, KindAppealAlreadyOpen) {
		t.Errorf("expected appeal_already_open, got %v", err)
	}

	c, err = f.svc.RegisterRejection(context.Background(), c.ID, dec("80.00"), "new code", "tester")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.FileAppeal(context.Background(), c.ID, "", "tester"); err != nil {
		t.Errorf("expected appeal to be possible after a new rejection, got %v", err)
	}
}

func TestMutation_RetriesOnConflict(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	f.claims.failUpdates = 2
	got, err := f.svc.Submit(context.Background(), c.ID, "tester")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if got.Status != StatusSubmitted {
		t.Errorf("expected SUBMITTED, got %s", got.Status)
	}
}

func TestMutation_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFixture(t)
	c := f.create(t)

	f.claims.failUpdates = maxRetries
	_, err := f.svc.Submit(context.Background(), c.ID, "tester")
	if !IsKind(err, KindConflict) {
		t.Errorf("expected conflict after %d failed attempts, got %v", maxRetries, err)
	}
}

func TestMutation_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), uuid.New(), "tester")
	if !IsKind(err, KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}

func TestCorrectGrossValues(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	// Billing later corrects the consultation's amount.
	f.consultation.BilledAmount = dec("450.00")
	f.claims.billed[f.consultation.ID] = dec("450.00")

	corrections, err := f.svc.CorrectGrossValues(context.Background(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections) != 1 {
		t.Fatalf("expected 1 correction, got %d", len(corrections))
	}
	if !corrections[0].NewGross.Equal(dec("450.00")) {
		t.Errorf("expected new gross 450.00, got %s", corrections[0].NewGross)
	}

	got, err := f.svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.GrossValue.Equal(dec("450.00")) {
		t.Errorf("expected gross 450.00, got %s", got.GrossValue)
	}
	// Derived values are left untouched by the reconciliation.
	if !got.NetValue.Equal(dec("300.00")) || !got.PayoutValue.Equal(dec("210.00")) {
		t.Errorf("expected derived values untouched, got net %s payout %s", got.NetValue, got.PayoutValue)
	}
	if f.audits.lastKind() != audit.KindGrossCorrected {
		t.Errorf("expected gross_corrected audit entry, got %q", f.audits.lastKind())
	}
}

func TestCorrectGrossValues_SkipsBelowRejection(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	// The corrected amount is below what the payer already rejected; writing
	// it back would leave rejected_value above gross_value.
	f.consultation.BilledAmount = dec("80.00")
	f.claims.billed[f.consultation.ID] = dec("80.00")

	corrections, err := f.svc.CorrectGrossValues(context.Background(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections) != 0 {
		t.Fatalf("expected claim to be skipped, got %d corrections", len(corrections))
	}

	got, err := f.svc.Get(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.GrossValue.Equal(dec("400.00")) {
		t.Errorf("expected gross untouched at 400.00, got %s", got.GrossValue)
	}
}

func TestCorrectGrossValues_NoMismatches(t *testing.T) {
	f := newFixture(t)
	f.create(t)

	corrections, err := f.svc.CorrectGrossValues(context.Background(), "admin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(corrections) != 0 {
		t.Errorf("expected no corrections, got %d", len(corrections))
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	c := f.rejected(t, "100.00")

	entries, total, err := f.svc.History(context.Background(), c.ID, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 {
		t.Fatalf("expected 3 entries (created, submitted, rejected), got %d", total)
	}
	// Newest first.
	if entries[0].Kind != audit.KindRejectionRegistered {
		t.Errorf("expected newest entry first, got %q", entries[0].Kind)
	}
	if entries[len(entries)-1].Kind != audit.KindCreated {
		t.Errorf("expected created entry last, got %q", entries[len(entries)-1].Kind)
	}
}

func TestHistory_UnknownClaim(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.History(context.Background(), uuid.New(), 20, 0)
	if !IsKind(err, KindNotFound) {
		t.Errorf("expected not_found, got %v", err)
	}
}
