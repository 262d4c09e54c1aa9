package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendReminder(ctx context.Context, batch *EmailBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *mockNotifier) SendSeparationNotice(ctx context.Context, notice *SeparationNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

type ServiceTestSuite struct {
	suite.Suite
	source   *staticSource
	ledger   *memoryLedger
	notifier *mockNotifier
	clock    *fixedClock
	service  *ReminderService
	today    time.Time
}

func (s *ServiceTestSuite) SetupTest() {
	s.today = date(2025, 3, 1)
	s.source = &staticSource{}
	s.ledger = newMemoryLedger()
	s.notifier = new(mockNotifier)
	s.clock = &fixedClock{now: s.today.Add(9 * time.Hour)}

	logger := zap.NewNop()
	guard := NewDuplicateGuard(s.ledger, s.clock, time.UTC, logger)
	s.service = NewReminderService(s.source, guard, s.notifier, testRoutes, nil, s.clock, logger, ServiceOptions{
		Window:                 DefaultWindow,
		Location:               time.UTC,
		VendorEmail:            "vendor@example.com",
		HREmail:                "hr@example.com",
		SeparationLookbackDays: 7,
	})
}

func (s *ServiceTestSuite) probationRecord(name, leader string, days int) EmployeeRecord {
	return EmployeeRecord{
		Name:             name,
		LeaderEmail:      leader,
		Department:       "EA",
		Status:           StatusProbation,
		ProbationEndDate: datePtr(s.today.AddDate(0, 0, days)),
	}
}

func (s *ServiceTestSuite) TestRunReminders_SendsAndRecords() {
	s.source.records = []EmployeeRecord{
		s.probationRecord("Jane", "a@x.com", 20),
		s.probationRecord("John", "a@x.com", 22),
		s.probationRecord("Late", "a@x.com", 30),
	}
	s.notifier.On("SendReminder", mock.Anything, mock.MatchedBy(func(b *EmailBatch) bool {
		return len(b.Entries) == 2 && b.To[0] == "a@x.com"
	})).Return(nil).Once()

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().NoError(err)
	s.Equal(1, summary.Sent)
	s.Equal(0, summary.Failed)
	s.Equal("2025-03-01", summary.Date)
	s.Equal(BackendFile, summary.Backend)
	s.NotEmpty(summary.RunID)
	s.Equal(2, s.ledger.count())
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestRunReminders_SecondRunSkipsBatch() {
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20)}
	s.notifier.On("SendReminder", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := s.service.RunReminders(context.Background(), false)
	s.Require().NoError(err)

	summary, err := s.service.RunReminders(context.Background(), false)
	s.Require().NoError(err)
	s.Equal(0, summary.Sent)
	s.Equal(1, summary.SkippedDuplicate)
	s.notifier.AssertNumberOfCalls(s.T(), "SendReminder", 1)
}

func (s *ServiceTestSuite) TestRunReminders_PreexistingRecordExcludesBatch() {
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20)}
	s.ledger.records[NewSendKey("Jane", "a@x.com", EvaluationProbation, s.today)] = SentEmailRecord{
		EmployeeName:   "Jane",
		LeaderEmail:    "a@x.com",
		EvaluationType: EvaluationProbation,
		SentDate:       s.today,
	}

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().NoError(err)
	s.Equal(1, summary.SkippedDuplicate)
	s.Equal(0, summary.Sent)
	s.notifier.AssertNotCalled(s.T(), "SendReminder", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestRunReminders_PartiallySentBatchOnlyCarriesPending() {
	s.source.records = []EmployeeRecord{
		s.probationRecord("Jane", "a@x.com", 20),
		s.probationRecord("John", "a@x.com", 21),
	}
	s.ledger.records[NewSendKey("Jane", "a@x.com", EvaluationProbation, s.today)] = SentEmailRecord{
		EmployeeName:   "Jane",
		LeaderEmail:    "a@x.com",
		EvaluationType: EvaluationProbation,
		SentDate:       s.today,
	}
	s.notifier.On("SendReminder", mock.Anything, mock.MatchedBy(func(b *EmailBatch) bool {
		return len(b.Entries) == 1 && b.Entries[0].Employee.Name == "John"
	})).Return(nil).Once()

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().NoError(err)
	s.Equal(1, summary.Sent)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestRunReminders_DispatchFailureIsNotRecorded() {
	s.source.records = []EmployeeRecord{
		s.probationRecord("Jane", "a@x.com", 20),
		s.probationRecord("Bob", "b@x.com", 20),
	}
	s.notifier.On("SendReminder", mock.Anything, mock.MatchedBy(func(b *EmailBatch) bool {
		return b.LeaderEmail == "a@x.com"
	})).Return(ErrDispatch).Once()
	s.notifier.On("SendReminder", mock.Anything, mock.MatchedBy(func(b *EmailBatch) bool {
		return b.LeaderEmail == "b@x.com"
	})).Return(nil).Once()

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().NoError(err)
	s.Equal(1, summary.Sent)
	s.Equal(1, summary.Failed)
	s.Equal(1, s.ledger.count())
}

func (s *ServiceTestSuite) TestRunReminders_DryRunDoesNotSendOrRecord() {
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20)}

	summary, err := s.service.RunReminders(context.Background(), true)

	s.Require().NoError(err)
	s.Equal(1, summary.Sent)
	s.True(summary.DryRun)
	s.Equal(0, s.ledger.count())
	s.notifier.AssertNotCalled(s.T(), "SendReminder", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestRunReminders_PersistenceFailureStopsRun() {
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20)}
	s.ledger.insertErr = errBoom
	s.notifier.On("SendReminder", mock.Anything, mock.Anything).Return(nil).Once()

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().Error(err)
	s.ErrorIs(err, ErrPersistenceUnavailable)
	s.Require().NotNil(summary)
	s.Equal(1, summary.Sent)
}

func (s *ServiceTestSuite) TestRunReminders_UnavailableLedgerIsReturned() {
	s.source.records = []EmployeeRecord{
		s.probationRecord("Jane", "a@x.com", 20),
		s.probationRecord("Bob", "b@x.com", 20),
	}
	s.ledger.existsErr = fmt.Errorf("%w: no backend", ErrPersistenceUnavailable)

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().Error(err)
	s.ErrorIs(err, ErrPersistenceUnavailable)
	s.Require().NotNil(summary)
	s.Equal(0, summary.Sent)
	s.Equal(1, summary.Failed)
	s.notifier.AssertNotCalled(s.T(), "SendReminder", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestRunReminders_LedgerReadErrorFailsBatchOnly() {
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20)}
	s.ledger.existsErr = errBoom

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().NoError(err)
	s.Equal(1, summary.Failed)
	s.notifier.AssertNotCalled(s.T(), "SendReminder", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestRunReminders_SourceFailure() {
	s.source.err = ErrSourceFetch

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Nil(summary)
	s.ErrorIs(err, ErrSourceFetch)
}

func (s *ServiceTestSuite) TestRunReminders_CountsDroppedRecords() {
	orphan := s.probationRecord("Orphan", "", 20)
	broken := EmployeeRecord{
		Name:        "Broken",
		LeaderEmail: "a@x.com",
		Status:      StatusActive,
		Issues:      []FieldIssue{{Field: FieldProbationEndDate, Raw: "n/a"}},
	}
	gone := s.probationRecord("Gone", "a@x.com", 20)
	gone.Status = StatusSeparated
	s.source.records = []EmployeeRecord{orphan, broken, gone}

	summary, err := s.service.RunReminders(context.Background(), false)

	s.Require().NoError(err)
	s.Equal(2, summary.Dropped)
	s.Equal(1, summary.SkipReasons[string(SkipMissingLeaderEmail)])
	s.Equal(1, summary.SkipReasons[string(SkipMalformedDate)])
	s.Equal(1, summary.SkipReasons[string(SkipInactiveStatus)])
}

func (s *ServiceTestSuite) TestNotifySeparations_SendsOnceForRange() {
	s.source.records = []EmployeeRecord{
		{Name: "Left", Status: StatusSeparated, SeparationDate: datePtr(s.today.AddDate(0, 0, -2))},
		{Name: "Old", Status: StatusTerminated, SeparationDate: datePtr(s.today.AddDate(0, 0, -30))},
		{Name: "Unconfirmed", Status: StatusSeparated},
	}
	s.notifier.On("SendSeparationNotice", mock.Anything, mock.MatchedBy(func(n *SeparationNotice) bool {
		return n.To == "vendor@example.com" && len(n.Employees) == 1 && n.Employees[0].Name == "Left" &&
			len(n.CC) == 1 && n.CC[0] == "hr@example.com"
	})).Return(nil).Once()

	summary, err := s.service.NotifySeparations(context.Background(), nil, false)
	s.Require().NoError(err)
	s.Equal(1, summary.Sent)
	s.Equal(1, summary.Dropped)

	summary, err = s.service.NotifySeparations(context.Background(), nil, false)
	s.Require().NoError(err)
	s.Equal(0, summary.Sent)
	s.Equal(1, summary.SkippedDuplicate)
	s.notifier.AssertExpectations(s.T())
}

func (s *ServiceTestSuite) TestNotifySeparations_ExplicitRange() {
	s.source.records = []EmployeeRecord{
		{Name: "Old", Status: StatusTerminated, SeparationDate: datePtr(date(2025, 1, 15))},
	}
	r, err := NewDateRange(date(2025, 1, 1), date(2025, 1, 31))
	s.Require().NoError(err)
	s.notifier.On("SendSeparationNotice", mock.Anything, mock.Anything).Return(nil).Once()

	summary, err := s.service.NotifySeparations(context.Background(), &r, false)

	s.Require().NoError(err)
	s.Equal(1, summary.Sent)
}

func (s *ServiceTestSuite) TestNotifySeparations_NothingInRange() {
	s.source.records = []EmployeeRecord{{Name: "Active", Status: StatusActive}}

	summary, err := s.service.NotifySeparations(context.Background(), nil, false)

	s.Require().NoError(err)
	s.Equal(0, summary.Sent)
	s.notifier.AssertNotCalled(s.T(), "SendSeparationNotice", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestNotifySeparations_DispatchFailure() {
	s.source.records = []EmployeeRecord{
		{Name: "Left", Status: StatusSeparated, SeparationDate: datePtr(s.today)},
	}
	s.notifier.On("SendSeparationNotice", mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()

	summary, err := s.service.NotifySeparations(context.Background(), nil, false)

	s.Require().NoError(err)
	s.Equal(1, summary.Failed)
	s.Equal(0, s.ledger.count())
}

func (s *ServiceTestSuite) TestNotifySeparations_UnavailableLedgerIsReturned() {
	s.source.records = []EmployeeRecord{
		{Name: "Left", Status: StatusSeparated, SeparationDate: datePtr(s.today)},
	}
	s.ledger.existsErr = fmt.Errorf("%w: no backend", ErrPersistenceUnavailable)

	summary, err := s.service.NotifySeparations(context.Background(), nil, false)

	s.Require().Error(err)
	s.ErrorIs(err, ErrPersistenceUnavailable)
	s.Require().NotNil(summary)
	s.Equal(0, summary.Sent)
	s.Equal(1, summary.Failed)
	s.notifier.AssertNotCalled(s.T(), "SendSeparationNotice", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestNotifySeparations_NoVendorConfigured() {
	s.service.opts.VendorEmail = ""
	s.source.records = []EmployeeRecord{
		{Name: "Left", Status: StatusSeparated, SeparationDate: datePtr(s.today)},
	}

	_, err := s.service.NotifySeparations(context.Background(), nil, false)

	s.ErrorIs(err, ErrRouting)
	s.notifier.AssertNotCalled(s.T(), "SendSeparationNotice", mock.Anything, mock.Anything)
}

func (s *ServiceTestSuite) TestSentSummary() {
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20)}
	s.notifier.On("SendReminder", mock.Anything, mock.Anything).Return(nil)

	_, err := s.service.RunReminders(context.Background(), false)
	s.Require().NoError(err)

	summary, err := s.service.SentSummary(context.Background(), s.today)
	s.Require().NoError(err)
	s.Equal("2025-03-01", summary.Date)
	s.Equal(1, summary.Total)
	s.Equal("Jane", summary.Entries[0].EmployeeName)
}

func (s *ServiceTestSuite) TestPreview() {
	broken := EmployeeRecord{
		Name:   "Broken",
		Status: StatusActive,
		Issues: []FieldIssue{{Field: FieldProbationEndDate, Raw: "n/a"}},
	}
	s.source.records = []EmployeeRecord{s.probationRecord("Jane", "a@x.com", 20), broken}

	rows, err := s.service.Preview(context.Background())

	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal([]EvaluationType{EvaluationProbation}, rows[0].Eligible)
	s.Require().NotNil(rows[0].ProbationDaysUntil)
	s.Equal(20, *rows[0].ProbationDaysUntil)
	s.Empty(rows[1].Eligible)
	s.Len(rows[1].Issues, 1)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
