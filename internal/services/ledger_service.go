package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"qarzhy/internal/amqp"
	"qarzhy/internal/config"
	"qarzhy/internal/core"
	"qarzhy/internal/ledger"
	"qarzhy/internal/log"
	"qarzhy/internal/metrics"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence port of the ledger. Implementations must make the
// debt-and-mirror operations atomic.
type Store interface {
	ListTransactions(ctx context.Context) ([]core.Transaction, error)
	ListDebts(ctx context.Context) ([]core.Debt, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	GetDebt(ctx context.Context, id string) (core.Debt, error)
	AppendTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	AppendDebtAndMirror(ctx context.Context, d core.Debt, mirror core.Transaction) (core.Transaction, error)
	CloseDebtAndMirror(ctx context.Context, debtID string, closedAt time.Time, mirror core.Transaction) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher announces committed ledger changes.
type EventPublisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
	Close() error
}

// EntryInput is an expense or income as entered by the user.
type EntryInput struct {
	Date        core.Date       `json:"date"`
	Category    string          `json:"category"`
	Account     string          `json:"account"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

type TransferInput struct {
	Date        core.Date       `json:"date"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`
}

type DebtInput struct {
	Date      core.Date       `json:"date"`
	Name      string          `json:"name"`
	Direction core.Direction  `json:"direction"`
	Account   string          `json:"account"`
	Amount    decimal.Decimal `json:"amount"`
}

type DebtResult struct {
	Debt   core.Debt        `json:"debt"`
	Mirror core.Transaction `json:"mirror"`
}

// CloseResult reports a debt closure. Closed is false when the debt was
// missing or already closed; nothing was written in that case.
type CloseResult struct {
	Closed bool              `json:"closed"`
	Debt   *core.Debt        `json:"debt,omitempty"`
	Mirror *core.Transaction `json:"mirror,omitempty"`
}

// DeleteResult reports a delete. Deleted is false when the id was absent.
type DeleteResult struct {
	Deleted     bool              `json:"deleted"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
}

type Overview struct {
	Segment    core.Segment            `json:"segment"`
	Balances   []ledger.AccountBalance `json:"balances"`
	Total      decimal.Decimal         `json:"total"`
	Categories []ledger.CategoryShare  `json:"categories"`
	Debts      ledger.Position         `json:"debts"`
	History    []core.Transaction      `json:"history"`
	Latest     *core.Transaction       `json:"latest,omitempty"`
}

type Dashboard struct {
	Segments  []Overview  `json:"segments"`
	OpenDebts []core.Debt `json:"open_debts"`
}

// LedgerService validates user actions against the chart, expands them into
// ledger rows, persists them and publishes an event once committed.
type LedgerService struct {
	store     Store
	publisher EventPublisher
	chart     config.Chart
	now       func() time.Time
}

func NewLedgerService(store Store, publisher EventPublisher, chart config.Chart) *LedgerService {
	return &LedgerService{
		store:     store,
		publisher: publisher,
		chart:     chart,
		now:       time.Now,
	}
}

func (s *LedgerService) Chart() config.Chart { return s.chart }

// Ready reports whether the store answers.
func (s *LedgerService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *LedgerService) AddExpense(ctx context.Context, segment core.Segment, in EntryInput) (core.Transaction, error) {
	tx, err := s.addEntry(ctx, core.KindExpense, segment, in)
	record(log.OpAddExpense, err)
	return tx, err
}

func (s *LedgerService) AddIncome(ctx context.Context, segment core.Segment, in EntryInput) (core.Transaction, error) {
	tx, err := s.addEntry(ctx, core.KindIncome, segment, in)
	record(log.OpAddIncome, err)
	return tx, err
}

func (s *LedgerService) addEntry(ctx context.Context, kind core.Kind, segment core.Segment, in EntryInput) (core.Transaction, error) {
	if err := s.checkSegment(segment); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkAccount(in.Account); err != nil {
		return core.Transaction{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		return core.Transaction{}, core.ErrEmptyCategory
	}
	if isReservedCategory(category) {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrReservedCategory, category)
	}

	tx := core.Transaction{
		Date:        s.dateOrToday(in.Date),
		Kind:        kind,
		Category:    category,
		Account:     in.Account,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Segment:     segment,
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.AppendTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save %s: %w", kind, err)
	}

	s.logWrite(ctx, "Ledger entry recorded", saved)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionAppended, saved.ID, "", string(segment)))
	return saved, nil
}

func (s *LedgerService) AddTransfer(ctx context.Context, segment core.Segment, in TransferInput) (core.Transaction, error) {
	tx, err := s.addTransfer(ctx, segment, in)
	record(log.OpAddTransfer, err)
	return tx, err
}

func (s *LedgerService) addTransfer(ctx context.Context, segment core.Segment, in TransferInput) (core.Transaction, error) {
	if err := s.checkSegment(segment); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkAccount(in.Source); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkAccount(in.Destination); err != nil {
		return core.Transaction{}, err
	}

	tx, err := ledger.BuildTransfer(ledger.TransferDraft{
		Date:        s.dateOrToday(in.Date),
		Source:      in.Source,
		Destination: in.Destination,
		Amount:      in.Amount,
		Segment:     segment,
	})
	if err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.AppendTransaction(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transfer: %w", err)
	}

	s.logWrite(ctx, "Transfer recorded", saved)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionAppended, saved.ID, "", string(segment)))
	return saved, nil
}

func (s *LedgerService) OpenDebt(ctx context.Context, segment core.Segment, in DebtInput) (DebtResult, error) {
	res, err := s.openDebt(ctx, segment, in)
	record(log.OpOpenDebt, err)
	return res, err
}

func (s *LedgerService) openDebt(ctx context.Context, segment core.Segment, in DebtInput) (DebtResult, error) {
	if err := s.checkSegment(segment); err != nil {
		return DebtResult{}, err
	}
	if err := s.checkAccount(in.Account); err != nil {
		return DebtResult{}, err
	}

	debt, mirror, err := ledger.BuildDebtCreation(ledger.DebtDraft{
		Date:      s.dateOrToday(in.Date),
		Name:      in.Name,
		Direction: in.Direction,
		Account:   in.Account,
		Amount:    in.Amount,
		Segment:   segment,
	})
	if err != nil {
		return DebtResult{}, err
	}
	if err := mirror.Validate(); err != nil {
		return DebtResult{}, err
	}

	saved, err := s.store.AppendDebtAndMirror(ctx, debt, mirror)
	if err != nil {
		return DebtResult{}, fmt.Errorf("save debt: %w", err)
	}

	log.FromContext(ctx).WithComponent(log.ComponentLedger).InfoContext(ctx, "Debt opened",
		log.NewFields().
			WithDebtID(debt.ID).
			WithTransactionID(saved.ID).
			WithEntry(string(segment), string(debt.Direction), debt.Account, debt.Amount).
			ToSlice()...)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.DebtOpened, saved.ID, debt.ID, string(segment)))
	return DebtResult{Debt: debt, Mirror: saved}, nil
}

func (s *LedgerService) CloseDebt(ctx context.Context, debtID string) (CloseResult, error) {
	res, err := s.closeDebt(ctx, debtID)
	if err == nil && !res.Closed {
		metrics.LedgerWrites.WithLabelValues(log.OpCloseDebt, metrics.OutcomeNoop).Inc()
	} else {
		record(log.OpCloseDebt, err)
	}
	return res, err
}

func (s *LedgerService) closeDebt(ctx context.Context, debtID string) (CloseResult, error) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentLedger)

	debt, err := s.store.GetDebt(ctx, debtID)
	if errors.Is(err, core.ErrNotFound) {
		logger.InfoContext(ctx, "Close requested for unknown debt", log.FieldDebtID, debtID)
		return CloseResult{}, nil
	}
	if err != nil {
		return CloseResult{}, fmt.Errorf("load debt: %w", err)
	}
	if !debt.IsOpen() {
		logger.InfoContext(ctx, "Debt already closed", log.FieldDebtID, debtID)
		return CloseResult{Debt: &debt}, nil
	}

	closedAt := s.now()
	mirror, err := ledger.BuildDebtClosure(debt, closedAt)
	if err != nil {
		return CloseResult{}, err
	}

	saved, err := s.store.CloseDebtAndMirror(ctx, debtID, closedAt, mirror)
	if errors.Is(err, core.ErrNotFound) {
		// closed concurrently between the read and the write
		return CloseResult{Debt: &debt}, nil
	}
	if err != nil {
		return CloseResult{}, fmt.Errorf("close debt: %w", err)
	}

	debt.Status = core.StatusClosed
	debt.ClosedAt = closedAt
	logger.InfoContext(ctx, "Debt closed",
		log.NewFields().WithDebtID(debtID).WithTransactionID(saved.ID).ToSlice()...)
	s.publish(ctx, amqp.NewLedgerEvent(amqp.DebtClosed, saved.ID, debtID, string(debt.Segment)))
	return CloseResult{Closed: true, Debt: &debt, Mirror: &saved}, nil
}

// DeleteTransaction removes one row. Deleting an id that is not in the log
// is a no-op.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id int64) (DeleteResult, error) {
	res, err := s.deleteTransaction(ctx, id)
	if err == nil && !res.Deleted {
		metrics.LedgerWrites.WithLabelValues(log.OpDelete, metrics.OutcomeNoop).Inc()
	} else {
		record(log.OpDelete, err)
	}
	return res, err
}

func (s *LedgerService) deleteTransaction(ctx context.Context, id int64) (DeleteResult, error) {
	tx, err := s.store.GetTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return DeleteResult{}, nil
	}
	if err != nil {
		return DeleteResult{}, fmt.Errorf("load transaction: %w", err)
	}

	err = s.store.DeleteTransaction(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return DeleteResult{}, nil
	}
	if err != nil {
		return DeleteResult{}, fmt.Errorf("delete transaction: %w", err)
	}

	if tx.IsMirror() {
		log.FromContext(ctx).WithComponent(log.ComponentLedger).WarnContext(ctx,
			"Deleted a debt mirror row; account balances no longer match the debt log",
			log.FieldTransactionID, id, log.FieldDebtID, tx.DebtID)
	}
	s.publish(ctx, amqp.NewLedgerEvent(amqp.TransactionDeleted, id, tx.DebtID, string(tx.Segment)))
	return DeleteResult{Deleted: true, Transaction: &tx}, nil
}

// Overview computes the full view of one segment from a fresh read of both logs.
func (s *LedgerService) Overview(ctx context.Context, segment core.Segment) (Overview, error) {
	defer metrics.ObserveView("overview", time.Now())
	if err := s.checkSegment(segment); err != nil {
		return Overview{}, err
	}
	txs, debts, err := s.load(ctx)
	if err != nil {
		return Overview{}, err
	}
	return s.overview(txs, debts, segment), nil
}

// Dashboard computes every segment's overview plus all open debts.
func (s *LedgerService) Dashboard(ctx context.Context) (Dashboard, error) {
	defer metrics.ObserveView("dashboard", time.Now())
	txs, debts, err := s.load(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	d := Dashboard{OpenDebts: ledger.OpenDebts(debts)}
	for _, seg := range s.chart.SegmentList() {
		d.Segments = append(d.Segments, s.overview(txs, debts, seg))
	}
	return d, nil
}

func (s *LedgerService) load(ctx context.Context) ([]core.Transaction, []core.Debt, error) {
	var (
		txs   []core.Transaction
		debts []core.Debt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx)
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		debts, err = s.store.ListDebts(gctx)
		if err != nil {
			return fmt.Errorf("list debts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return txs, debts, nil
}

func (s *LedgerService) overview(txs []core.Transaction, debts []core.Debt, segment core.Segment) Overview {
	balances := ledger.Balances(txs, s.chart.Accounts, segment)
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.Balance)
	}
	o := Overview{
		Segment:    segment,
		Balances:   balances,
		Total:      total,
		Categories: ledger.CategoryShares(ledger.CategoryBreakdown(txs, segment)),
		Debts:      ledger.DebtPosition(debts, segment),
		History:    ledger.History(txs, segment),
	}
	if latest, ok := ledger.Latest(txs, segment); ok {
		o.Latest = &latest
	}
	return o
}

func (s *LedgerService) checkSegment(segment core.Segment) error {
	if strings.TrimSpace(string(segment)) == "" {
		return core.ErrEmptySegment
	}
	if !s.chart.HasSegment(segment) {
		return fmt.Errorf("%w: %q", core.ErrUnknownSegment, segment)
	}
	return nil
}

func (s *LedgerService) checkAccount(account string) error {
	if strings.TrimSpace(account) == "" {
		return core.ErrEmptyAccount
	}
	if !s.chart.HasAccount(account) {
		return fmt.Errorf("%w: %q", core.ErrUnknownAccount, account)
	}
	return nil
}

func (s *LedgerService) dateOrToday(d core.Date) core.Date {
	if d.IsZero() {
		return core.DateOf(s.now())
	}
	return d
}

func (s *LedgerService) logWrite(ctx context.Context, msg string, tx core.Transaction) {
	account := tx.Account
	if tx.Kind == core.KindTransfer {
		account = tx.SourceAccount + " -> " + tx.DestAccount
	}
	log.FromContext(ctx).WithComponent(log.ComponentLedger).InfoContext(ctx, msg,
		log.NewFields().
			WithTransactionID(tx.ID).
			WithEntry(string(tx.Segment), string(tx.Kind), account, tx.Amount).
			ToSlice()...)
}

// publish is best effort: the row is already committed.
func (s *LedgerService) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	logger := log.FromContext(ctx).WithComponent(log.ComponentAMQP)
	if s.publisher == nil {
		logger.DebugContext(ctx, "AMQP client not available, skipping ledger event", log.FieldEventType, ev.Type)
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(string(ev.Type), metrics.OutcomeError).Inc()
		logger.ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldEventType, ev.Type, log.FieldError, err)
		return
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type), metrics.OutcomeOK).Inc()
}

// Close closes both the store and the publisher
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %w", errors.Join(errs...))
	}
	return nil
}

func record(op string, err error) {
	outcome := metrics.OutcomeOK
	switch {
	case err == nil:
	case core.IsValidation(err):
		outcome = metrics.OutcomeRejected
	case errors.Is(err, core.ErrNotFound):
		outcome = metrics.OutcomeNoop
	default:
		outcome = metrics.OutcomeError
	}
	metrics.LedgerWrites.WithLabelValues(op, outcome).Inc()
}

func isReservedCategory(c string) bool {
	return c == core.CategoryTransfer || c == core.CategoryDebt || c == core.CategoryDebtRepayment
}
