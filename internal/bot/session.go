package bot

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"ordersbot/internal/orders"
	"ordersbot/internal/renewal"
	"ordersbot/pkg/models"
)

// Step is a position in the order entry flow.
type Step int

const (
	StepIdle Step = iota
	StepClass
	StepProduct
	StepSource
	StepDate
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepIdle:
		return "idle"
	case StepClass:
		return "class"
	case StepProduct:
		return "product"
	case StepSource:
		return "source"
	case StepDate:
		return "date"
	case StepConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// ErrIncompleteDraft is returned when a step is left before its field is filled.
var ErrIncompleteDraft = errors.New("draft is incomplete")

// Session is one chat's progress through the order entry flow.
type Session struct {
	Step  Step
	Draft orders.Draft
}

// next lists each step's successor and the check its draft must pass to reach it.
var next = map[Step]struct {
	to    Step
	ready func(d orders.Draft) error
}{
	StepIdle: {StepClass, func(orders.Draft) error { return nil }},
	StepClass: {StepProduct, func(d orders.Draft) error {
		if d.Class != models.ClassRetail && d.Class != models.ClassPartner {
			return fmt.Errorf("%w: customer class not chosen", ErrIncompleteDraft)
		}
		return nil
	}},
	StepProduct: {StepSource, func(d orders.Draft) error {
		if _, err := renewal.ParseTermDays(d.ProductCode); err != nil {
			return fmt.Errorf("%w: product code %q has no duration", ErrIncompleteDraft, d.ProductCode)
		}
		return nil
	}},
	StepSource: {StepDate, func(d orders.Draft) error {
		if d.Source == "" {
			return fmt.Errorf("%w: source not chosen", ErrIncompleteDraft)
		}
		return nil
	}},
	StepDate: {StepConfirm, func(d orders.Draft) error {
		if d.Registered.IsZero() {
			return fmt.Errorf("%w: registration date missing", ErrIncompleteDraft)
		}
		return nil
	}},
}

// Advance moves the session to the following step. The session is unchanged when the draft
// lacks what the current step collects.
func (s *Session) Advance() error {
	t, ok := next[s.Step]
	if !ok {
		return fmt.Errorf("no step after %s", s.Step)
	}
	if err := t.ready(s.Draft); err != nil {
		return err
	}
	s.Step = t.to
	return nil
}

// SetClass fills the class step.
func (s *Session) SetClass(c models.CustomerClass) error {
	if s.Step != StepClass {
		return fmt.Errorf("class is not expected at step %s", s.Step)
	}
	s.Draft.Class = c
	return s.Advance()
}

// SetProduct fills the product step with a product code and an optional customer name.
func (s *Session) SetProduct(code, customer string) error {
	if s.Step != StepProduct {
		return fmt.Errorf("product is not expected at step %s", s.Step)
	}
	s.Draft.ProductCode = code
	s.Draft.Customer = customer
	if err := s.Advance(); err != nil {
		s.Draft.ProductCode = ""
		return err
	}
	return nil
}

// SetSource fills the source step with an already resolved supplier name.
func (s *Session) SetSource(name string) error {
	if s.Step != StepSource {
		return fmt.Errorf("source is not expected at step %s", s.Step)
	}
	s.Draft.Source = name
	return s.Advance()
}

// SetDate fills the date step.
func (s *Session) SetDate(day time.Time) error {
	if s.Step != StepDate {
		return fmt.Errorf("date is not expected at step %s", s.Step)
	}
	s.Draft.Registered = day
	return s.Advance()
}

// sessions holds the flows in progress, keyed by chat.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*Session
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]*Session)}
}

// get returns a copy of the chat's session.
func (s *sessions) get(chatID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[chatID]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

func (s *sessions) put(chatID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[chatID] = &sess
}

func (s *sessions) drop(chatID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.m[chatID]
	delete(s.m, chatID)
	return ok
}
