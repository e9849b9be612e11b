// Package session owns the client-side session state machine. The
// Orchestrator is the only writer of SessionState: it sequences remote
// calls, applies cart reducer results, triggers best-effort persistence,
// and exposes value snapshots to the presentation layer.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	cartx "github.com/partassist/client-go/client/cart"
	gatewayx "github.com/partassist/client-go/client/gateway"
	statex "github.com/partassist/client-go/client/state"
)

var (
	// ErrBusy reports that an operation of the same kind is already in
	// flight; the call was rejected before any side effect.
	ErrBusy = errors.New("operation already in flight")
	// ErrEmptyMessage reports a blank or whitespace-only submission.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrEmptyCart reports a checkout attempt on an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)

// fallbackReply replaces the assistant turn when the remote call fails for
// any reason; no error class leaks past the orchestrator on the chat path.
const fallbackReply = "I'm having trouble reaching the assistant right now. Please check your connection and try again."

// Gateway is the remote I/O surface the orchestrator depends on. It makes
// no retries; a single failed attempt is surfaced immediately.
type Gateway interface {
	SendChatTurn(ctx context.Context, message string, history []statex.Message) (gatewayx.ChatReply, error)
	AddCartItem(ctx context.Context, partNumber string, qty int) error
	ClearCart(ctx context.Context) error
}

var _ Gateway = (*gatewayx.Client)(nil)

type Config struct {
	// SessionID defaults to a fresh uuid.
	SessionID string
	// OrderCompleteDelay is how long the order-complete flag stays up
	// before auto-dismissing. Defaults to 5s.
	OrderCompleteDelay time.Duration
}

// Orchestrator reconciles chat replies, remote-confirmed cart mutations,
// and local persistence into one consistent session state. Methods are
// safe for concurrent use: a mutex serializes every state transition, and
// remote calls happen outside the lock so operations of other kinds stay
// schedulable while one is pending.
//
// Two mutation classes exist on purpose and must not be unified: AddToCart
// is remote-confirmed (gateway first, local apply only on success), while
// UpdateQuantity and RemoveLine are optimistic local edits with no remote
// confirmation path.
type Orchestrator struct {
	gateway Gateway
	store   statex.CartStore

	mu   sync.Mutex
	sess *statex.SessionState

	// orderGen guards against a stale auto-dismiss callback that fired
	// before its timer was stopped and is waiting on the lock. Each new
	// timer captures the current generation; retiring the timer bumps it.
	orderTimer *time.Timer
	orderGen   uint64

	delay time.Duration
	now   func() time.Time
}

func New(gw Gateway, store statex.CartStore, cfg Config) (*Orchestrator, error) {
	if gw == nil {
		return nil, errors.New("gateway is required")
	}
	if store == nil {
		store = noopCartStore{}
	}

	sessionID := strings.TrimSpace(cfg.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	delay := cfg.OrderCompleteDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}

	o := &Orchestrator{
		gateway: gw,
		store:   store,
		delay:   delay,
		now:     time.Now,
	}
	o.sess = statex.NewSessionState(sessionID, o.now())
	return o, nil
}

func (o *Orchestrator) SessionID() string {
	return o.sess.SessionID
}

// Start restores the persisted cart. Called once per session; an absent or
// undecodable snapshot means starting with an empty cart, never a failure.
func (o *Orchestrator) Start(ctx context.Context) {
	cart, err := o.store.Load(ctx, o.sess.SessionID)
	if err != nil {
		if !errors.Is(err, statex.ErrCartNotFound) {
			log.Warn().Err(err).Str("session_id", o.sess.SessionID).Msg("cart restore failed, starting empty")
		}
		return
	}

	o.mu.Lock()
	o.sess.Cart = cart
	if verr := o.sess.Validate(); verr != nil {
		o.sess.Cart = statex.CartSnapshot{}
		o.mu.Unlock()
		log.Warn().Err(verr).Str("session_id", o.sess.SessionID).Msg("restored cart invalid, starting empty")
		return
	}
	o.sess.Touch(o.now())
	o.mu.Unlock()
	log.Debug().Str("session_id", o.sess.SessionID).Int("lines", len(cart.Lines)).Msg("cart restored")
}

/* ------------------------------- chat turn ------------------------------ */

// SubmitMessage appends the user turn, sends it with the prior history,
// and appends the assistant's reply. Remote failures of any kind become a
// synthetic connectivity message instead of an error. A blank message or a
// chat turn already in flight is rejected with no side effects.
func (o *Orchestrator) SubmitMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	o.mu.Lock()
	if o.sess.ChatPending {
		o.mu.Unlock()
		return ErrBusy
	}
	o.sess.ChatPending = true
	history := o.sess.CloneMessages()
	o.sess.AppendMessage(statex.NewUserMessage(text, o.now()))
	o.sess.Touch(o.now())
	o.mu.Unlock()

	defer o.release(&o.sess.ChatPending)

	reply, err := o.gateway.SendChatTurn(ctx, text, history)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("session_id", o.sess.SessionID).Msg("chat turn failed")
		o.sess.AppendMessage(statex.NewAssistantMessage(fallbackReply, nil, o.now()))
		o.sess.Touch(o.now())
		return nil
	}

	o.sess.AppendMessage(statex.NewAssistantMessage(reply.Content, reply.Products, o.now()))
	o.sess.Touch(o.now())
	return nil
}

/* ----------------------- remote-confirmed mutation ---------------------- */

// AddToCart confirms the add with the remote cart service before touching
// local state, so the two stores never diverge by a local add the backend
// never saw. On remote failure the local and persisted carts are left
// untouched and the error is returned for the presentation to surface.
// Quantities below one add a single unit.
func (o *Orchestrator) AddToCart(ctx context.Context, p statex.Product, qty int) error {
	if strings.TrimSpace(p.PartNumber) == "" {
		return cartx.ErrNoPart
	}
	if qty <= 0 {
		qty = 1
	}

	o.mu.Lock()
	if o.sess.CartPending {
		o.mu.Unlock()
		return ErrBusy
	}
	o.sess.CartPending = true
	o.mu.Unlock()

	defer o.release(&o.sess.CartPending)

	if err := o.gateway.AddCartItem(ctx, p.PartNumber, qty); err != nil {
		log.Warn().Err(err).Str("part_number", p.PartNumber).Msg("remote add not confirmed")
		return fmt.Errorf("add to cart not confirmed: %w", err)
	}

	o.mu.Lock()
	next, err := cartx.Apply(o.sess.Cart, cartx.AddItem{Product: p, Qty: qty}, o.now())
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.sess.Cart = next
	o.sess.Touch(o.now())
	snapshot := next.Clone()
	o.mu.Unlock()

	o.persist(ctx, snapshot)
	return nil
}

/* ------------------------- optimistic mutations ------------------------- */

// UpdateQuantity replaces one line's quantity locally and persists the
// result. A quantity of zero or below removes the line. No remote
// confirmation exists for this edit class.
func (o *Orchestrator) UpdateQuantity(ctx context.Context, lineIndex, qty int) error {
	return o.applyLocal(ctx, cartx.SetQuantity{Index: lineIndex, Qty: qty})
}

// RemoveLine drops one line locally and persists the result.
func (o *Orchestrator) RemoveLine(ctx context.Context, lineIndex int) error {
	return o.applyLocal(ctx, cartx.RemoveLine{Index: lineIndex})
}

func (o *Orchestrator) applyLocal(ctx context.Context, ev cartx.Event) error {
	o.mu.Lock()
	next, err := cartx.Apply(o.sess.Cart, ev, o.now())
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.sess.Cart = next
	o.sess.Touch(o.now())
	snapshot := next.Clone()
	o.mu.Unlock()

	o.persist(ctx, snapshot)
	return nil
}

/* -------------------------------- checkout ------------------------------ */

// Checkout performs the remote completion and, only after confirmation,
// clears the cart, persists the empty snapshot, records the order id, and
// raises the order-complete flag. The flag auto-dismisses after the
// configured delay unless DismissOrderComplete runs first. An empty cart
// or a checkout already in flight is rejected with no side effects.
func (o *Orchestrator) Checkout(ctx context.Context) error {
	o.mu.Lock()
	if o.sess.CheckoutPending {
		o.mu.Unlock()
		return ErrBusy
	}
	if o.sess.Cart.Empty() {
		o.mu.Unlock()
		return ErrEmptyCart
	}
	o.sess.CheckoutPending = true
	o.mu.Unlock()

	defer o.release(&o.sess.CheckoutPending)

	orderID := uuid.NewString()
	if err := o.gateway.ClearCart(ctx); err != nil {
		log.Warn().Err(err).Str("session_id", o.sess.SessionID).Msg("checkout not confirmed")
		return fmt.Errorf("checkout not confirmed: %w", err)
	}

	o.mu.Lock()
	next, err := cartx.Apply(o.sess.Cart, cartx.ClearAll{}, o.now())
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.sess.Cart = next
	o.sess.LastOrderID = orderID
	o.sess.OrderComplete = true
	o.sess.Touch(o.now())
	o.retireOrderTimer()
	gen := o.orderGen
	o.orderTimer = time.AfterFunc(o.delay, func() { o.autoDismiss(gen) })
	o.mu.Unlock()

	o.persist(ctx, statex.CartSnapshot{})
	log.Info().Str("order_id", orderID).Msg("checkout complete")
	return nil
}

// DismissOrderComplete lowers the order-complete flag. Dismissing twice,
// or after the auto-dismiss timer already fired, is a no-op.
func (o *Orchestrator) DismissOrderComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.retireOrderTimer()
	o.sess.OrderComplete = false
}

// retireOrderTimer cancels any scheduled auto-dismiss and invalidates a
// callback that already fired and is parked on the lock. Caller holds mu.
func (o *Orchestrator) retireOrderTimer() {
	o.orderGen++
	if o.orderTimer != nil {
		o.orderTimer.Stop()
		o.orderTimer = nil
	}
}

func (o *Orchestrator) autoDismiss(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.orderGen {
		return
	}
	o.orderTimer = nil
	o.sess.OrderComplete = false
}

/* ----------------------------- presentation ----------------------------- */

// Snapshot is the read surface handed to the presentation layer: value
// copies only, with totals derived on read.
type Snapshot struct {
	SessionID       string
	Messages        []statex.Message
	Cart            statex.CartSnapshot
	Totals          cartx.Totals
	ChatPending     bool
	CartPending     bool
	CheckoutPending bool
	LastOrderID     string
	OrderComplete   bool
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	cart := o.sess.Cart.Clone()
	return Snapshot{
		SessionID:       o.sess.SessionID,
		Messages:        o.sess.CloneMessages(),
		Cart:            cart,
		Totals:          cartx.Compute(cart),
		ChatPending:     o.sess.ChatPending,
		CartPending:     o.sess.CartPending,
		CheckoutPending: o.sess.CheckoutPending,
		LastOrderID:     o.sess.LastOrderID,
		OrderComplete:   o.sess.OrderComplete,
	}
}

/* ------------------------------- internals ------------------------------ */

// release clears one latch under the lock. Deferred at operation entry so
// the latch drops on every exit path.
func (o *Orchestrator) release(latch *bool) {
	o.mu.Lock()
	*latch = false
	o.mu.Unlock()
}

// persist writes the committed snapshot. Best-effort: failures are logged
// and swallowed so persistence never blocks or fails the mutation it
// followed.
func (o *Orchestrator) persist(ctx context.Context, cart statex.CartSnapshot) {
	if err := o.store.Save(ctx, o.sess.SessionID, cart); err != nil {
		log.Warn().Err(err).Str("session_id", o.sess.SessionID).Msg("cart persist failed")
	}
}

type noopCartStore struct{}

func (noopCartStore) Load(context.Context, string) (statex.CartSnapshot, error) {
	return statex.CartSnapshot{}, statex.ErrCartNotFound
}

func (noopCartStore) Save(context.Context, string, statex.CartSnapshot) error {
	return nil
}

func (noopCartStore) Delete(context.Context, string) error {
	return nil
}
