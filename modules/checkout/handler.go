package checkout

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/billing/pkg/logger"
	"github.com/dmitrymomot/billing/pkg/ratelimiter"
	"github.com/dmitrymomot/billing/pkg/subscription"
)

// UserResolver returns the authenticated user of a request.
// The handler never reads a user ID from the query or the checkout itself.
type UserResolver func(r *http.Request) (uuid.UUID, error)

// Handler exposes checkout completion and subscription management over HTTP.
type Handler struct {
	svc     subscription.Service
	users   UserResolver
	limiter ratelimiter.RateLimiter
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithClock sets the time used to evaluate access windows.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithRateLimiter limits checkout completions per user. Every completion
// calls the payment provider, so this is the route worth protecting.
func WithRateLimiter(l ratelimiter.RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

// NewHandler panics if svc or users is nil.
func NewHandler(svc subscription.Service, users UserResolver, opts ...Option) *Handler {
	if svc == nil {
		panic("checkout: subscription service is required")
	}
	if users == nil {
		panic("checkout: user resolver is required")
	}
	h := &Handler{
		svc:   svc,
		users: users,
		log:   slog.Default(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("checkout"))
	return h
}

// Handle returns the module router:
//
//	GET  /complete?session_id=...        reconcile a finished checkout
//	GET  /subscriptions                  all subscriptions of the user
//	GET  /entitlements                   subscriptions granting access now
//	POST /subscriptions/{id}/cancel      cancel, keeping access until the end date
func (h *Handler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requireUser)

	if h.limiter != nil {
		r.With(ratelimiter.Middleware(h.limiter, completeLimitKey,
			ratelimiter.WithDeniedResponder(h.rateLimited),
			ratelimiter.WithFailOpen(h.rateLimiterFailed),
		)).Get("/complete", h.complete)
	} else {
		r.Get("/complete", h.complete)
	}
	r.Get("/subscriptions", h.listSubscriptions)
	r.Get("/entitlements", h.entitlements)
	r.Post("/subscriptions/{id}/cancel", h.cancel)
	return r
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	userID := userFromContext(r.Context())
	res := h.svc.ReconcileCheckout(r.Context(), r.URL.Query().Get("session_id"), userID)

	resp := completeResponse{
		Outcome:   string(res.Outcome),
		Message:   res.UserMessage(),
		Retriable: res.Retriable(),
		PlanName:  res.PlanName,
	}
	if res.Subscription != nil {
		view := newSubscriptionView(res.Subscription, h.now())
		resp.Subscription = &view
	}
	writeJSON(w, statusForOutcome(res), resp)
}

func (h *Handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.svc.ListSubscriptions(r.Context(), userFromContext(r.Context()))
	if err != nil {
		h.internalError(w, r, "failed to list subscriptions", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Subscriptions: newSubscriptionViews(subs, h.now())})
}

func (h *Handler) entitlements(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	subs, err := h.svc.ActiveEntitlements(r.Context(), userFromContext(r.Context()), now)
	if err != nil {
		h.internalError(w, r, "failed to load entitlements", err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Subscriptions: newSubscriptionViews(subs, now)})
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	subID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscription id")
		return
	}

	sub, err := h.svc.CancelSubscription(r.Context(), userFromContext(r.Context()), subID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, newSubscriptionView(sub, h.now()))
	case errors.Is(err, subscription.ErrSubscriptionNotFound), errors.Is(err, subscription.ErrNotSubscriptionOwner):
		// Someone else's subscription looks the same as a missing one.
		writeError(w, http.StatusNotFound, "subscription not found")
	default:
		h.internalError(w, r, "failed to cancel subscription", err)
	}
}

func completeLimitKey(r *http.Request) string {
	return "checkout:complete:" + userFromContext(r.Context()).String()
}

func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result) {
	h.log.WarnContext(r.Context(), "checkout completion rate limited", logger.UserID(userFromContext(r.Context())))
	writeError(w, http.StatusTooManyRequests, "too many requests, please retry later")
}

// A limiter outage must not block users from completing paid checkouts.
func (h *Handler) rateLimiterFailed(r *http.Request, err error) {
	h.log.WarnContext(r.Context(), "rate limiter unavailable", logger.Error(err))
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.log.ErrorContext(r.Context(), msg, logger.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

func statusForOutcome(res subscription.Result) int {
	switch res.Outcome {
	case subscription.OutcomeSucceeded:
		return http.StatusOK
	case subscription.OutcomePaymentNotCompleted:
		return http.StatusPaymentRequired
	case subscription.OutcomePersistenceFailed:
		return http.StatusInternalServerError
	default:
		if res.Retriable() {
			return http.StatusServiceUnavailable
		}
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
