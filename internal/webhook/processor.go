package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/securedocflow/securedoc-proxy/internal/config"
	"github.com/securedocflow/securedoc-proxy/internal/logger"
	"go.uber.org/zap"
)

// Gate failures, in the order the gates run.
var (
	ErrNoSignature  = errors.New("missing webhook signature")
	ErrNoSecret     = errors.New("webhook secret not configured")
	ErrBadSignature = errors.New("invalid webhook signature")
	ErrBadPayload   = errors.New("malformed webhook payload")
	ErrReplayWindow = errors.New("event timestamp outside replay tolerance")
)

// Outcome is the result of processing one verified notification.
type Outcome struct {
	EventID   string
	EventType string
	// Duplicate is set when the identifier was already in the ledger and
	// the business effect was not re-executed.
	Duplicate bool
}

// Event is the notification envelope.
type Event struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object struct {
			ID            string `json:"id"`
			CustomerEmail string `json:"customer_email"`
			AmountTotal   int64  `json:"amount_total"`
		} `json:"object"`
	} `json:"data"`
}

// Effect executes the business consequence of one event type.
type Effect func(ctx context.Context, evt Event) error

// Processor validates signed notifications and runs their effects exactly
// once. Unrecognized event types are accepted but produce no effect.
type Processor struct {
	secret    string
	tolerance time.Duration
	ledger    Ledger
	effects   map[string]Effect
	logger    *logger.Logger

	// now is swappable for replay-window tests.
	now func() time.Time
}

// NewProcessor creates a processor using the given ledger.
func NewProcessor(cfg config.WebhookConfig, ledger Ledger, log *logger.Logger) *Processor {
	p := &Processor{
		secret:    strings.TrimSpace(cfg.Secret),
		tolerance: cfg.ReplayTolerance,
		ledger:    ledger,
		effects:   make(map[string]Effect),
		logger:    log,
		now:       time.Now,
	}

	p.effects["checkout.session.completed"] = p.checkoutCompleted
	return p
}

// On registers or replaces the effect for an event type.
func (p *Processor) On(eventType string, effect Effect) {
	p.effects[eventType] = effect
}

// Process runs the verification gates in order, each a hard stop, then
// executes the event's effect at most once.
func (p *Processor) Process(ctx context.Context, payload []byte, sigHeader string) (Outcome, error) {
	if strings.TrimSpace(sigHeader) == "" {
		p.logger.Warn("webhook rejected: missing signature header")
		return Outcome{}, ErrNoSignature
	}

	// Fail closed: without a secret nothing can be verified.
	if p.secret == "" {
		p.logger.Warn("webhook rejected: no verification secret configured")
		return Outcome{}, ErrNoSecret
	}

	if !verifySignature(p.secret, payload, sigHeader) {
		p.logger.Error("webhook rejected: signature mismatch")
		return Outcome{}, ErrBadSignature
	}

	var evt Event
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" {
		return Outcome{}, ErrBadPayload
	}

	drift := p.now().Unix() - evt.Created
	if drift < 0 {
		drift = -drift
	}
	if time.Duration(drift)*time.Second > p.tolerance {
		p.logger.Warn("webhook rejected: outside replay window",
			zap.Int64("drift_seconds", drift),
		)
		return Outcome{}, ErrReplayWindow
	}

	outcome := Outcome{EventID: evt.ID, EventType: evt.Type}

	// Claim the identifier before running the effect. The claim is atomic,
	// so concurrent deliveries of the same event id see firstSeen exactly
	// once and the effect can never execute twice.
	firstSeen, err := p.ledger.MarkIfNew(ctx, evt.ID)
	if err != nil {
		return Outcome{}, err
	}
	if !firstSeen {
		p.logger.Info("webhook event already processed",
			zap.String("event_id", evt.ID),
		)
		outcome.Duplicate = true
		return outcome, nil
	}

	if effect, ok := p.effects[evt.Type]; ok {
		if err := effect(ctx, evt); err != nil {
			// Release the claim so the sender's retry is not swallowed
			// as a duplicate.
			if fErr := p.ledger.Forget(ctx, evt.ID); fErr != nil {
				p.logger.Error("failed to release ledger claim",
					zap.String("event_id", evt.ID),
					zap.Error(fErr),
				)
			}
			return Outcome{}, err
		}
	} else {
		p.logger.Info("webhook event type has no effect, acknowledging",
			zap.String("event_type", evt.Type),
		)
	}

	p.logger.Info("webhook event processed",
		zap.String("event_id", evt.ID),
		zap.String("event_type", evt.Type),
	)
	return outcome, nil
}

// checkoutCompleted is the default effect for completed checkout sessions.
// Provisioning hooks go here; for now the session is acknowledged and
// logged by identifier only.
func (p *Processor) checkoutCompleted(_ context.Context, evt Event) error {
	p.logger.Info("checkout session completed",
		zap.String("session_id", evt.Data.Object.ID),
		zap.Int64("amount_total", evt.Data.Object.AmountTotal),
	)
	return nil
}

// verifySignature checks an HMAC-SHA256 signature header of the form
// t=<unix>,v1=<hex>[,v1=<hex>...] computed over "<t>.<payload>".
func verifySignature(secret string, payload []byte, header string) bool {
	var timestamp string
	var signatures []string

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return false
	}
	if _, err := strconv.ParseInt(timestamp, 10, 64); err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "." + string(payload)))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

// SignPayload builds a valid signature header for a payload. Used by tests
// and local tooling; the server never signs anything.
func SignPayload(secret string, payload []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + string(payload)))
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
