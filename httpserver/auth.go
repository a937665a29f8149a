package httpserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/vaccine-ledger/api"
	"github.com/ruteri/vaccine-ledger/interfaces"
)

var (
	ErrMissingAuth      = errors.New("missing authentication headers")
	ErrStaleTimestamp   = errors.New("request timestamp outside the accepted window")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrReplayedRequest  = errors.New("signed request already used")
)

type callerKey struct{}

// CallerFromContext returns the principal authenticated by Authenticator.Middleware.
func CallerFromContext(ctx context.Context) (interfaces.Principal, bool) {
	caller, ok := ctx.Value(callerKey{}).(interfaces.Principal)
	return caller, ok
}

// Authenticator recovers the calling principal from signed requests.
//
// Each signed payload is accepted once per caller. Accepted payloads are
// remembered until their timestamp leaves the skew window, after which the
// timestamp check alone rejects them.
type Authenticator struct {
	maxSkew time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu        sync.Mutex
	seen      map[seenKey]time.Time
	lastSweep time.Time
}

type seenKey struct {
	caller interfaces.Principal
	hash   common.Hash
}

func NewAuthenticator(maxSkew time.Duration, log *slog.Logger) *Authenticator {
	if maxSkew <= 0 {
		maxSkew = api.DefaultMaxClockSkew
	}
	return &Authenticator{
		maxSkew: maxSkew,
		now:     time.Now,
		log:     log,
		seen:    make(map[seenKey]time.Time),
	}
}

// Middleware rejects unsigned or badly signed requests with 401 and stores the
// verified caller in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.VerifyRequest(r)
		if err != nil {
			a.log.Warn("Authentication failed",
				"err", err,
				"path", r.URL.Path,
				"caller", r.Header.Get(api.HeaderCaller))
			writeJSON(w, http.StatusUnauthorized, api.ErrorResponse{Message: err.Error()})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

// VerifyRequest checks the signature headers of r against its method, path and
// body, and returns the caller. The body is restored for later handlers.
func (a *Authenticator) VerifyRequest(r *http.Request) (interfaces.Principal, error) {
	callerHex := r.Header.Get(api.HeaderCaller)
	timestampStr := r.Header.Get(api.HeaderTimestamp)
	nonce := r.Header.Get(api.HeaderNonce)
	signatureHex := r.Header.Get(api.HeaderSignature)
	if callerHex == "" || timestampStr == "" || nonce == "" || signatureHex == "" {
		return interfaces.Principal{}, ErrMissingAuth
	}
	if len(nonce) > api.MaxNonceLength {
		return interfaces.Principal{}, fmt.Errorf("%w: nonce longer than %d bytes", ErrInvalidSignature, api.MaxNonceLength)
	}

	caller, err := interfaces.NewPrincipalFromHex(callerHex)
	if err != nil {
		return interfaces.Principal{}, err
	}

	timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return interfaces.Principal{}, fmt.Errorf("%w: %v", ErrStaleTimestamp, err)
	}
	now := a.now()
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew > a.maxSkew || skew < -a.maxSkew {
		return interfaces.Principal{}, fmt.Errorf("%w: skew %s", ErrStaleTimestamp, skew.Truncate(time.Second))
	}

	signature, err := hexutil.Decode(signatureHex)
	if err != nil || len(signature) != crypto.SignatureLength {
		return interfaces.Principal{}, fmt.Errorf("%w: malformed signature", ErrInvalidSignature)
	}
	// Wallets produce v in {27, 28}; SigToPub expects {0, 1}.
	if signature[crypto.RecoveryIDOffset] >= 27 {
		signature[crypto.RecoveryIDOffset] -= 27
	}

	var body []byte
	if r.Body != nil {
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return interfaces.Principal{}, fmt.Errorf("failed to read request body: %w", err)
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	hash := api.SigningHash(api.SigningPayload(r.Method, r.URL.Path, timestamp, nonce, body))
	pubKey, err := crypto.SigToPub(hash, signature)
	if err != nil {
		return interfaces.Principal{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if interfaces.NewPrincipalFromAddress(crypto.PubkeyToAddress(*pubKey)) != caller {
		return interfaces.Principal{}, fmt.Errorf("%w: signer does not match %s", ErrInvalidSignature, caller)
	}

	if !a.markSeen(seenKey{caller: caller, hash: common.BytesToHash(hash)}, time.Unix(timestamp, 0).Add(a.maxSkew), now) {
		return interfaces.Principal{}, fmt.Errorf("%w: nonce %q from %s", ErrReplayedRequest, nonce, caller)
	}

	a.log.Debug("Request authenticated", "caller", caller, "path", r.URL.Path)
	return caller, nil
}

// markSeen records key until expiry and reports whether it was new.
func (a *Authenticator) markSeen(key seenKey, expiry, now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if now.Sub(a.lastSweep) >= a.maxSkew/4 {
		for k, exp := range a.seen {
			if now.After(exp) {
				delete(a.seen, k)
			}
		}
		a.lastSweep = now
	}

	if exp, ok := a.seen[key]; ok && !now.After(exp) {
		return false
	}
	a.seen[key] = expiry
	return true
}
