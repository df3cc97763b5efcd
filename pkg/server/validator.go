package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/coocood/freecache"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rotisserie/eris"
)

// cacheRetentionExtraSeconds keeps a hash cached a little past its expiry, so an envelope can
// never be accepted again while its timestamp is still valid.
const cacheRetentionExtraSeconds = 10

// ttlMaxFuture is how far in the future an envelope may be stamped, to allow for clock drift.
const ttlMaxFuture = 2 * time.Second

const bytesPerKb = 1024

var (
	ErrInvalidSignature = eris.New("invalid signature")
	ErrWrongNamespace   = eris.New("incorrect namespace")
	ErrMessageExpired   = eris.New("signature too old")
	ErrBadTimestamp     = eris.New("invalid future timestamp")
	ErrDuplicateMessage = eris.New("duplicate message")
	ErrCacheFailed      = eris.New("replay cache failure")
)

// ValidationError carries the HTTP status of a rejected envelope and a log-only message.
type ValidationError struct {
	err        error
	StatusCode int
	LogMsg     string
}

func (e *ValidationError) Error() string {
	return http.StatusText(e.StatusCode) + " - " + e.err.Error()
}

func (e *ValidationError) Unwrap() error { return e.err }

func reject(err error, status int, logMsg string) *ValidationError {
	return &ValidationError{err: err, StatusCode: status, LogMsg: logMsg}
}

// SignatureValidator checks envelope signatures, timestamps and replays. Hashes of accepted
// envelopes are remembered until they expire.
type SignatureValidator struct {
	disabled   bool
	namespace  string
	expiration time.Duration
	cache      *freecache.Cache
	now        func() time.Time
}

func NewSignatureValidator(disabled bool, expiration time.Duration, hashCacheSizeKB int, namespace string,
) *SignatureValidator {
	v := &SignatureValidator{
		disabled:   disabled,
		namespace:  namespace,
		expiration: expiration,
		now:        time.Now,
	}
	if !disabled {
		v.cache = freecache.NewCache(hashCacheSizeKB * bytesPerKb)
	}
	return v
}

// Disabled reports whether envelopes are accepted without checks.
func (v *SignatureValidator) Disabled() bool {
	return v.disabled
}

// Validate accepts env or returns a *ValidationError. An accepted envelope cannot be validated again
// until it has expired.
func (v *SignatureValidator) Validate(env *Envelope) error {
	if v.disabled {
		return nil
	}
	hash := env.Hash()

	now := v.now()
	switch {
	case env.Timestamp < TimestampAt(now.Add(-v.expiration)):
		return reject(ErrMessageExpired, http.StatusRequestTimeout,
			"envelope "+hash.Hex()+" older than "+v.expiration.String())
	case env.Timestamp > TimestampAt(now.Add(ttlMaxFuture)):
		return reject(ErrBadTimestamp, http.StatusBadRequest,
			"envelope "+hash.Hex()+" stamped more than "+ttlMaxFuture.String()+" in the future")
	}

	if found, err := v.isHashInCache(hash); err != nil {
		return reject(ErrCacheFailed, http.StatusInternalServerError, "cache read failed: "+err.Error())
	} else if found {
		return reject(ErrDuplicateMessage, http.StatusConflict, "envelope "+hash.Hex()+" already handled")
	}

	if env.Namespace != v.namespace {
		return reject(ErrWrongNamespace, http.StatusUnauthorized,
			"expected namespace "+v.namespace+", got "+env.Namespace)
	}
	if err := env.Verify(); err != nil {
		return reject(ErrInvalidSignature, http.StatusUnauthorized, err.Error())
	}

	// Only verified envelopes are remembered.
	retention := int(v.expiration/time.Second) + cacheRetentionExtraSeconds
	if err := v.cache.Set(hash.Bytes(), nil, retention); err != nil {
		return reject(ErrCacheFailed, http.StatusInternalServerError, "cache write failed: "+err.Error())
	}
	return nil
}

func (v *SignatureValidator) isHashInCache(hash common.Hash) (bool, error) {
	_, err := v.cache.Get(hash.Bytes())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, freecache.ErrNotFound) {
		return false, nil
	}
	return false, err
}
