package txn

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateReference builds a TXN-<14-digit-timestamp>-<6-char-alnum> reference.
// Uniqueness is not guaranteed here; callers must collision-check against the
// store and regenerate.
func GenerateReference(at time.Time) (TransactionReference, error) {
	randomPart, err := randomString(referenceRandomLen)
	if err != nil {
		return TransactionReference{}, err
	}
	raw := referencePrefix + at.Format(referenceTimestampForm) + "-" + randomPart
	return NewTransactionReference(raw)
}

// GenerateAuthorizationCode builds an AUTH-<8-char-alnum> code.
func GenerateAuthorizationCode() (string, error) {
	randomPart, err := randomString(authorizationRandomLen)
	if err != nil {
		return "", err
	}
	return authorizationPrefix + randomPart, nil
}

func randomString(length int) (string, error) {
	charsetSize := big.NewInt(int64(len(referenceRandomCharset)))
	buffer := make([]byte, length)
	for index := range buffer {
		position, err := rand.Int(rand.Reader, charsetSize)
		if err != nil {
			return "", fmt.Errorf("random source: %w", err)
		}
		buffer[index] = referenceRandomCharset[position.Int64()]
	}
	return string(buffer), nil
}

// uniqueReference generates references until one does not collide with a
// stored record, bounded by maxReferenceAttempts.
func (service *Service) uniqueReference(ctx context.Context) (TransactionReference, error) {
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		reference, err := GenerateReference(service.nowFn())
		if err != nil {
			return TransactionReference{}, err
		}
		exists, err := service.store.ReferenceExists(ctx, reference.String())
		if err != nil {
			return TransactionReference{}, err
		}
		if !exists {
			return reference, nil
		}
	}
	return TransactionReference{}, WrapError("service", "reference", "exhausted", ErrReferenceExhausted)
}
