package caseflow

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"

	"fraudcase/internal/apperr"
	"fraudcase/internal/repository"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var caseCodePattern = regexp.MustCompile(`^FRD-\d{6}-[A-Z0-9]{4}$`)

// IsCaseCode reports whether s has the external case code format
func IsCaseCode(s string) bool {
	return caseCodePattern.MatchString(s)
}

// newCaseCode returns a random code of the form FRD-123456-AB12
func newCaseCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}

	suffix := make([]byte, 4)
	for i := range suffix {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		suffix[i] = codeAlphabet[idx.Int64()]
	}

	return fmt.Sprintf("FRD-%06d-%s", n.Int64(), suffix), nil
}

// uniqueCaseCode draws codes until one is not yet used by any case
func (o *Orchestrator) uniqueCaseCode(ctx context.Context, cases repository.CaseRepository) (string, error) {
	for attempt := 0; attempt < o.codeAttempts; attempt++ {
		code, err := o.newCode()
		if err != nil {
			return "", apperr.Dependency(err, "failed to generate case code")
		}

		exists, err := cases.CodeExists(ctx, code)
		if err != nil {
			return "", apperr.Dependency(err, "failed to check case code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", apperr.New(apperr.KindDependencyFailure,
		"could not generate a unique case code after %d attempts", o.codeAttempts)
}
